package model

import (
	"strings"

	"github.com/google/uuid"
)

type State string

const (
	StateNotSet        State = "NOT_SET"
	StateExploitable   State = "EXPLOITABLE"
	StateInTriage      State = "IN_TRIAGE"
	StateFalsePositive State = "FALSE_POSITIVE"
	StateNotAffected   State = "NOT_AFFECTED"
	StateResolved      State = "RESOLVED"
)

type Justification string

const (
	JustificationNotSet                       Justification = "NOT_SET"
	JustificationCodeNotPresent               Justification = "CODE_NOT_PRESENT"
	JustificationCodeNotReachable             Justification = "CODE_NOT_REACHABLE"
	JustificationRequiresConfiguration        Justification = "REQUIRES_CONFIGURATION"
	JustificationRequiresDependency           Justification = "REQUIRES_DEPENDENCY"
	JustificationRequiresEnvironment          Justification = "REQUIRES_ENVIRONMENT"
	JustificationProtectedByCompiler          Justification = "PROTECTED_BY_COMPILER"
	JustificationProtectedAtRuntime           Justification = "PROTECTED_AT_RUNTIME"
	JustificationProtectedAtPerimeter         Justification = "PROTECTED_AT_PERIMETER"
	JustificationProtectedByMitigatingControl Justification = "PROTECTED_BY_MITIGATING_CONTROL"
)

type Response string

const (
	ResponseNotSet          Response = "NOT_SET"
	ResponseCanNotFix       Response = "CAN_NOT_FIX"
	ResponseWillNotFix      Response = "WILL_NOT_FIX"
	ResponseUpdate          Response = "UPDATE"
	ResponseRollback        Response = "ROLLBACK"
	ResponseWorkaroundAvail Response = "WORKAROUND_AVAILABLE"
)

// Analysis is the triage state the server holds for one
// (component, vulnerability) pair.
type Analysis struct {
	State         State         `json:"state,omitempty"`
	Justification Justification `json:"justification,omitempty"`
	Response      Response      `json:"response,omitempty"`
	Details       string        `json:"details,omitempty"`
	Suppressed    bool          `json:"isSuppressed"`
}

// AnalysisRequest is the payload of an apply-analysis call.
type AnalysisRequest struct {
	ProjectId       uuid.UUID     `json:"project"`
	ComponentId     uuid.UUID     `json:"component"`
	VulnerabilityId uuid.UUID     `json:"vulnerability"`
	State           State         `json:"analysisState"`
	Justification   Justification `json:"analysisJustification"`
	Response        Response      `json:"analysisResponse"`
	Details         string        `json:"analysisDetails,omitempty"`
	Comment         string        `json:"comment,omitempty"`
	Suppressed      bool          `json:"isSuppressed"`
}

// Disposition is what gets applied upstream when a local suppression is
// pushed to the server.
type Disposition struct {
	State         State         `json:"state,omitempty" yaml:"state,omitempty"`
	Justification Justification `json:"justification,omitempty" yaml:"justification,omitempty"`
	Response      Response      `json:"response,omitempty" yaml:"response,omitempty"`
}

// Normalized fills unset fields with NOT_SET.
func (d Disposition) Normalized() Disposition {
	if d.State == "" {
		d.State = StateNotSet
	}
	if d.Justification == "" {
		d.Justification = JustificationNotSet
	}
	if d.Response == "" {
		d.Response = ResponseNotSet
	}
	return d
}

// ParseState maps a human label such as "False Positive" or "not_affected"
// to a State.
func ParseState(label string) (State, bool) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(label), " ", "_"))
	switch State(normalized) {
	case StateNotSet, StateExploitable, StateInTriage, StateFalsePositive, StateNotAffected, StateResolved:
		return State(normalized), true
	case "NEW":
		return StateNotSet, true
	}
	return "", false
}

// Audited reports whether the analysis takes the finding out of the open set
// for summaries.
func (a *Analysis) Audited() bool {
	return a.Suppressed || a.State == StateFalsePositive || a.State == StateNotAffected
}
