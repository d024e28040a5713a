package model

import (
	"fmt"

	"github.com/google/uuid"
)

type Classifier string

const (
	ClassifierNone        Classifier = "NONE"
	ClassifierApplication Classifier = "APPLICATION"
	ClassifierFramework   Classifier = "FRAMEWORK"
	ClassifierLibrary     Classifier = "LIBRARY"
	ClassifierContainer   Classifier = "CONTAINER"
)

type CollectionLogic string

const (
	CollectionLogicNone             CollectionLogic = "NONE"
	CollectionLogicAggregateAll     CollectionLogic = "AGGREGATE_DIRECT_CHILDREN"
	CollectionLogicAggregateWithTag CollectionLogic = "AGGREGATE_DIRECT_CHILDREN_WITH_TAG"
	CollectionLogicLatestChildren   CollectionLogic = "AGGREGATE_LATEST_VERSION_CHILDREN"
)

type Tag struct {
	Name string `json:"name"`
}

type ProjectRef struct {
	Id uuid.UUID `json:"uuid"`
}

type Project struct {
	Id              uuid.UUID       `json:"uuid"`
	Name            string          `json:"name"`
	Version         string          `json:"version,omitempty"`
	Classifier      Classifier      `json:"classifier,omitempty"`
	Parent          *ProjectRef     `json:"parent,omitempty"`
	CollectionLogic CollectionLogic `json:"collectionLogic,omitempty"`
	CollectionTag   *Tag            `json:"collectionTag,omitempty"`
	Active          bool            `json:"active"`
	IsLatest        bool            `json:"isLatest,omitempty"`
	LastBomImport   int64           `json:"lastBomImport,omitempty"`
}

func (p *Project) String() string {
	return fmt.Sprintf("%s:%s", p.Name, p.Version)
}

// ToMarkdown links the project in the Dependency-Track UI.
func (p *Project) ToMarkdown(dtUrl string) string {
	return fmt.Sprintf("[%s %s](%s/projects/%s)", p.Name, p.Version, dtUrl, p.Id)
}

// ProjectPatch carries only the attributes a patch call changes.
type ProjectPatch struct {
	Parent          *ProjectRef     `json:"parent,omitempty"`
	Active          *bool           `json:"active,omitempty"`
	CollectionLogic CollectionLogic `json:"collectionLogic,omitempty"`
	CollectionTag   *Tag            `json:"collectionTag,omitempty"`
}

type ProjectMetrics struct {
	Critical             int     `json:"critical"`
	High                 int     `json:"high"`
	Medium               int     `json:"medium"`
	Low                  int     `json:"low"`
	Unassigned           int     `json:"unassigned"`
	Vulnerabilities      int64   `json:"vulnerabilities"`
	VulnerableComponents int     `json:"vulnerableComponents"`
	Components           int     `json:"components"`
	Suppressed           int     `json:"suppressed"`
	FindingsTotal        int     `json:"findingsTotal"`
	FindingsAudited      int     `json:"findingsAudited"`
	FindingsUnaudited    int     `json:"findingsUnaudited"`
	InheritedRiskScore   float64 `json:"inheritedRiskScore"`
	FirstOccurrence      int64   `json:"firstOccurrence"`
	LastOccurrence       int64   `json:"lastOccurrence"`
}

// Count returns the metric bucket for a gated severity.
func (m *ProjectMetrics) Count(s Severity) int {
	switch s {
	case SeverityCritical:
		return m.Critical
	case SeverityHigh:
		return m.High
	case SeverityMedium:
		return m.Medium
	case SeverityLow:
		return m.Low
	case SeverityUnassigned:
		return m.Unassigned
	}
	return 0
}

// BomSubmitRequest uploads a base64 encoded BOM. Either ProjectId or the
// name/version pair identifies the target project.
type BomSubmitRequest struct {
	ProjectId      *uuid.UUID `json:"project,omitempty"`
	ProjectName    string     `json:"projectName,omitempty"`
	ProjectVersion string     `json:"projectVersion,omitempty"`
	ParentName     string     `json:"parentName,omitempty"`
	ParentVersion  string     `json:"parentVersion,omitempty"`
	AutoCreate     bool       `json:"autoCreate"`
	Bom            string     `json:"bom"`
}

type ScanSubmitRequest struct {
	ProjectId      *uuid.UUID `json:"project,omitempty"`
	ProjectName    string     `json:"projectName,omitempty"`
	ProjectVersion string     `json:"projectVersion,omitempty"`
	AutoCreate     bool       `json:"autoCreate"`
	Scan           string     `json:"scan"`
}

type TokenResponse struct {
	Token uuid.UUID `json:"token"`
}

// TokenStatus is the answer to "is the uploaded artifact still being processed".
type TokenStatus struct {
	Processing bool `json:"processing"`
}
