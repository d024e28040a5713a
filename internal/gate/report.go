package gate

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
	"github.com/srkgupta/dependency-track-gate/internal/suppression"
)

// ErrGateFailed is returned by Report.Err when at least one threshold is
// exceeded.
var ErrGateFailed = errors.New("security gate failed")

type EntryKind int

const (
	EntryRemotelySuppressed EntryKind = iota
	EntryActive
	EntryActiveExpired
	EntrySuppressed
	EntryUnnecessary
)

// Entry is one line of the report narrative.
type Entry struct {
	Kind    EntryKind
	Finding *model.Finding
	Rule    *suppression.Rule
}

func (e Entry) String() string {
	switch e.Kind {
	case EntryRemotelySuppressed:
		return "- Finding is already suppressed in Dependency-Track for: " + label(e.Finding)
	case EntryActive:
		return "- Active finding for: " + label(e.Finding)
	case EntryActiveExpired:
		return fmt.Sprintf("- Active finding with expired custom suppression for: %s [suppression expiration date: %s]",
			label(e.Finding), e.Rule.ExpirationLabel())
	case EntrySuppressed:
		line := "- Suppressed finding via custom suppression for: " + label(e.Finding)
		if e.Rule.Notes != "" {
			line += " [notes: " + e.Rule.Notes + "]"
		}
		return line + " [suppression expiration date: " + e.Rule.ExpirationLabel() + "]"
	case EntryUnnecessary:
		return "- Unnecessary suppression for: " + e.Rule.Identifier()
	}
	return ""
}

func label(f *model.Finding) string {
	return fmt.Sprintf("[%s] [cve: %s] [severity: %s]", f.Component.PackageUrl, f.Vulnerability.VulnId, f.Vulnerability.Severity)
}

// Report is the outcome of one evaluation.
type Report struct {
	Entries                 []Entry
	EffectiveFindings       []model.Finding
	EffectiveSuppressions   *suppression.Set
	UnnecessarySuppressions []suppression.Rule
	Counts                  map[model.Severity]int
	Violations              []Violation
	Passed                  bool
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
}

func (r *Report) addEffective(f model.Finding) {
	r.EffectiveFindings = append(r.EffectiveFindings, f)
	r.Counts[f.Vulnerability.Severity]++
}

// EntriesOf returns the entries of a kind, in report order.
func (r *Report) EntriesOf(kind EntryKind) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Details renders the narrative.
func (r *Report) Details() string {
	var b strings.Builder
	b.WriteString("--- Report ---")
	for _, e := range r.Entries {
		b.WriteString("\n")
		b.WriteString(e.String())
	}
	return b.String()
}

// Summary is a one-line verdict.
func (r *Report) Summary() string {
	if r.Passed {
		return fmt.Sprintf("Security gate passed with %d effective finding(s)", len(r.EffectiveFindings))
	}
	return "Security gate failed: " + r.violations()
}

func (r *Report) violations() string {
	parts := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, ", ")
}

// Err returns ErrGateFailed, annotated with the violations, when the gate
// did not pass.
func (r *Report) Err() error {
	if r.Passed {
		return nil
	}
	return errors.WithMessage(ErrGateFailed, "thresholds exceeded ("+r.violations()+")")
}
