package gate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// FindingsSummary tallies the triage state of a project's findings as the
// server reports it.
type FindingsSummary struct {
	Total          int
	FalsePositives int
	NotAffected    int
	Suppressed     int
	// Open holds unaudited findings, most severe first.
	Open []model.Finding
}

func SummarizeFindings(findings []model.Finding) FindingsSummary {
	summary := FindingsSummary{Total: len(findings)}
	for _, f := range findings {
		if f.Analysis == nil {
			summary.Open = append(summary.Open, f)
			continue
		}
		switch f.Analysis.State {
		case model.StateFalsePositive:
			summary.FalsePositives++
		case model.StateNotAffected:
			summary.NotAffected++
		}
		if f.Analysis.Suppressed {
			summary.Suppressed++
		}
		if !f.Analysis.Audited() {
			summary.Open = append(summary.Open, f)
		}
	}

	sort.SliceStable(summary.Open, func(i, j int) bool {
		return rank(summary.Open[i]) > rank(summary.Open[j])
	})
	return summary
}

func rank(f model.Finding) int {
	if f.Vulnerability == nil {
		return -1
	}
	return f.Vulnerability.Severity.Rank()
}

func (s FindingsSummary) String() string {
	var b strings.Builder
	b.WriteString("--- Findings ---")
	fmt.Fprintf(&b, "\n- Total: %d", s.Total)
	fmt.Fprintf(&b, "\n- False positives: %d", s.FalsePositives)
	fmt.Fprintf(&b, "\n- Not affected: %d", s.NotAffected)
	fmt.Fprintf(&b, "\n- Suppressed: %d", s.Suppressed)
	fmt.Fprintf(&b, "\n- Open: %d", len(s.Open))
	for _, f := range s.Open {
		if f.Component == nil || f.Vulnerability == nil {
			continue
		}
		b.WriteString("\n  - ")
		b.WriteString(label(&f))
	}
	return b.String()
}
