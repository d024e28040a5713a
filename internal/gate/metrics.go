package gate

import (
	"fmt"
	"strings"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// MetricsResult is the threshold check of a server side metrics snapshot.
// Metrics already exclude findings suppressed upstream but know nothing of
// local suppressions.
type MetricsResult struct {
	Metrics    model.ProjectMetrics
	Violations []Violation
	Passed     bool
}

func CheckMetrics(metrics model.ProjectMetrics, thresholds Thresholds) *MetricsResult {
	counts := map[model.Severity]int{}
	for _, s := range model.GatedSeverities {
		counts[s] = metrics.Count(s)
	}
	violations := thresholds.Check(counts)
	return &MetricsResult{
		Metrics:    metrics,
		Violations: violations,
		Passed:     len(violations) == 0,
	}
}

// PrintMetrics renders the severity buckets of a snapshot.
func PrintMetrics(m model.ProjectMetrics) string {
	var b strings.Builder
	b.WriteString("--- Metrics ---")
	for _, s := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow, model.SeverityUnassigned} {
		fmt.Fprintf(&b, "\n- %s: %d", title(s), m.Count(s))
	}
	fmt.Fprintf(&b, "\n- Suppressed: %d", m.Suppressed)
	fmt.Fprintf(&b, "\n- Inherited risk score: %.0f", m.InheritedRiskScore)
	return b.String()
}
