package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srkgupta/dependency-track-gate/internal/model"
	"github.com/srkgupta/dependency-track-gate/internal/suppression"
)

var today = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func testGate(t Thresholds) *Gate {
	return &Gate{Thresholds: t, Now: func() time.Time { return today }}
}

func finding(purl, cve string, severity model.Severity, suppressed bool) model.Finding {
	return model.Finding{
		Component:     &model.Component{Name: "a", PackageUrl: purl},
		Vulnerability: &model.Vulnerability{VulnId: cve, Severity: severity},
		Analysis:      &model.Analysis{State: model.StateNotSet, Suppressed: suppressed},
	}
}

func expiring(rule suppression.Rule, at time.Time) suppression.Rule {
	rule.Expiration = at
	return rule
}

const purl = "pkg:maven/g/a@1.0.0"

func TestScenarioActiveFinding(t *testing.T) {
	report, err := testGate(Thresholds{}).Evaluate(
		[]model.Finding{finding(purl, "CVE-2024-0001", model.SeverityHigh, false)},
		suppression.Empty(),
	)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	require.Len(t, report.EffectiveFindings, 1)
	assert.Equal(t, []Violation{{Severity: model.SeverityHigh, Count: 1, Threshold: 0}}, report.Violations)
	assert.Equal(t, "--- Report ---\n- Active finding for: [pkg:maven/g/a@1.0.0] [cve: CVE-2024-0001] [severity: HIGH]", report.Details())
	assert.ErrorIs(t, report.Err(), ErrGateFailed)
}

func TestScenarioSuppressedFinding(t *testing.T) {
	rule := expiring(suppression.CveRule("CVE-2024-0001"), today.AddDate(10, 0, 0))
	rule.Notes = "not reachable"
	set := suppression.MustNewSet(rule)

	report, err := testGate(Thresholds{}).Evaluate(
		[]model.Finding{finding(purl, "CVE-2024-0001", model.SeverityHigh, false)},
		set,
	)
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.NoError(t, report.Err())
	assert.Empty(t, report.EffectiveFindings)
	assert.Equal(t, 1, report.EffectiveSuppressions.Len())
	assert.Empty(t, report.UnnecessarySuppressions)
	require.Len(t, report.EntriesOf(EntrySuppressed), 1)
	assert.Equal(t, "- Suppressed finding via custom suppression for: [pkg:maven/g/a@1.0.0] [cve: CVE-2024-0001] [severity: HIGH] [notes: not reachable] [suppression expiration date: 2034-06-15]",
		report.EntriesOf(EntrySuppressed)[0].String())
}

func TestScenarioExpiredSuppression(t *testing.T) {
	set := suppression.MustNewSet(expiring(suppression.CveRule("CVE-2024-0001"), today.AddDate(0, 0, -1)))

	report, err := testGate(Thresholds{}).Evaluate(
		[]model.Finding{finding(purl, "CVE-2024-0001", model.SeverityHigh, false)},
		set,
	)
	require.NoError(t, err)

	assert.False(t, report.Passed)
	assert.Len(t, report.EffectiveFindings, 1)
	assert.Equal(t, 0, report.EffectiveSuppressions.Len())
	assert.Empty(t, report.UnnecessarySuppressions)
	assert.Empty(t, report.EntriesOf(EntryUnnecessary))
	require.Len(t, report.EntriesOf(EntryActiveExpired), 1)
	assert.Contains(t, report.Details(), "- Active finding with expired custom suppression for: [pkg:maven/g/a@1.0.0] [cve: CVE-2024-0001] [severity: HIGH] [suppression expiration date: 2024-06-14]")
}

func TestRemoteSuppressionTakesPrecedence(t *testing.T) {
	findings := []model.Finding{
		finding(purl, "CVE-1", model.SeverityCritical, true),
		finding(purl, "CVE-2", model.SeverityCritical, true),
	}

	for name, set := range map[string]*suppression.Set{
		"no rules":       suppression.Empty(),
		"expired rule":   suppression.MustNewSet(expiring(suppression.CveRule("CVE-1"), today.AddDate(-1, 0, 0))),
		"active rule":    suppression.MustNewSet(suppression.PurlRule(purl, false)),
		"unrelated rule": suppression.MustNewSet(suppression.CveRule("CVE-9")),
	} {
		t.Run(name, func(t *testing.T) {
			report, err := testGate(Thresholds{}).Evaluate(findings, set)
			require.NoError(t, err)
			assert.True(t, report.Passed)
			assert.Empty(t, report.EffectiveFindings)
			assert.Len(t, report.EntriesOf(EntryRemotelySuppressed), 2)
		})
	}
}

func TestRemoteSuppressedFindingConsumesMatchingRule(t *testing.T) {
	set := suppression.MustNewSet(suppression.CveRule("CVE-1"), suppression.CveRule("CVE-2"))

	report, err := testGate(Thresholds{}).Evaluate(
		[]model.Finding{finding(purl, "CVE-1", model.SeverityLow, true)},
		set,
	)
	require.NoError(t, err)

	require.Len(t, report.UnnecessarySuppressions, 1)
	assert.Equal(t, "CVE-2", report.UnnecessarySuppressions[0].Cve)
	require.Equal(t, 1, report.EffectiveSuppressions.Len())
	assert.Equal(t, "CVE-1", report.EffectiveSuppressions.Rule(0).Cve)
	assert.Equal(t, "--- Report ---\n"+
		"- Finding is already suppressed in Dependency-Track for: [pkg:maven/g/a@1.0.0] [cve: CVE-1] [severity: LOW]\n"+
		"- Unnecessary suppression for: [CVE-2]", report.Details())
}

func TestUnnecessarySuppressions(t *testing.T) {
	set := suppression.MustNewSet(
		suppression.CveRule("CVE-unused-1"),
		suppression.PurlRule(purl, false),
		expiring(suppression.PurlRule("pkg:npm/x@1", false), today.AddDate(0, 0, -3)),
	)

	report, err := testGate(Thresholds{}).Evaluate(
		[]model.Finding{finding(purl, "CVE-1", model.SeverityLow, false)},
		set,
	)
	require.NoError(t, err)

	require.Len(t, report.UnnecessarySuppressions, 2)
	assert.Equal(t, "CVE-unused-1", report.UnnecessarySuppressions[0].Cve)
	assert.Equal(t, "pkg:npm/x@1", report.UnnecessarySuppressions[1].Purl)
	require.Equal(t, 1, report.EffectiveSuppressions.Len())
	assert.Equal(t, purl, report.EffectiveSuppressions.Rule(0).Purl)

	unnecessary := report.EntriesOf(EntryUnnecessary)
	require.Len(t, unnecessary, 2)
	assert.Equal(t, "- Unnecessary suppression for: [CVE-unused-1]", unnecessary[0].String())
}

func TestFirstMatchingRuleIsAccounted(t *testing.T) {
	set := suppression.MustNewSet(
		expiring(suppression.CveRule("CVE-1"), today.AddDate(0, 0, -1)),
		suppression.PurlRule(purl, false),
	)

	report, err := testGate(Thresholds{}).Evaluate(
		[]model.Finding{finding(purl, "CVE-1", model.SeverityMedium, false)},
		set,
	)
	require.NoError(t, err)

	assert.False(t, report.Passed, "the expired first match wins over the later active rule")
	require.Len(t, report.UnnecessarySuppressions, 1)
	assert.Equal(t, purl, report.UnnecessarySuppressions[0].Purl)
}

func TestThresholdStrictness(t *testing.T) {
	thresholds := Thresholds{Critical: 0, High: 2, Medium: 5, Low: 10}

	highs := func(n int) []model.Finding {
		out := make([]model.Finding, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, finding(purl, "CVE-"+string(rune('a'+i)), model.SeverityHigh, false))
		}
		return out
	}

	report, err := testGate(thresholds).Evaluate(highs(2), nil)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, 2, report.Counts[model.SeverityHigh])

	report, err = testGate(thresholds).Evaluate(highs(3), nil)
	require.NoError(t, err)
	assert.False(t, report.Passed)
	assert.Equal(t, "Security gate failed: HIGH: 3 > 2", report.Summary())
}

func TestUngatedSeveritiesNeverFail(t *testing.T) {
	report, err := testGate(Thresholds{}).Evaluate([]model.Finding{
		finding(purl, "CVE-1", model.SeverityUnassigned, false),
		finding(purl, "CVE-2", model.SeverityInfo, false),
	}, suppression.Empty())
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.Len(t, report.EffectiveFindings, 2)
	assert.Equal(t, 1, report.Counts[model.SeverityUnassigned])
}

func TestMalformedFindingFailsFast(t *testing.T) {
	valid := finding(purl, "CVE-1", model.SeverityHigh, false)

	for name, f := range map[string]model.Finding{
		"no component":     {Vulnerability: valid.Vulnerability, Analysis: valid.Analysis},
		"no vulnerability": {Component: valid.Component, Analysis: valid.Analysis},
		"no analysis":      {Component: valid.Component, Vulnerability: valid.Vulnerability},
	} {
		t.Run(name, func(t *testing.T) {
			report, err := testGate(Thresholds{}).Evaluate([]model.Finding{valid, f}, suppression.Empty())
			assert.Nil(t, report)
			assert.ErrorIs(t, err, ErrMalformedFinding)
			assert.Contains(t, err.Error(), "finding #2")
		})
	}
}

func TestEvaluateDoesNotMutateInput(t *testing.T) {
	findings := []model.Finding{finding(purl, "CVE-1", model.SeverityHigh, false)}
	set := suppression.MustNewSet(suppression.CveRule("CVE-1"), suppression.CveRule("CVE-2"))

	_, err := testGate(Thresholds{}).Evaluate(findings, set)
	require.NoError(t, err)
	_, err = testGate(Thresholds{}).Evaluate(findings, set)
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len())
	assert.False(t, findings[0].Analysis.Suppressed)
}

func TestDefaultClock(t *testing.T) {
	g := New(Thresholds{})
	require.NotNil(t, g.Now)

	report, err := (&Gate{}).Evaluate(nil, nil)
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, "--- Report ---", report.Details())
}
