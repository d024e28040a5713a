package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

func TestPreset(t *testing.T) {
	strict, err := Preset("strict")
	require.NoError(t, err)
	assert.Equal(t, Thresholds{}, strict)

	blockHigh, err := Preset(" Block-High ")
	require.NoError(t, err)
	assert.Equal(t, 0, blockHigh.High)
	assert.Equal(t, Unlimited, blockHigh.Medium)

	_, err = Preset("lenient")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block-critical, block-high, permissive, strict")
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, Thresholds{High: 3}.Validate())
	assert.Error(t, Thresholds{Low: -1}.Validate())
}

func TestThresholdsCheck(t *testing.T) {
	thresholds := Thresholds{Critical: 0, High: 2, Medium: 5, Low: 10}

	assert.Empty(t, thresholds.Check(map[model.Severity]int{
		model.SeverityHigh:       2,
		model.SeverityMedium:     5,
		model.SeverityUnassigned: 100,
	}))

	assert.Equal(t, []Violation{
		{Severity: model.SeverityCritical, Count: 1, Threshold: 0},
		{Severity: model.SeverityLow, Count: 11, Threshold: 10},
	}, thresholds.Check(map[model.Severity]int{
		model.SeverityLow:      11,
		model.SeverityCritical: 1,
	}))
}

func TestThresholdsString(t *testing.T) {
	thresholds, err := Preset(PresetBlockCritical)
	require.NoError(t, err)
	assert.Equal(t, "--- Security Gate ---\n- Critical: 0\n- High: unlimited\n- Medium: unlimited\n- Low: unlimited", thresholds.String())
}

func TestCheckMetrics(t *testing.T) {
	metrics := model.ProjectMetrics{Critical: 0, High: 3, Medium: 1, Unassigned: 7}

	result := CheckMetrics(metrics, Thresholds{High: 3, Medium: 1})
	assert.True(t, result.Passed)

	result = CheckMetrics(metrics, Thresholds{High: 2, Medium: 1})
	assert.False(t, result.Passed)
	assert.Equal(t, []Violation{{Severity: model.SeverityHigh, Count: 3, Threshold: 2}}, result.Violations)

	assert.Equal(t, "--- Metrics ---\n- Critical: 0\n- High: 3\n- Medium: 1\n- Low: 0\n- Unassigned: 7\n- Suppressed: 0\n- Inherited risk score: 0", PrintMetrics(metrics))
}

func TestSummarizeFindings(t *testing.T) {
	falsePositive := finding(purl, "CVE-1", model.SeverityHigh, false)
	falsePositive.Analysis.State = model.StateFalsePositive
	notAffected := finding(purl, "CVE-2", model.SeverityHigh, true)
	notAffected.Analysis.State = model.StateNotAffected
	suppressed := finding(purl, "CVE-3", model.SeverityMedium, true)
	low := finding(purl, "CVE-4", model.SeverityLow, false)
	critical := finding(purl, "CVE-5", model.SeverityCritical, false)

	summary := SummarizeFindings([]model.Finding{falsePositive, notAffected, suppressed, low, critical})

	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 1, summary.FalsePositives)
	assert.Equal(t, 1, summary.NotAffected)
	assert.Equal(t, 2, summary.Suppressed)
	require.Len(t, summary.Open, 2)
	assert.Equal(t, "CVE-5", summary.Open[0].Vulnerability.VulnId)
	assert.Equal(t, "CVE-4", summary.Open[1].Vulnerability.VulnId)
	assert.Contains(t, summary.String(), "- Open: 2\n  - [pkg:maven/g/a@1.0.0] [cve: CVE-5] [severity: CRITICAL]")
}
