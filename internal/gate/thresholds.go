package gate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// Unlimited disables the threshold of a bucket.
const Unlimited = math.MaxInt

// Thresholds hold the maximum tolerated number of effective findings per
// severity. A count equal to its threshold passes.
type Thresholds struct {
	Critical int `json:"critical" yaml:"critical"`
	High     int `json:"high" yaml:"high"`
	Medium   int `json:"medium" yaml:"medium"`
	Low      int `json:"low" yaml:"low"`
}

const (
	PresetStrict        = "strict"
	PresetBlockCritical = "block-critical"
	PresetBlockHigh     = "block-high"
	PresetPermissive    = "permissive"
)

var presets = map[string]Thresholds{
	PresetStrict:        {},
	PresetBlockCritical: {Critical: 0, High: Unlimited, Medium: Unlimited, Low: Unlimited},
	PresetBlockHigh:     {Critical: 0, High: 0, Medium: Unlimited, Low: Unlimited},
	PresetPermissive:    {Critical: Unlimited, High: Unlimited, Medium: Unlimited, Low: Unlimited},
}

// Preset returns the named threshold set.
func Preset(name string) (Thresholds, error) {
	t, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Thresholds{}, errors.Errorf("unknown threshold preset %q, expected one of %s", name, strings.Join(PresetNames(), ", "))
	}
	return t, nil
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t Thresholds) Validate() error {
	for _, s := range model.GatedSeverities {
		if t.For(s) < 0 {
			return errors.Errorf("threshold for %s must not be negative", s)
		}
	}
	return nil
}

// For returns the threshold of a gated severity. Severities without a
// threshold are never gated.
func (t Thresholds) For(s model.Severity) int {
	switch s {
	case model.SeverityCritical:
		return t.Critical
	case model.SeverityHigh:
		return t.High
	case model.SeverityMedium:
		return t.Medium
	case model.SeverityLow:
		return t.Low
	}
	return Unlimited
}

// Violation is one bucket whose count exceeds its threshold.
type Violation struct {
	Severity  model.Severity
	Count     int
	Threshold int
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %d > %d", v.Severity, v.Count, v.Threshold)
}

// Check compares counts against the thresholds, most severe bucket first.
func (t Thresholds) Check(counts map[model.Severity]int) []Violation {
	var violations []Violation
	for _, s := range model.GatedSeverities {
		if counts[s] > t.For(s) {
			violations = append(violations, Violation{Severity: s, Count: counts[s], Threshold: t.For(s)})
		}
	}
	return violations
}

func (t Thresholds) String() string {
	var b strings.Builder
	b.WriteString("--- Security Gate ---")
	for _, s := range model.GatedSeverities {
		fmt.Fprintf(&b, "\n- %s: %s", title(s), limit(t.For(s)))
	}
	return b.String()
}

func limit(n int) string {
	if n == Unlimited {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func title(s model.Severity) string {
	label := strings.ToLower(string(s))
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
