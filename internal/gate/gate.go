// Package gate decides whether a build may proceed given the findings of a
// project, the local suppressions and per-severity thresholds.
package gate

import (
	"time"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
	"github.com/srkgupta/dependency-track-gate/internal/suppression"
)

// ErrMalformedFinding is returned when a finding lacks its component,
// vulnerability or analysis.
var ErrMalformedFinding = errors.New("malformed finding")

// Gate evaluates findings against thresholds. It holds no state between
// evaluations and may be shared.
type Gate struct {
	Thresholds Thresholds
	// Now supplies the current date for expiration checks. Defaults to
	// time.Now.
	Now func() time.Time
}

func New(thresholds Thresholds) *Gate {
	return &Gate{Thresholds: thresholds, Now: time.Now}
}

func (g *Gate) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// Evaluate reconciles the findings with the local suppressions and applies
// the thresholds. Rules are matched in declaration order; the first matching
// rule is the one accounted for, also for findings already suppressed
// upstream.
func (g *Gate) Evaluate(findings []model.Finding, set *suppression.Set) (*Report, error) {
	for i, f := range findings {
		if err := f.Validate(); err != nil {
			return nil, errors.Wrapf(ErrMalformedFinding, "finding #%d: %s", i+1, err.Error())
		}
	}
	if set == nil {
		set = suppression.Empty()
	}

	now := g.now()
	report := &Report{
		Counts: map[model.Severity]int{},
	}

	remaining := make(map[int]bool, set.Len())
	for i := 0; i < set.Len(); i++ {
		remaining[i] = true
	}

	for _, f := range findings {
		f := f
		idx, matched := set.FirstMatch(f)
		if matched {
			delete(remaining, idx)
		}

		switch {
		case f.Analysis.Suppressed:
			report.add(Entry{Kind: EntryRemotelySuppressed, Finding: &f})
		case !matched:
			report.addEffective(f)
			report.add(Entry{Kind: EntryActive, Finding: &f})
		default:
			rule := set.Rule(idx)
			if rule.IsExpired(now) {
				report.addEffective(f)
				report.add(Entry{Kind: EntryActiveExpired, Finding: &f, Rule: &rule})
			} else {
				report.add(Entry{Kind: EntrySuppressed, Finding: &f, Rule: &rule})
			}
		}
	}

	for i, rule := range set.Rules() {
		if remaining[i] {
			rule := rule
			report.UnnecessarySuppressions = append(report.UnnecessarySuppressions, rule)
			report.add(Entry{Kind: EntryUnnecessary, Rule: &rule})
		}
	}

	report.EffectiveSuppressions = set.Subset(func(i int, r suppression.Rule) bool {
		return !remaining[i] && r.IsActive(now)
	})
	report.Violations = g.Thresholds.Check(report.Counts)
	report.Passed = len(report.Violations) == 0
	return report, nil
}
