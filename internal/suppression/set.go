package suppression

import (
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// Set is an ordered, immutable sequence of rules. The zero value and a nil
// *Set are both empty.
type Set struct {
	rules []Rule
}

// Empty returns a set without rules.
func Empty() *Set {
	return &Set{}
}

// NewSet validates and compiles the rules, keeping their order.
func NewSet(rules ...Rule) (*Set, error) {
	compiled := make([]Rule, 0, len(rules))
	for i, rule := range rules {
		c, err := rule.compile()
		if err != nil {
			return nil, errors.Wrapf(err, "suppression #%d", i+1)
		}
		compiled = append(compiled, c)
	}
	return &Set{rules: compiled}, nil
}

// MustNewSet is NewSet for rule literals known to be valid.
func MustNewSet(rules ...Rule) *Set {
	s, err := NewSet(rules...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

func (s *Set) IsEmpty() bool {
	return s.Len() == 0
}

// Rule returns the rule at position i.
func (s *Set) Rule(i int) Rule {
	return s.rules[i]
}

// Rules returns a copy of the rules in declared order.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// FirstMatch returns the position of the first rule, in declared order,
// matching the finding regardless of expiration.
func (s *Set) FirstMatch(f model.Finding) (int, bool) {
	if s == nil {
		return -1, false
	}
	for i, rule := range s.rules {
		if rule.Matches(f) {
			return i, true
		}
	}
	return -1, false
}

// Subset returns a new set holding the rules at the given positions, in
// declared order.
func (s *Set) Subset(keep func(i int, r Rule) bool) *Set {
	out := &Set{}
	if s == nil {
		return out
	}
	for i, rule := range s.rules {
		if keep(i, rule) {
			out.rules = append(out.rules, rule)
		}
	}
	return out
}

// Print renders the set for the run summary.
func (s *Set) Print(now time.Time) string {
	var b strings.Builder
	b.WriteString("--- Custom Suppressions ---\n")
	if s.IsEmpty() {
		b.WriteString("- None")
		return b.String()
	}
	for _, rule := range s.rules {
		b.WriteString(rule.Describe(now))
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
