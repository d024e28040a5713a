package suppression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

func finding(purl, cve string) model.Finding {
	return model.Finding{
		Component:     &model.Component{Name: "a", PackageUrl: purl},
		Vulnerability: &model.Vulnerability{VulnId: cve, Severity: model.SeverityHigh},
		Analysis:      &model.Analysis{},
	}
}

func TestRuleMatches(t *testing.T) {
	f := finding("pkg:maven/g/a@1.0.0", "CVE-2024-0001")

	for name, tc := range map[string]struct {
		rule     Rule
		expected bool
	}{
		"purl exact":                {PurlRule("pkg:maven/g/a@1.0.0", false), true},
		"purl exact other":          {PurlRule("pkg:maven/g/a@1.0.1", false), false},
		"purl exact is literal":     {PurlRule("pkg:maven/g/a@1.0.*", false), false},
		"purl regex":                {PurlRule(`pkg:maven/g/a@.*`, true), true},
		"purl regex must match all": {PurlRule(`pkg:maven/g`, true), false},
		"purl regex alternation":    {PurlRule(`pkg:npm/x@1|pkg:maven/g/a@1\.0\.0`, true), true},
		"cve":                       {CveRule("CVE-2024-0001"), true},
		"cve other":                 {CveRule("CVE-2024-0002"), false},
		"cve of purl":               {CveOfPurlRule("CVE-2024-0001", "pkg:maven/g/a@1.0.0", false), true},
		"cve of purl wrong cve":     {CveOfPurlRule("CVE-2024-0002", "pkg:maven/g/a@1.0.0", false), false},
		"cve of purl wrong purl":    {CveOfPurlRule("CVE-2024-0001", "pkg:maven/g/b@1.0.0", false), false},
		"cve of purl regex":         {CveOfPurlRule("CVE-2024-0001", `pkg:maven/g/.+`, true), true},
	} {
		t.Run(name, func(t *testing.T) {
			set, err := NewSet(tc.rule)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, set.Rule(0).Matches(f))
			assert.Equal(t, tc.expected, tc.rule.Matches(f), "uncompiled rule")
		})
	}
}

func TestRuleMatchesIncompleteFinding(t *testing.T) {
	rule := CveRule("CVE-2024-0001")
	assert.False(t, rule.Matches(model.Finding{}))
}

func TestRuleExpiration(t *testing.T) {
	now := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)

	t.Run("never", func(t *testing.T) {
		rule := CveRule("CVE-1")
		assert.True(t, rule.NeverExpires())
		assert.True(t, rule.IsActive(now))
		assert.Equal(t, "never expires", rule.ExpirationLabel())
	})

	t.Run("expires today", func(t *testing.T) {
		rule := CveRule("CVE-1")
		rule.Expiration = time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
		assert.True(t, rule.IsActive(now))
		assert.False(t, rule.IsExpired(now))
		assert.Equal(t, "2024-06-15", rule.ExpirationLabel())
	})

	t.Run("expired yesterday", func(t *testing.T) {
		rule := CveRule("CVE-1")
		rule.Expiration = time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
		assert.True(t, rule.IsExpired(now))
		assert.False(t, rule.IsActive(now))
	})
}

func TestNewSetRejectsInvalidRules(t *testing.T) {
	for name, rule := range map[string]Rule{
		"purl without purl":    {Kind: ByPurl},
		"cve without cve":      {Kind: ByCve},
		"cve of purl only cve": {Kind: ByCveOfPurl, Cve: "CVE-1"},
		"unknown kind":         {Kind: "license", Purl: "x"},
		"bad pattern":          PurlRule("pkg:(", true),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewSet(CveRule("CVE-ok"), rule)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "suppression #2")
		})
	}
}

func TestSetFirstMatchUsesDeclarationOrder(t *testing.T) {
	expired := CveRule("CVE-2024-0001")
	expired.Expiration = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	set := MustNewSet(
		PurlRule("pkg:npm/other@1", false),
		expired,
		PurlRule(`pkg:maven/.*`, true),
	)

	i, ok := set.FirstMatch(finding("pkg:maven/g/a@1.0.0", "CVE-2024-0001"))
	require.True(t, ok)
	assert.Equal(t, 1, i, "expired rules still take part in matching")

	i, ok = set.FirstMatch(finding("pkg:maven/g/a@1.0.0", "CVE-2024-9999"))
	require.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = set.FirstMatch(finding("pkg:pypi/x@1", "CVE-2024-9999"))
	assert.False(t, ok)
}

func TestSetNilAndEmpty(t *testing.T) {
	var nilSet *Set
	assert.Equal(t, 0, nilSet.Len())
	assert.True(t, nilSet.IsEmpty())
	assert.Nil(t, nilSet.Rules())
	_, ok := nilSet.FirstMatch(finding("pkg:x", "CVE-1"))
	assert.False(t, ok)

	assert.True(t, Empty().IsEmpty())
	assert.Equal(t, "--- Custom Suppressions ---\n- None", Empty().Print(time.Now()))
}

func TestSetRulesReturnsCopy(t *testing.T) {
	set := MustNewSet(CveRule("CVE-1"))
	rules := set.Rules()
	rules[0].Cve = "CVE-2"
	assert.Equal(t, "CVE-1", set.Rule(0).Cve)
}

func TestSetSubsetKeepsOrder(t *testing.T) {
	set := MustNewSet(CveRule("CVE-1"), CveRule("CVE-2"), CveRule("CVE-3"))
	sub := set.Subset(func(i int, _ Rule) bool { return i != 1 })
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, "CVE-1", sub.Rule(0).Cve)
	assert.Equal(t, "CVE-3", sub.Rule(1).Cve)
}

func TestSetPrint(t *testing.T) {
	now := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	expired := CveOfPurlRule("CVE-2", "pkg:npm/.*", true)
	expired.Expiration = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	set := MustNewSet(PurlRule("pkg:npm/a@1", false), CveRule("CVE-1"), expired)
	assert.Equal(t, "--- Custom Suppressions ---\n"+
		"- By PURL [exact match]: [pkg:npm/a@1] [expired: no]\n"+
		"- By CVE: [CVE-1] [expired: no]\n"+
		"- By CVE: CVE-2 of PURL [as regex]: [pkg:npm/.*] [expired: yes]", set.Print(now))
}

func TestRuleIdentifier(t *testing.T) {
	assert.Equal(t, "[pkg:npm/a@1]", PurlRule("pkg:npm/a@1", false).Identifier())
	assert.Equal(t, "[CVE-1]", CveRule("CVE-1").Identifier())
	assert.Equal(t, "[CVE-1 of pkg:npm/a@1]", CveOfPurlRule("CVE-1", "pkg:npm/a@1", false).Identifier())
}
