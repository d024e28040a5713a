// Package suppression implements the locally maintained allow-list of
// findings that must not count against the security gate.
package suppression

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// Kind is the discriminator of a Rule. It is written as the "by" field of a
// suppressions document.
type Kind string

const (
	ByPurl      Kind = "purl"
	ByCve       Kind = "cve"
	ByCveOfPurl Kind = "cve-of-purl"
)

// Rule silences findings by package URL, by vulnerability id, or by both.
// Which fields are meaningful depends on Kind. A zero Expiration means the
// rule never expires.
type Rule struct {
	Kind       Kind
	Purl       string
	Regex      bool
	Cve        string
	Notes      string
	Expiration time.Time
	model.Disposition

	pattern *regexp.Regexp
}

func PurlRule(purl string, regex bool) Rule {
	return Rule{Kind: ByPurl, Purl: purl, Regex: regex}
}

func CveRule(cve string) Rule {
	return Rule{Kind: ByCve, Cve: cve}
}

func CveOfPurlRule(cve, purl string, regex bool) Rule {
	return Rule{Kind: ByCveOfPurl, Cve: cve, Purl: purl, Regex: regex}
}

// compile validates the rule for its kind and prepares the purl pattern.
func (r Rule) compile() (Rule, error) {
	switch r.Kind {
	case ByPurl:
		if r.Purl == "" {
			return r, errors.New("purl suppression without purl")
		}
	case ByCve:
		if r.Cve == "" {
			return r, errors.New("cve suppression without cve")
		}
	case ByCveOfPurl:
		if r.Cve == "" || r.Purl == "" {
			return r, errors.New("cve-of-purl suppression needs both cve and purl")
		}
	default:
		return r, errors.Errorf("unknown suppression type %q", r.Kind)
	}

	if r.Regex && r.Kind != ByCve {
		pattern, err := regexp.Compile(anchored(r.Purl))
		if err != nil {
			return r, errors.Wrapf(err, "invalid purl pattern %q", r.Purl)
		}
		r.pattern = pattern
	}
	return r, nil
}

func anchored(pattern string) string {
	return `^(?:` + pattern + `)$`
}

// Matches reports whether the rule silences the finding. Expiration is not
// considered here.
func (r Rule) Matches(f model.Finding) bool {
	if f.Component == nil || f.Vulnerability == nil {
		return false
	}

	switch r.Kind {
	case ByPurl:
		return r.matchesPurl(f.Component.PackageUrl)
	case ByCve:
		return r.Cve == f.Vulnerability.VulnId
	case ByCveOfPurl:
		return r.Cve == f.Vulnerability.VulnId && r.matchesPurl(f.Component.PackageUrl)
	}
	return false
}

func (r Rule) matchesPurl(purl string) bool {
	if !r.Regex {
		return r.Purl == purl
	}

	pattern := r.pattern
	if pattern == nil {
		var err error
		if pattern, err = regexp.Compile(anchored(r.Purl)); err != nil {
			return false
		}
	}
	return pattern.MatchString(purl)
}

// NeverExpires reports whether the rule carries no expiration date.
func (r Rule) NeverExpires() bool {
	return r.Expiration.IsZero()
}

// IsExpired reports whether the calendar day of now is strictly after the
// expiration date.
func (r Rule) IsExpired(now time.Time) bool {
	if r.NeverExpires() {
		return false
	}
	return dateOf(now).After(dateOf(r.Expiration))
}

func (r Rule) IsActive(now time.Time) bool {
	return !r.IsExpired(now)
}

// ExpirationLabel renders the expiration date for reports.
func (r Rule) ExpirationLabel() string {
	if r.NeverExpires() {
		return "never expires"
	}
	return r.Expiration.Format(dateLayout)
}

// Identifier is the short bracketed form used in report lines.
func (r Rule) Identifier() string {
	switch r.Kind {
	case ByCve:
		return "[" + r.Cve + "]"
	case ByCveOfPurl:
		return "[" + r.Cve + " of " + r.Purl + "]"
	default:
		return "[" + r.Purl + "]"
	}
}

// Describe renders the rule for the configuration summary.
func (r Rule) Describe(now time.Time) string {
	var b strings.Builder
	switch r.Kind {
	case ByPurl:
		fmt.Fprintf(&b, "- By PURL %s: [%s]", matchMode(r.Regex), r.Purl)
	case ByCve:
		fmt.Fprintf(&b, "- By CVE: [%s]", r.Cve)
	case ByCveOfPurl:
		fmt.Fprintf(&b, "- By CVE: %s of PURL %s: [%s]", r.Cve, matchMode(r.Regex), r.Purl)
	}
	expired := "no"
	if r.IsExpired(now) {
		expired = "yes"
	}
	fmt.Fprintf(&b, " [expired: %s]", expired)
	return b.String()
}

func matchMode(regex bool) string {
	if regex {
		return "[as regex]"
	}
	return "[exact match]"
}

const dateLayout = "2006-01-02"

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
