// Package model holds the Dependency-Track entities the gate reasons about.
package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Component struct {
	Id         uuid.UUID `json:"uuid"`
	Group      string    `json:"group,omitempty"`
	Name       string    `json:"name"`
	Version    string    `json:"version,omitempty"`
	PackageUrl string    `json:"purl,omitempty"`
}

// SameIdentity reports whether both components share group, name and version.
func (c Component) SameIdentity(other Component) bool {
	return c.Group == other.Group && c.Name == other.Name && c.Version == other.Version
}

func (c Component) String() string {
	if c.Group == "" {
		return fmt.Sprintf("%s@%s", c.Name, c.Version)
	}
	return fmt.Sprintf("%s:%s@%s", c.Group, c.Name, c.Version)
}

type Vulnerability struct {
	Id          uuid.UUID `json:"uuid"`
	VulnId      string    `json:"vulnId"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	Cvss        float32   `json:"cvssV3BaseScore,omitempty"`
	Severity    Severity  `json:"severity"`
	Cwe         *Cwe      `json:"cwe,omitempty"`
}

type Cwe struct {
	Id   int32  `json:"cweId"`
	Name string `json:"name"`
}

// Summary is the one-line form used in findings listings.
func (v *Vulnerability) Summary() string {
	return fmt.Sprintf("[%s] %s (%s)", v.Severity, v.VulnId, v.Source)
}

func (v *Vulnerability) ToUrl() string {
	url := ""
	switch v.Source {
	case "NVD":
		url = fmt.Sprintf("https://nvd.nist.gov/vuln/detail/%s", v.VulnId)
	case "GITHUB", "NPM":
		url = fmt.Sprintf("https://github.com/advisories/%s", v.VulnId)
	case "OSV":
		url = fmt.Sprintf("https://osv.dev/vulnerability/%s", v.VulnId)
	case "VULNDB":
		url = fmt.Sprintf("https://vuldb.com/?id.%s", v.VulnId)
	}
	return url
}

func (v *Vulnerability) ToMarkdown() string {
	if url := v.ToUrl(); url != "" {
		return fmt.Sprintf("[%s](%s)", v.VulnId, url)
	}
	return v.VulnId
}

// Finding is the unit the security gate evaluates. All three parts are
// required; a finding missing any of them is malformed.
type Finding struct {
	Component     *Component     `json:"component"`
	Vulnerability *Vulnerability `json:"vulnerability"`
	Analysis      *Analysis      `json:"analysis"`
	Matrix        string         `json:"matrix,omitempty"`
}

// Validate checks that every part of the finding is present.
func (f Finding) Validate() error {
	switch {
	case f.Component == nil:
		return errors.New("finding has no component")
	case f.Vulnerability == nil:
		return errors.Errorf("finding for %s has no vulnerability", f.Component.PackageUrl)
	case f.Analysis == nil:
		return errors.Errorf("finding %s for %s has no analysis", f.Vulnerability.VulnId, f.Component.PackageUrl)
	}
	return nil
}
