package model

import "strings"

type Severity string

const (
	SeverityCritical   Severity = "CRITICAL"
	SeverityHigh       Severity = "HIGH"
	SeverityMedium     Severity = "MEDIUM"
	SeverityLow        Severity = "LOW"
	SeverityInfo       Severity = "INFO"
	SeverityUnassigned Severity = "UNASSIGNED"
)

// GatedSeverities are the buckets a threshold exists for, most severe first.
var GatedSeverities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity normalises a severity label. Unknown labels map to UNASSIGNED.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	case SeverityInfo:
		return SeverityInfo
	default:
		return SeverityUnassigned
	}
}

// Rank orders severities, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

// Color is the attachment color used when a finding of this severity is
// rendered in chat.
func (s Severity) Color() string {
	color := "#50F100" // green

	switch s {
	case SeverityLow:
		color = "#ADD8E6" // light blue
	case SeverityMedium:
		color = "#FF8000" // orange
	case SeverityHigh:
		color = "#FF0000" // red
	case SeverityCritical:
		color = "#800000" // dark red
	}
	return color
}
