package suppression

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf picks the document format from a file extension.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

type document struct {
	Suppressions []record `json:"suppressions" yaml:"suppressions"`
}

type record struct {
	By            Kind                `json:"by" yaml:"by"`
	Purl          string              `json:"purl,omitempty" yaml:"purl,omitempty"`
	Regex         bool                `json:"regex,omitempty" yaml:"regex,omitempty"`
	Cve           string              `json:"cve,omitempty" yaml:"cve,omitempty"`
	Notes         string              `json:"notes,omitempty" yaml:"notes,omitempty"`
	Expiration    string              `json:"expiration,omitempty" yaml:"expiration,omitempty"`
	State         model.State         `json:"state,omitempty" yaml:"state,omitempty"`
	Justification model.Justification `json:"justification,omitempty" yaml:"justification,omitempty"`
	Response      model.Response      `json:"response,omitempty" yaml:"response,omitempty"`
}

func (r record) rule() (Rule, error) {
	expiration, err := parseExpiration(r.Expiration)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		Kind:       r.By,
		Purl:       r.Purl,
		Regex:      r.Regex,
		Cve:        r.Cve,
		Notes:      r.Notes,
		Expiration: expiration,
		Disposition: model.Disposition{
			State:         r.State,
			Justification: r.Justification,
			Response:      r.Response,
		},
	}, nil
}

func recordOf(r Rule) record {
	rec := record{
		By:            r.Kind,
		Notes:         r.Notes,
		State:         r.State,
		Justification: r.Justification,
		Response:      r.Response,
	}
	switch r.Kind {
	case ByPurl:
		rec.Purl, rec.Regex = r.Purl, r.Regex
	case ByCve:
		rec.Cve = r.Cve
	case ByCveOfPurl:
		rec.Cve, rec.Purl, rec.Regex = r.Cve, r.Purl, r.Regex
	}
	if !r.NeverExpires() {
		rec.Expiration = r.Expiration.Format(dateLayout)
	}
	return rec
}

func parseExpiration(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "never") {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid expiration %q, expected yyyy-mm-dd", value)
	}
	return t, nil
}

// Parse decodes a suppressions document. Unknown fields are ignored.
func Parse(data []byte, format Format) (*Set, error) {
	var doc document
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode yaml suppressions")
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode json suppressions")
		}
	}

	rules := make([]Rule, 0, len(doc.Suppressions))
	for i, rec := range doc.Suppressions {
		rule, err := rec.rule()
		if err != nil {
			return nil, errors.Wrapf(err, "suppression #%d", i+1)
		}
		rules = append(rules, rule)
	}
	return NewSet(rules...)
}

// Read loads a suppressions file, failing on any problem.
func Read(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read suppressions file")
	}
	set, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return set, nil
}

// Load is the lenient form of Read. A missing or malformed file yields an
// empty set and a warning; an empty path yields an empty set silently.
func Load(path string, logger *zap.SugaredLogger) *Set {
	if path == "" {
		return Empty()
	}
	set, err := Read(path)
	if err != nil {
		logger.Warnw("Ignoring suppressions, continuing without any", "path", path, "error", err.Error())
		return Empty()
	}
	logger.Debugw("Loaded suppressions", "path", path, "count", set.Len())
	return set
}

// Encode renders the set in the same shape Parse accepts.
func Encode(s *Set, format Format) ([]byte, error) {
	doc := document{Suppressions: []record{}}
	for _, rule := range s.Rules() {
		doc.Suppressions = append(doc.Suppressions, recordOf(rule))
	}

	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, "failed to encode yaml suppressions")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to encode yaml suppressions")
		}
		return buf.Bytes(), nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode json suppressions")
	}
	return append(data, '\n'), nil
}

// Write stores the set at path, creating parent directories. The format
// follows the file extension.
func Write(path string, s *Set) error {
	data, err := Encode(s, FormatOf(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "failed to create suppressions directory")
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write suppressions file")
	}
	return nil
}
