package bom

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/pkg/errors"

	"github.com/srkgupta/dependency-track-gate/internal/model"
)

// FormatOf guesses the CycloneDX encoding of a document from its first
// significant byte.
func FormatOf(data []byte) cdx.BOMFileFormat {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '<' {
		return cdx.BOMFileFormatXML
	}
	return cdx.BOMFileFormatJSON
}

// Decode parses a CycloneDX document in JSON or XML.
func Decode(data []byte) (*cdx.BOM, error) {
	doc := new(cdx.BOM)
	if err := cdx.NewBOMDecoder(bytes.NewReader(data), FormatOf(data)).Decode(doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode CycloneDX document")
	}
	return doc, nil
}

// ParseInventory returns the components of a CycloneDX document, nested
// components included, in document order.
func ParseInventory(data []byte) ([]model.Component, error) {
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Components(doc), nil
}

func ReadInventory(path string) ([]model.Component, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read BOM")
	}
	components, err := ParseInventory(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return components, nil
}

func Components(doc *cdx.BOM) []model.Component {
	var out []model.Component
	if doc == nil || doc.Components == nil {
		return out
	}
	var walk func([]cdx.Component)
	walk = func(components []cdx.Component) {
		for _, c := range components {
			out = append(out, model.Component{
				Group:      c.Group,
				Name:       c.Name,
				Version:    c.Version,
				PackageUrl: c.PackageURL,
			})
			if c.Components != nil {
				walk(*c.Components)
			}
		}
	}
	walk(*doc.Components)
	return out
}

// WriteJSON encodes the result with indentation.
func WriteJSON(w io.Writer, r *DiffResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(r), "failed to encode diff")
}

// WriteFile stores the result as JSON when path ends in .json and as text
// otherwise.
func WriteFile(path string, r *DiffResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create diff file")
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return WriteJSON(f, r)
	}
	_, err = io.WriteString(f, r.String()+"\n")
	return errors.Wrap(err, "failed to write diff")
}
