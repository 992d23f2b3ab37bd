// Package translate renders canonical StructureDefinition JSON as YAML. Key
// order of the canonical export is kept, so the YAML reads in the same order.
package translate

import (
	"bytes"
	"context"
	"fmt"

	gyaml "github.com/goccy/go-yaml"

	"github.com/gofhir/profiler/pkg/bridge"
)

// YAML translates canonical JSON to YAML.
type YAML struct {
	indent         int
	indentSequence bool
}

var _ bridge.SchemaTranslator = (*YAML)(nil)

// Option configures a YAML translator.
type Option func(*YAML)

// WithIndent sets the indentation width.
func WithIndent(n int) Option {
	return func(y *YAML) {
		if n > 0 {
			y.indent = n
		}
	}
}

// WithIndentSequence indents sequence items under their key.
func WithIndentSequence(on bool) Option {
	return func(y *YAML) {
		y.indentSequence = on
	}
}

// NewYAML creates a translator with two-space indentation.
func NewYAML(opts ...Option) *YAML {
	y := &YAML{indent: 2, indentSequence: true}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Translate converts a JSON document to YAML.
func (y *YAML) Translate(ctx context.Context, canonical []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc gyaml.MapSlice
	if err := gyaml.UnmarshalWithOptions(canonical, &doc, gyaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parse canonical document: %w", err)
	}

	var buf bytes.Buffer
	enc := gyaml.NewEncoder(&buf, gyaml.Indent(y.indent), gyaml.IndentSequence(y.indentSequence))
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToJSON converts YAML produced by Translate back to JSON. Key order is kept.
func ToJSON(data []byte) ([]byte, error) {
	out, err := gyaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return bytes.TrimSpace(out), nil
}
