// Package store persists profiles in their durable form: resource metadata
// plus the differential, without the in-memory tree. Documents are written as
// JSON or YAML and read back from either.
package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/gofhir/profiler/pkg/tree"
)

// Format is a document encoding.
type Format int

// Supported formats.
const (
	JSON Format = iota
	YAML
)

// String returns the format name.
func (f Format) String() string {
	if f == YAML {
		return "yaml"
	}
	return "json"
}

// FormatFor picks the format of a file name by its extension.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Detect guesses the format of a document: JSON documents start with '{'.
func Detect(data []byte) Format {
	if t := bytes.TrimSpace(data); len(t) > 0 && t[0] == '{' {
		return JSON
	}
	return YAML
}

// Encode writes the durable form of resource.
func Encode(resource *tree.ProfiledResource, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(resource.Persisted(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	if format == JSON {
		return append(data, '\n'), nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("convert profile to yaml: %w", err)
	}
	blockStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a document written by Encode, in either format.
func Decode(data []byte) (*tree.ProfiledResource, error) {
	if Detect(data) == YAML {
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml profile: %w", err)
		}
		var buf bytes.Buffer
		if err := writeJSON(&buf, &doc); err != nil {
			return nil, err
		}
		data = buf.Bytes()
	}

	var resource tree.ProfiledResource
	if err := json.Unmarshal(data, &resource); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	if resource.URL == "" {
		return nil, fmt.Errorf("parse profile: url is required")
	}
	return &resource, nil
}

// Save writes resource to path in the format of its extension.
func Save(path string, resource *tree.ProfiledResource) error {
	data, err := Encode(resource, FormatFor(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads a profile document from path.
func Load(path string) (*tree.ProfiledResource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	resource, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return resource, nil
}

// blockStyle clears the flow style JSON input leaves on collections so the
// YAML reads as block mappings. Scalars keep the quoting of the source.
func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!str" && n.Style == yaml.DoubleQuotedStyle {
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// writeJSON renders a YAML node as JSON, keeping mapping key order.
func writeJSON(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return writeJSON(buf, n.Content[0])
	case yaml.AliasNode:
		return writeJSON(buf, n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, c := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, c); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		return writeScalar(buf, n)
	default:
		return fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
	return nil
}

func writeScalar(buf *bytes.Buffer, n *yaml.Node) error {
	var v any
	switch n.ShortTag() {
	case "!!null":
		buf.WriteString("null")
		return nil
	case "!!str":
		v = n.Value
	case "!!int", "!!float":
		// Keep the literal so decimal precision survives.
		if json.Valid([]byte(n.Value)) {
			buf.WriteString(n.Value)
			return nil
		}
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
	default:
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	buf.Write(data)
	return nil
}
