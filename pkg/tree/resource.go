package tree

import (
	"github.com/goccy/go-json"
)

// Kind is StructureDefinition.kind.
type Kind string

// Structure definition kinds.
const (
	KindResource      Kind = "resource"
	KindComplexType   Kind = "complex-type"
	KindPrimitiveType Kind = "primitive-type"
	KindLogical       Kind = "logical"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindResource, KindComplexType, KindPrimitiveType, KindLogical:
		return true
	}
	return false
}

// BaseRef names the definition a profile constrains.
type BaseRef struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// ProfiledResource is a profile under edit. Root is populated only in memory;
// the differential is the durable source of truth.
type ProfiledResource struct {
	ID           string                     `json:"id,omitempty"`
	URL          string                     `json:"url"`
	Version      string                     `json:"version,omitempty"`
	Name         string                     `json:"name,omitempty"`
	Title        string                     `json:"title,omitempty"`
	Status       string                     `json:"status,omitempty"`
	Description  string                     `json:"description,omitempty"`
	Publisher    string                     `json:"publisher,omitempty"`
	FHIRVersion  string                     `json:"fhirVersion,omitempty"`
	Base         BaseRef                    `json:"base"`
	Kind         Kind                       `json:"kind,omitempty"`
	Type         string                     `json:"type,omitempty"`
	Abstract     bool                       `json:"abstract,omitempty"`
	Derivation   string                     `json:"derivation,omitempty"`
	Root         *ElementNode               `json:"-"`
	Differential []DifferentialElement      `json:"differential"`
	Unknown      map[string]json.RawMessage `json:"unknownFields,omitempty"`
}

// Persisted returns the durable form: a copy with the in-memory tree dropped.
func (r *ProfiledResource) Persisted() *ProfiledResource {
	out := *r
	out.Root = nil
	out.Differential = CloneDifferential(r.Differential)
	out.Unknown = cloneRaw(r.Unknown)
	return &out
}
