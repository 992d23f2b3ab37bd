package tree

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Source records where a node came from. It is set when the node is created or
// edited and is never inferred from content afterwards.
type Source int

const (
	// Inherited nodes come unchanged from the base definition.
	Inherited Source = iota
	// Modified nodes exist in the base and carry profile edits.
	Modified
	// Added nodes do not exist in the base.
	Added
)

// String returns the lowercase name of the source.
func (s Source) String() string {
	switch s {
	case Inherited:
		return "inherited"
	case Modified:
		return "modified"
	case Added:
		return "added"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// IsModified reports whether the node belongs in a differential.
func (s Source) IsModified() bool {
	return s == Modified || s == Added
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(b []byte) error {
	switch string(b) {
	case "inherited":
		*s = Inherited
	case "modified":
		*s = Modified
	case "added":
		*s = Added
	default:
		return fmt.Errorf("unknown source %q", b)
	}
	return nil
}

// Baseline is the content a node had before profile edits. Differential
// extraction emits only what differs from it.
type Baseline struct {
	Constraints Constraints
	Slicing     *Slicing
	Unknown     map[string]json.RawMessage
}

// Clone returns a deep copy; nil stays nil.
func (b *Baseline) Clone() *Baseline {
	if b == nil {
		return nil
	}
	return &Baseline{
		Constraints: b.Constraints.Clone(),
		Slicing:     b.Slicing.Clone(),
		Unknown:     cloneRaw(b.Unknown),
	}
}

// ElementNode is one element at one slice-qualified address.
type ElementNode struct {
	// ID is an opaque identifier that survives edits.
	ID string `json:"id"`
	// Path is the slice-qualified address, e.g. Patient.name:official.family.
	Path string `json:"path"`
	// ElementID is the explicit element id from the source document, if any.
	ElementID   string                     `json:"elementId,omitempty"`
	Source      Source                     `json:"source"`
	Constraints Constraints                `json:"constraints"`
	Slicing     *Slicing                   `json:"slicing,omitempty"`
	Slices      []*SliceNode               `json:"slices,omitempty"`
	Children    []*ElementNode             `json:"children,omitempty"`
	Unknown     map[string]json.RawMessage `json:"unknownFields,omitempty"`
	Baseline    *Baseline                  `json:"-"`
}

// SliceNode is a named slice of its parent element.
type SliceNode struct {
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Source  Source       `json:"source"`
	Element *ElementNode `json:"element"`
}

// NewElement creates a node with a fresh id.
func NewElement(path string, source Source) *ElementNode {
	return &ElementNode{ID: uuid.NewString(), Path: path, Source: source}
}

// Name returns the element name of the node's last segment, without slice.
func (n *ElementNode) Name() string {
	name, _, _ := cutSlice(LastSegment(n.Path))
	return name
}

// FHIRPath returns the node's path with slice qualifiers removed.
func (n *ElementNode) FHIRPath() string {
	return StripSlices(n.Path)
}

// Child returns the direct child with the given element name.
func (n *ElementNode) Child(name string) *ElementNode {
	want := ChildPath(n.Path, name)
	for _, c := range n.Children {
		if c.Path == want {
			return c
		}
	}
	return nil
}

// EnsureChild returns the named child, creating it with the given source when
// missing. created reports whether a node was added.
func (n *ElementNode) EnsureChild(name string, source Source) (child *ElementNode, created bool) {
	if c := n.Child(name); c != nil {
		return c, false
	}
	c := NewElement(ChildPath(n.Path, name), source)
	n.Children = append(n.Children, c)
	return c, true
}

// Slice returns the slice with the given name.
func (n *ElementNode) Slice(name string) *SliceNode {
	for _, s := range n.Slices {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// EnsureSlice returns the named slice, creating it when missing. The new slice
// root element has the address base:name and no content; init, when non-nil,
// runs once on a newly created slice before it is attached.
func (n *ElementNode) EnsureSlice(name string, source Source, init func(*SliceNode)) (slice *SliceNode, created bool) {
	if s := n.Slice(name); s != nil {
		return s, false
	}
	path := SlicePath(n.Path, name)
	s := &SliceNode{Name: name, Path: path, Source: source, Element: NewElement(path, source)}
	if init != nil {
		init(s)
	}
	n.Slices = append(n.Slices, s)
	return s, true
}

// Promote updates provenance after an edit: a freshly created node is Added,
// an inherited node becomes Modified, and an Added node stays Added.
func (n *ElementNode) Promote(created bool) {
	switch {
	case created:
		n.Source = Added
	case n.Source == Inherited:
		n.Source = Modified
	}
}

// Promote updates the slice and its root element together.
func (s *SliceNode) Promote(created bool) {
	s.Element.Promote(created)
	s.Source = s.Element.Source
}

// CaptureBaseline records the node's current content as its baseline.
func (n *ElementNode) CaptureBaseline() {
	n.Baseline = &Baseline{
		Constraints: n.Constraints.Clone(),
		Slicing:     n.Slicing.Clone(),
		Unknown:     cloneRaw(n.Unknown),
	}
}

// ForgetBaseline drops the given fields from the node's baseline so that they
// are reported as differential content even when they equal the base.
func (n *ElementNode) ForgetBaseline(c Constraints, slicing bool, unknown map[string]json.RawMessage) {
	if n.Baseline == nil {
		return
	}
	n.Baseline.Constraints.Forget(c)
	if slicing {
		n.Baseline.Slicing = nil
	}
	for k := range unknown {
		delete(n.Baseline.Unknown, k)
	}
}

// Changes returns the content that differs from the node's baseline. A node
// without a baseline reports all of its content.
func (n *ElementNode) Changes() (Constraints, *Slicing, map[string]json.RawMessage) {
	if n.Baseline == nil {
		return n.Constraints.Clone(), n.Slicing.Clone(), cloneRaw(n.Unknown)
	}
	c := n.Constraints.Diff(&n.Baseline.Constraints)
	var sl *Slicing
	if n.Slicing != nil && !n.Slicing.Equal(n.Baseline.Slicing) {
		sl = n.Slicing.Clone()
	}
	var unknown map[string]json.RawMessage
	for k, v := range n.Unknown {
		if base, ok := n.Baseline.Unknown[k]; ok && JSONEqual(base, v) {
			continue
		}
		if unknown == nil {
			unknown = make(map[string]json.RawMessage)
		}
		unknown[k] = v
	}
	return c, sl, unknown
}

// HasChanges reports whether Changes would return any content.
func (n *ElementNode) HasChanges() bool {
	c, sl, unknown := n.Changes()
	return !c.IsEmpty() || sl != nil || len(unknown) > 0
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func cutSlice(segment string) (name, slice string, ok bool) {
	return strings.Cut(segment, ":")
}
