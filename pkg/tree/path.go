package tree

import (
	"fmt"
	"strings"
	"sync"
)

// Step is one dotted segment of an element address: the element name and,
// when the segment selects a slice, the slice name ("name:official").
type Step struct {
	Name  string
	Slice string
}

// String renders the step as it appears in an address.
func (s Step) String() string {
	if s.Slice == "" {
		return s.Name
	}
	return s.Name + ":" + s.Slice
}

// Address is a parsed, slice-qualified element address such as
// Patient.name:official.family. It is parsed once and navigated step by step.
type Address []Step

// ParseAddress splits an element address into steps.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return nil, fmt.Errorf("empty address")
	}
	segments := strings.Split(s, ".")
	addr := make(Address, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("address %q has an empty segment", s)
		}
		name, slice, sliced := strings.Cut(seg, ":")
		switch {
		case name == "":
			return nil, fmt.Errorf("address %q has a segment without element name", s)
		case sliced && slice == "":
			return nil, fmt.Errorf("address %q has an empty slice name", s)
		case strings.Contains(slice, ":"):
			return nil, fmt.Errorf("address %q selects more than one slice in segment %q", s, seg)
		}
		addr = append(addr, Step{Name: name, Slice: slice})
	}
	return addr, nil
}

// MustParseAddress is like ParseAddress but panics on error. Intended for tests
// and package-level fixtures.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the slice-qualified address.
func (a Address) String() string {
	return BuildPath(func(b *PathBuilder) {
		for _, st := range a {
			b.AppendWithDot(st.Name)
			if st.Slice != "" {
				b.AppendSlice(st.Slice)
			}
		}
	})
}

// Path renders the address with slice qualifiers removed, which is the
// element path used in FHIR ElementDefinition.path.
func (a Address) Path() string {
	return BuildPath(func(b *PathBuilder) {
		for _, st := range a {
			b.AppendWithDot(st.Name)
		}
	})
}

// Parent returns the address without its last step.
func (a Address) Parent() Address {
	if len(a) == 0 {
		return nil
	}
	return a[:len(a)-1]
}

// Last returns the final step.
func (a Address) Last() Step {
	if len(a) == 0 {
		return Step{}
	}
	return a[len(a)-1]
}

// IsSliced reports whether any step selects a slice.
func (a Address) IsSliced() bool {
	for _, st := range a {
		if st.Slice != "" {
			return true
		}
	}
	return false
}

// SplitSlice splits the address at its first sliced step into the sliced
// element, the slice name and the remaining child steps.
func (a Address) SplitSlice() (base Address, slice string, child Address, ok bool) {
	for i, st := range a {
		if st.Slice == "" {
			continue
		}
		base = make(Address, i+1)
		copy(base, a[:i+1])
		base[i].Slice = ""
		return base, st.Slice, a[i+1:], true
	}
	return a, "", nil, false
}

// ChildPath joins a parent address and a child element name.
func ChildPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// SlicePath qualifies an element address with a slice name.
func SlicePath(base, slice string) string {
	return base + ":" + slice
}

// StripSlices removes slice qualifiers from an address without validating it.
func StripSlices(addr string) string {
	if !strings.Contains(addr, ":") {
		return addr
	}
	segments := strings.Split(addr, ".")
	for i, seg := range segments {
		if name, _, ok := strings.Cut(seg, ":"); ok {
			segments[i] = name
		}
	}
	return strings.Join(segments, ".")
}

// LastSegment returns the text after the last dot.
func LastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ParentPath returns all but the last dotted segment, or "" for a root path.
func ParentPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return ""
}

// PathBuilder builds element addresses in a reusable byte buffer.
type PathBuilder struct {
	buf []byte
}

var pathBuilderPool = sync.Pool{
	New: func() any {
		return &PathBuilder{buf: make([]byte, 0, 128)}
	},
}

// AcquirePathBuilder gets a PathBuilder from the pool.
// Call Release() when done to return it to the pool.
func AcquirePathBuilder() *PathBuilder {
	pb := pathBuilderPool.Get().(*PathBuilder)
	pb.buf = pb.buf[:0]
	return pb
}

// Release returns the PathBuilder to the pool.
func (b *PathBuilder) Release() {
	if b == nil {
		return
	}
	// Don't keep oversized buffers
	if cap(b.buf) <= 4096 {
		pathBuilderPool.Put(b)
	}
}

// AppendWithDot appends a segment with a leading dot if the buffer is not empty.
func (b *PathBuilder) AppendWithDot(part string) {
	if len(b.buf) > 0 {
		b.buf = append(b.buf, '.')
	}
	b.buf = append(b.buf, part...)
}

// AppendSlice appends a ":slice" qualifier to the current segment.
func (b *PathBuilder) AppendSlice(name string) {
	b.buf = append(b.buf, ':')
	b.buf = append(b.buf, name...)
}

// String returns the built path.
func (b *PathBuilder) String() string {
	return string(b.buf)
}

// BuildPath builds a path using a pooled PathBuilder.
func BuildPath(fn func(*PathBuilder)) string {
	pb := AcquirePathBuilder()
	defer pb.Release()
	fn(pb)
	return pb.String()
}
