package tree

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Walk visits n and every descendant depth-first: a node, then its children,
// then each slice subtree in slice order. slice is non-nil when the visited
// node is the root element of that slice.
func Walk(n *ElementNode, fn func(n *ElementNode, slice *SliceNode)) {
	walk(n, nil, fn)
}

func walk(n *ElementNode, slice *SliceNode, fn func(*ElementNode, *SliceNode)) {
	if n == nil {
		return
	}
	fn(n, slice)
	for _, c := range n.Children {
		walk(c, nil, fn)
	}
	for _, s := range n.Slices {
		walk(s.Element, s, fn)
	}
}

// Count returns the number of elements in the tree, counting every slice root
// and every slice child.
func Count(n *ElementNode) int {
	count := 0
	Walk(n, func(*ElementNode, *SliceNode) { count++ })
	return count
}

// Locate navigates from root along addr. The first step must name the root.
func Locate(root *ElementNode, addr Address) *ElementNode {
	if root == nil || len(addr) == 0 || addr[0].Slice != "" || addr[0].Name != root.Path {
		return nil
	}
	cur := root
	for _, st := range addr[1:] {
		cur = cur.Child(st.Name)
		if cur == nil {
			return nil
		}
		if st.Slice != "" {
			s := cur.Slice(st.Slice)
			if s == nil {
				return nil
			}
			cur = s.Element
		}
	}
	return cur
}

// Find returns the node at the given slice-qualified address.
func Find(root *ElementNode, addr string) *ElementNode {
	a, err := ParseAddress(addr)
	if err != nil {
		return nil
	}
	return Locate(root, a)
}

// FindSlice returns the slice whose root element has the given address.
func FindSlice(root *ElementNode, addr string) *SliceNode {
	a, err := ParseAddress(addr)
	if err != nil || !a.IsSliced() || a.Last().Slice == "" {
		return nil
	}
	last := a.Last()
	parent := Locate(root, append(a.Parent(), Step{Name: last.Name}))
	if parent == nil {
		return nil
	}
	return parent.Slice(last.Slice)
}

// Index maps every node address in the tree to its node.
func Index(root *ElementNode) map[string]*ElementNode {
	idx := make(map[string]*ElementNode)
	Walk(root, func(n *ElementNode, _ *SliceNode) { idx[n.Path] = n })
	return idx
}

// Clone deep-copies a subtree. Every copy gets a fresh id; provenance and
// baselines are kept.
func Clone(n *ElementNode) *ElementNode {
	return cloneNode(n, nil)
}

// CloneRewrite deep-copies a subtree and replaces the address prefix from with
// to on every copied node, e.g. Patient.name.family becomes
// Patient.name:official.family. Explicit element ids are dropped.
func CloneRewrite(n *ElementNode, from, to string) *ElementNode {
	return cloneNode(n, func(path string) string {
		if path == from {
			return to
		}
		if strings.HasPrefix(path, from) {
			rest := path[len(from):]
			if rest[0] == '.' || rest[0] == ':' {
				return to + rest
			}
		}
		return path
	})
}

func cloneNode(n *ElementNode, rewrite func(string) string) *ElementNode {
	if n == nil {
		return nil
	}
	out := &ElementNode{
		ID:          uuid.NewString(),
		Path:        n.Path,
		ElementID:   n.ElementID,
		Source:      n.Source,
		Constraints: n.Constraints.Clone(),
		Slicing:     n.Slicing.Clone(),
		Unknown:     cloneRaw(n.Unknown),
		Baseline:    n.Baseline.Clone(),
	}
	if rewrite != nil {
		out.Path = rewrite(n.Path)
		out.ElementID = ""
	}
	if len(n.Children) > 0 {
		out.Children = make([]*ElementNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = cloneNode(c, rewrite)
		}
	}
	if len(n.Slices) > 0 {
		out.Slices = make([]*SliceNode, len(n.Slices))
		for i, s := range n.Slices {
			el := cloneNode(s.Element, rewrite)
			out.Slices[i] = &SliceNode{Name: s.Name, Path: el.Path, Source: s.Source, Element: el}
		}
	}
	return out
}

// ResetProvenance marks every node of a base tree Inherited and records its
// current content as the baseline.
func ResetProvenance(root *ElementNode) {
	Walk(root, func(n *ElementNode, s *SliceNode) {
		n.Source = Inherited
		if s != nil {
			s.Source = Inherited
		}
		n.CaptureBaseline()
	})
}

// EqualContent reports whether two trees have the same shape, addresses,
// provenance and content. Node ids and explicit element ids are ignored.
func EqualContent(a, b *ElementNode) bool {
	return ContentDifference(a, b) == ""
}

// ContentDifference describes the first difference found between two trees,
// or returns "" when EqualContent would hold.
func ContentDifference(a, b *ElementNode) string {
	switch {
	case a == nil && b == nil:
		return ""
	case a == nil || b == nil:
		return "one tree is nil"
	case a.Path != b.Path:
		return fmt.Sprintf("path %q != %q", a.Path, b.Path)
	case a.Source != b.Source:
		return fmt.Sprintf("%s: source %s != %s", a.Path, a.Source, b.Source)
	case !a.Constraints.Equal(&b.Constraints):
		return fmt.Sprintf("%s: constraints differ (%v vs %v)", a.Path, a.Constraints.Fields(), b.Constraints.Fields())
	case !a.Slicing.Equal(b.Slicing):
		return fmt.Sprintf("%s: slicing differs", a.Path)
	case !rawMapEqual(a.Unknown, b.Unknown):
		return fmt.Sprintf("%s: unknown fields differ", a.Path)
	case len(a.Children) != len(b.Children):
		return fmt.Sprintf("%s: %d children != %d", a.Path, len(a.Children), len(b.Children))
	case len(a.Slices) != len(b.Slices):
		return fmt.Sprintf("%s: %d slices != %d", a.Path, len(a.Slices), len(b.Slices))
	}
	for i := range a.Children {
		if d := ContentDifference(a.Children[i], b.Children[i]); d != "" {
			return d
		}
	}
	for i := range a.Slices {
		sa, sb := a.Slices[i], b.Slices[i]
		if sa.Name != sb.Name || sa.Source != sb.Source {
			return fmt.Sprintf("%s: slice %s/%s != %s/%s", a.Path, sa.Name, sa.Source, sb.Name, sb.Source)
		}
		if d := ContentDifference(sa.Element, sb.Element); d != "" {
			return d
		}
	}
	return ""
}
