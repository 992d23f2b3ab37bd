package importer

import (
	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/errs"
	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/tree"
)

// BuildTree assembles the unsliced elements into a tree rooted at the first
// element. Elements may appear in any order: each one is bucketed under its
// parent address and attached once the parent exists. A node is Modified when
// its address is in modified, Inherited otherwise. Elements with slice
// qualifiers are left to ImportSlicing.
func BuildTree(elements []*Element, modified map[string]bool, res *issue.Result) (*tree.ElementNode, error) {
	if len(elements) == 0 {
		return nil, errs.MissingField("", "element")
	}

	first := elements[0]
	var root *tree.ElementNode
	rest := elements[1:]
	if len(first.Address) == 1 && !isSliced(first) {
		root = newNode(first, modified)
	} else {
		// No root element; synthesize one from the first step.
		root = tree.NewElement(rootName(first.Address), tree.Inherited)
		rest = elements
	}

	buckets := make(map[string][]*Element)
	var pending []*Element
	for _, el := range rest {
		if isSliced(el) {
			continue
		}
		if rootName(el.Address) != root.Path {
			return nil, errs.InvalidPath(el.Key(), "element is not below root %s", root.Path)
		}
		if len(el.Address) == 1 {
			// A second root entry.
			apply(root, el, res)
			continue
		}
		parent := el.Address.Parent().String()
		buckets[parent] = append(buckets[parent], el)
		pending = append(pending, el)
	}

	attach(root, buckets, modified, res)

	// Elements whose parent never appeared get placeholder ancestors.
	for _, el := range pending {
		parent := el.Address.Parent()
		if _, waiting := buckets[parent.String()]; !waiting {
			continue
		}
		if node := ensurePath(root, parent); node != nil {
			attach(node, buckets, modified, res)
		}
	}
	return root, nil
}

// attach drains the bucket of n and recurses into every attached child.
func attach(n *tree.ElementNode, buckets map[string][]*Element, modified map[string]bool, res *issue.Result) {
	children, ok := buckets[n.Path]
	if !ok {
		return
	}
	delete(buckets, n.Path)
	for _, el := range children {
		child := n.Child(el.Address.Last().Name)
		if child != nil {
			apply(child, el, res)
		} else {
			child = newNode(el, modified)
			n.Children = append(n.Children, child)
		}
		attach(child, buckets, modified, res)
	}
}

// ensurePath walks addr from the root, creating empty Inherited nodes for
// missing unsliced steps. Sliced steps must already exist.
func ensurePath(root *tree.ElementNode, addr tree.Address) *tree.ElementNode {
	cur := root
	for _, st := range addr[1:] {
		cur, _ = cur.EnsureChild(st.Name, tree.Inherited)
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

func newNode(el *Element, modified map[string]bool) *tree.ElementNode {
	source := tree.Inherited
	if modified[el.Key()] {
		source = tree.Modified
	}
	n := tree.NewElement(el.Key(), source)
	n.ElementID = el.ID
	n.Constraints = el.Constraints.Clone()
	n.Unknown = cloneUnknown(el.Unknown)
	return n
}

// apply merges a duplicate definition of an address into its existing node.
func apply(n *tree.ElementNode, el *Element, res *issue.Result) {
	n.Constraints.Overlay(el.Constraints)
	for k, v := range el.Unknown {
		if n.Unknown == nil {
			n.Unknown = make(map[string]json.RawMessage)
		}
		n.Unknown[k] = v
	}
	if res != nil {
		res.Add(issue.DiagDuplicateElement, map[string]any{"path": el.Key()}, el.Key())
	}
}

func cloneUnknown(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
