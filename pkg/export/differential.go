package export

import (
	"github.com/gofhir/profiler/pkg/canonical"
	"github.com/gofhir/profiler/pkg/tree"
)

// GenerateDifferential emits the minimal element set describing the profile:
// nodes that are Modified or Added or carry changes against their baseline,
// every slice root, and the ancestors needed to reach them. The root is
// always present. Ancestors emitted only to reach a descendant carry id and
// path alone.
func GenerateDifferential(root *tree.ElementNode, order *canonical.PathOrder) []canonical.Object {
	if root == nil {
		return nil
	}
	var visit func(n *tree.ElementNode, slice *tree.SliceNode, isRoot bool) []canonical.Object
	visit = func(n *tree.ElementNode, slice *tree.SliceNode, isRoot bool) []canonical.Object {
		var below []canonical.Object
		for _, c := range n.Children {
			below = append(below, visit(c, nil, false)...)
		}
		for _, s := range n.Slices {
			below = append(below, visit(s.Element, s, false)...)
		}

		content := ChangedContent(n)
		own := n.Source.IsModified() || !content.IsEmpty()
		if !own && slice == nil && !isRoot && len(below) == 0 {
			return nil
		}
		if !own {
			content = ElementContent{}
		}
		return append([]canonical.Object{SerializeElement(n, slice, content)}, below...)
	}

	elements := visit(root, nil, true)
	canonical.SortElements(elements, order)
	return elements
}
