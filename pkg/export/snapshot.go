package export

import (
	"github.com/gofhir/profiler/pkg/canonical"
	"github.com/gofhir/profiler/pkg/errs"
	"github.com/gofhir/profiler/pkg/tree"
)

// GenerateSnapshot flattens the whole tree, inherited nodes included, into
// element objects sorted by order. Every slice root and slice child is
// emitted. The element count is checked against the tree; a mismatch is a
// SnapshotGeneration error.
func GenerateSnapshot(root *tree.ElementNode, order *canonical.PathOrder) ([]canonical.Object, error) {
	var elements []canonical.Object
	var visit func(n *tree.ElementNode, slice *tree.SliceNode)
	visit = func(n *tree.ElementNode, slice *tree.SliceNode) {
		elements = append(elements, SerializeElement(n, slice, FullContent(n)))
		for _, c := range n.Children {
			visit(c, nil)
		}
		for _, s := range n.Slices {
			visit(s.Element, s)
		}
	}
	if root != nil {
		visit(root, nil)
	}

	if want := tree.Count(root); len(elements) != want {
		return nil, errs.SnapshotCount(want, len(elements))
	}
	if err := checkUnique(elements); err != nil {
		return nil, err
	}
	canonical.SortElements(elements, order)
	return elements, nil
}

// checkUnique rejects two elements with the same id.
func checkUnique(elements []canonical.Object) error {
	seen := make(map[string]bool, len(elements))
	for _, el := range elements {
		id, _ := el["id"].(string)
		if seen[id] {
			return &errs.Error{Kind: errs.KindSnapshotGeneration, Path: id, Msg: "duplicate element id"}
		}
		seen[id] = true
	}
	return nil
}
