package merge

import (
	"github.com/gofhir/profiler/pkg/tree"
)

// ExtractDifferential lists every Modified or Added node in tree order: a
// node, its children, then its slices. Each entry carries only the content
// that differs from the node's baseline. Entries use the slice-qualified
// address as element id and the plain FHIR path as path; slice roots also
// carry their slice name.
func ExtractDifferential(root *tree.ElementNode) []tree.DifferentialElement {
	out := make([]tree.DifferentialElement, 0)
	tree.Walk(root, func(n *tree.ElementNode, slice *tree.SliceNode) {
		if !n.Source.IsModified() {
			return
		}
		c, sl, unknown := n.Changes()
		entry := tree.DifferentialElement{
			ID:          n.ID,
			Path:        n.FHIRPath(),
			ElementID:   n.Path,
			Constraints: c,
			Slicing:     sl,
			Unknown:     unknown,
		}
		if slice != nil {
			entry.SliceName = slice.Name
		}
		out = append(out, entry)
	})
	return out
}
