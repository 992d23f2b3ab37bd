package importer

import (
	"sort"

	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/tree"
)

// ImportSlicing reconstructs slicing from an element array in two passes.
// The first attaches slicing definitions to unsliced elements. The second
// creates the slices: a slice root (an address ending in :name) becomes a
// SliceNode of its sliced element, which receives a default open slicing when
// it has none; a slice child is attached inside its slice's own subtree.
// Slices are processed outermost first so nested slices find their parents.
//
// With overlay unset the elements describe existing content (a snapshot):
// nodes take the source given by modified. With overlay set they are profile
// edits (a differential): existing nodes are overlaid and promoted, new ones
// are Added. Slice elements whose sliced element is missing are dropped with
// an ORPHANED_SLICE warning.
func ImportSlicing(root *tree.ElementNode, elements []*Element, overlay bool, modified map[string]bool, res *issue.Result) {
	for _, el := range elements {
		if isSliced(el) || el.Slicing == nil {
			continue
		}
		node := tree.Locate(root, el.Address)
		if node == nil {
			continue
		}
		node.Slicing = el.Slicing.Clone()
		if overlay {
			node.Promote(false)
			node.ForgetBaseline(tree.Constraints{}, true, nil)
		}
	}

	sliced := make([]*Element, 0)
	for _, el := range elements {
		if isSliced(el) {
			sliced = append(sliced, el)
		}
	}
	sort.SliceStable(sliced, func(i, j int) bool {
		a, b := sliced[i].Address, sliced[j].Address
		if da, db := slicedDepth(a), slicedDepth(b); da != db {
			return da < db
		}
		return len(a) < len(b)
	})

	for _, el := range sliced {
		importSliceElement(root, el, overlay, modified, res)
	}
}

func importSliceElement(root *tree.ElementNode, el *Element, overlay bool, modified map[string]bool, res *issue.Result) {
	addr := el.Address
	k := len(addr) - 1
	for addr[k].Slice == "" {
		k--
	}

	if k == len(addr)-1 {
		parentAddr := make(tree.Address, len(addr))
		copy(parentAddr, addr)
		parentAddr[k].Slice = ""
		parent := tree.Locate(root, parentAddr)
		if parent == nil {
			orphaned(el, res)
			return
		}
		if parent.Slicing == nil {
			parent.Slicing = tree.DefaultSlicing()
			if res != nil {
				res.Add(issue.DiagSlicingReconstructed, map[string]any{"path": parent.Path}, parent.Path)
			}
		}
		slice, created := parent.EnsureSlice(addr[k].Slice, tree.Inherited, nil)
		applyElement(slice.Element, el, created, overlay, modified)
		slice.Source = slice.Element.Source
		return
	}

	sliceRoot := tree.Locate(root, addr[:k+1])
	if sliceRoot == nil {
		orphaned(el, res)
		return
	}
	cur := sliceRoot
	created := false
	for _, st := range addr[k+1:] {
		var made bool
		cur, made = cur.EnsureChild(st.Name, tree.Inherited)
		if made && overlay {
			cur.Source = tree.Added
		}
		created = made
	}
	applyElement(cur, el, created, overlay, modified)
}

func orphaned(el *Element, res *issue.Result) {
	if res != nil {
		res.Add(issue.DiagOrphanedSlice, map[string]any{"path": el.Key()}, el.Key())
	}
}
