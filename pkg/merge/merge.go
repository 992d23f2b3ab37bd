// Package merge projects differentials onto base trees and extracts minimal
// differentials from edited trees. The two operations are inverses:
// merging the differential extracted from a merged tree reproduces that tree.
package merge

import (
	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/logger"
	"github.com/gofhir/profiler/pkg/tree"
)

// Merge applies a differential to a copy of base, in list order; later entries
// for the same element overwrite earlier ones field by field. Missing elements
// are created as Added. The first time a slice is named it is created under
// its sliced element, which gets a default open slicing when it has none. The
// slice root starts from the base content of the sliced element and the slice
// receives an Inherited copy of every base child, so the slice does not depend
// on entries applied before it.
//
// base is never modified. Entries that cannot be placed are skipped and
// reported as MERGE_ENTRY_SKIPPED warnings.
func Merge(base *tree.ElementNode, diff []tree.DifferentialElement) (*tree.ElementNode, *issue.Result) {
	res := issue.NewSourceResult("merge")
	if base == nil {
		res.Add(issue.DiagMergeEntrySkipped, map[string]any{"path": "", "reason": "no base tree"})
		return nil, res
	}
	root := tree.Clone(base)

	for i := range diff {
		d := &diff[i]
		addr, origin, err := d.ResolveAddress()
		if err != nil {
			skip(res, d, err.Error())
			continue
		}
		if addr[0].Slice != "" || addr[0].Name != root.Path {
			skip(res, d, "address is not below root "+root.Path)
			continue
		}
		node, slice, created := locateOrCreate(root, base, addr)
		apply(node, d, created)
		if slice != nil {
			slice.Source = node.Source
		}
		logger.Debug("merge: %s (%s, via %s)", addr, node.Source, origin)
	}
	return root, res
}

func skip(res *issue.Result, d *tree.DifferentialElement, reason string) {
	path := d.Path
	if path == "" {
		path = d.ElementID
	}
	res.Add(issue.DiagMergeEntrySkipped, map[string]any{"path": path, "reason": reason}, path)
}

// locateOrCreate walks addr from the root, creating missing elements as Added
// and missing slices with ensureSlice. slice is non-nil when the target is a
// slice root; created reports whether the target itself was created.
func locateOrCreate(root, base *tree.ElementNode, addr tree.Address) (node *tree.ElementNode, slice *tree.SliceNode, created bool) {
	node = root
	for _, st := range addr[1:] {
		node, created = node.EnsureChild(st.Name, tree.Added)
		slice = nil
		if st.Slice != "" {
			slice, created = ensureSlice(node, pristine(base, node.Path), st.Slice)
			node = slice.Element
		}
	}
	return node, slice, created
}

// pristine returns the base node a new slice of addr starts from: the node at
// addr itself, else the unsliced element it was copied from. It is nil for
// elements the base does not define.
func pristine(base *tree.ElementNode, addr string) *tree.ElementNode {
	if n := tree.Find(base, addr); n != nil {
		return n
	}
	return tree.Find(base, tree.StripSlices(addr))
}

// ensureSlice finds or creates a slice of sliced. A new slice copies from
// origin, never from sliced, whose content may already carry edits.
func ensureSlice(sliced, origin *tree.ElementNode, name string) (*tree.SliceNode, bool) {
	if sliced.Slicing == nil {
		sliced.Slicing = tree.DefaultSlicing()
	}
	return sliced.EnsureSlice(name, tree.Added, func(s *tree.SliceNode) {
		if origin == nil {
			return
		}
		// Slices of origin belong to origin, not to the new slice.
		inherited := make([]*tree.ElementNode, 0, len(origin.Children))
		for _, c := range origin.Children {
			clone := tree.CloneRewrite(c, origin.Path, s.Path)
			tree.ResetProvenance(clone)
			inherited = append(inherited, clone)
		}

		el := s.Element
		el.Constraints = origin.Constraints.Clone()
		el.Unknown = cloneRaw(origin.Unknown)
		el.Children = inherited
		el.Baseline = &tree.Baseline{
			Constraints: origin.Constraints.Clone(),
			Unknown:     cloneRaw(origin.Unknown),
		}
	})
}

// apply overlays one entry onto its target node.
func apply(n *tree.ElementNode, d *tree.DifferentialElement, created bool) {
	n.Constraints.Overlay(d.Constraints)
	if d.Slicing != nil {
		n.Slicing = d.Slicing.Clone()
	}
	for k, v := range d.Unknown {
		if n.Unknown == nil {
			n.Unknown = make(map[string]json.RawMessage)
		}
		n.Unknown[k] = v
	}
	n.ForgetBaseline(d.Constraints, d.Slicing != nil, d.Unknown)

	if d.ID != "" {
		n.ID = d.ID
	}
	if d.ElementID != "" {
		n.ElementID = d.ElementID
	}
	n.Promote(created)
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
