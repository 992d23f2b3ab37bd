package importer

import (
	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/tree"
)

// ExtractConstraints overlays the unsliced differential entries onto a tree
// built from the snapshot. Only the fields present in an entry are written;
// absent fields keep the snapshot value. Every touched node becomes Modified
// and the overlaid fields leave its baseline, so a later differential
// extraction reproduces them. Entries whose address is not in the tree are
// skipped with an ELEMENT_NOT_FOUND notice; sliced entries are left to
// ImportSlicing.
func ExtractConstraints(root *tree.ElementNode, differential []*Element, res *issue.Result) {
	for _, el := range differential {
		if isSliced(el) {
			continue
		}
		node := tree.Locate(root, el.Address)
		if node == nil {
			if res != nil {
				res.Add(issue.DiagElementNotFound, map[string]any{"path": el.Key()}, el.Key())
			}
			continue
		}
		applyElement(node, el, false, true, nil)
	}
}

// applyElement writes a parsed element onto a node. A newly created node takes
// the element content as is; an existing node gets a field-by-field overlay.
// With overlay set the edit is a profile change: provenance is promoted and the
// written fields leave the baseline.
func applyElement(n *tree.ElementNode, el *Element, created, overlay bool, modified map[string]bool) {
	if el.ID != "" {
		n.ElementID = el.ID
	}
	if created {
		n.Constraints = el.Constraints.Clone()
		n.Slicing = el.Slicing.Clone()
		n.Unknown = cloneUnknown(el.Unknown)
		switch {
		case overlay:
			n.Source = tree.Added
		case modified[el.Key()]:
			n.Source = tree.Modified
		default:
			n.Source = tree.Inherited
		}
		return
	}

	n.Constraints.Overlay(el.Constraints)
	if el.Slicing != nil {
		n.Slicing = el.Slicing.Clone()
	}
	for k, v := range el.Unknown {
		if n.Unknown == nil {
			n.Unknown = make(map[string]json.RawMessage)
		}
		n.Unknown[k] = v
	}
	if overlay {
		n.Promote(false)
		n.ForgetBaseline(el.Constraints, el.Slicing != nil, el.Unknown)
	}
}

// captureBaselines records the content of every node before differential overlay.
func captureBaselines(root *tree.ElementNode) {
	tree.Walk(root, func(n *tree.ElementNode, _ *tree.SliceNode) {
		n.CaptureBaseline()
	})
}
