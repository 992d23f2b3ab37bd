// Package importer turns StructureDefinition JSON into element trees.
//
// The pipeline parses the document, builds the tree from the snapshot (or the
// differential when there is no snapshot), overlays the differential entries
// and reconstructs slicing. Unmodeled keys are kept verbatim on the owning node
// or on the resource.
package importer

import (
	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/logger"
	"github.com/gofhir/profiler/pkg/merge"
	"github.com/gofhir/profiler/pkg/tree"
)

// Import parses a StructureDefinition into a profile under edit. The returned
// resource holds the merged tree and the differential extracted from it.
// Warnings are returned next to the value; any error aborts the import.
func Import(data []byte) (*tree.ProfiledResource, *issue.Result, error) {
	res := issue.NewSourceResult("import")
	doc, err := Parse(data, res)
	if err != nil {
		return nil, res, err
	}
	root, err := BuildDocument(doc, res)
	if err != nil {
		return nil, res, err
	}

	resource := doc.Resource
	resource.Root = root
	resource.Differential = merge.ExtractDifferential(root)
	logger.Debug("import %s: %d nodes, %d differential entries, %d issues",
		resource.URL, tree.Count(root), len(resource.Differential), len(res.Issues))
	return &resource, res, nil
}

// BuildDocument builds the tree of a parsed document. Nodes named by the
// differential are Modified and carry only the differential fields as changes.
func BuildDocument(doc *Document, res *issue.Result) (*tree.ElementNode, error) {
	src := doc.Snapshot
	if !doc.HasSnapshot() {
		if res != nil {
			res.Add(issue.DiagMissingSnapshot, map[string]any{"url": doc.Resource.URL}, doc.Resource.URL)
		}
		src = doc.Differential
	}

	modified := make(map[string]bool, len(doc.Differential))
	for _, el := range doc.Differential {
		modified[el.Key()] = true
	}

	root, err := BuildTree(src, modified, res)
	if err != nil {
		return nil, err
	}
	ImportSlicing(root, src, false, modified, res)
	captureBaselines(root)

	ExtractConstraints(root, doc.Differential, res)
	ImportSlicing(root, doc.Differential, true, nil, res)
	return root, nil
}

// BuildBase builds the tree of a base definition: every node is Inherited and
// its whole content is baseline.
func BuildBase(data []byte) (*tree.ElementNode, *tree.ProfiledResource, *issue.Result, error) {
	res := issue.NewSourceResult("base")
	doc, err := Parse(data, res)
	if err != nil {
		return nil, nil, res, err
	}
	src := doc.Snapshot
	if !doc.HasSnapshot() {
		res.Add(issue.DiagMissingSnapshot, map[string]any{"url": doc.Resource.URL}, doc.Resource.URL)
		src = doc.Differential
	}
	root, err := BuildTree(src, nil, res)
	if err != nil {
		return nil, nil, res, err
	}
	ImportSlicing(root, src, false, nil, res)
	tree.ResetProvenance(root)

	meta := doc.Resource
	return root, &meta, res, nil
}
