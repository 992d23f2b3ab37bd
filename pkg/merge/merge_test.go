package merge

import (
	"testing"

	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/tree"
)

// baseTree builds Patient { identifier, name { family, given } } with full
// baselines, as a resolved base definition would be.
func baseTree(t *testing.T) *tree.ElementNode {
	t.Helper()
	root := tree.NewElement("Patient", tree.Inherited)
	root.Constraints = tree.Constraints{Min: tree.Ptr[uint32](0), Max: tree.Ptr(tree.Unbounded)}

	id, _ := root.EnsureChild("identifier", tree.Inherited)
	id.Constraints = tree.Constraints{Min: tree.Ptr[uint32](0), Max: tree.Ptr(tree.Unbounded)}

	name, _ := root.EnsureChild("name", tree.Inherited)
	name.Constraints = tree.Constraints{
		Min:   tree.Ptr[uint32](0),
		Max:   tree.Ptr(tree.Unbounded),
		Short: tree.Ptr("A name associated with the patient"),
		Types: []tree.TypeRef{{Code: "HumanName"}},
	}
	family, _ := name.EnsureChild("family", tree.Inherited)
	family.Constraints = tree.Constraints{Min: tree.Ptr[uint32](0), Max: tree.Ptr(tree.Bound(1))}
	given, _ := name.EnsureChild("given", tree.Inherited)
	given.Constraints = tree.Constraints{Min: tree.Ptr[uint32](0), Max: tree.Ptr(tree.Unbounded)}

	tree.ResetProvenance(root)
	return root
}

func mustMerge(t *testing.T, base *tree.ElementNode, diff []tree.DifferentialElement) *tree.ElementNode {
	t.Helper()
	merged, res := Merge(base, diff)
	if res.WarningCount() > 0 {
		t.Fatalf("unexpected merge warnings: %v", res.Issues)
	}
	return merged
}

func TestMergeOverlay(t *testing.T) {
	base := baseTree(t)
	merged := mustMerge(t, base, []tree.DifferentialElement{
		{Path: "Patient.name", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
	})

	name := tree.Find(merged, "Patient.name")
	if name.Source != tree.Modified {
		t.Errorf("Source = %s, want modified", name.Source)
	}
	if *name.Constraints.Min != 1 {
		t.Errorf("Min = %d, want 1", *name.Constraints.Min)
	}
	if name.Constraints.Max == nil || !name.Constraints.Max.Unbounded {
		t.Error("absent max was cleared")
	}
	if name.Constraints.Short == nil {
		t.Error("absent short was cleared")
	}
	if *tree.Find(base, "Patient.name").Constraints.Min != 0 {
		t.Error("Merge modified the base tree")
	}
	if tree.Find(merged, "Patient.identifier").Source != tree.Inherited {
		t.Error("untouched node changed source")
	}
}

func TestMergeLaterEntriesWin(t *testing.T) {
	merged := mustMerge(t, baseTree(t), []tree.DifferentialElement{
		{Path: "Patient.name", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1), Short: tree.Ptr("first")}},
		{Path: "Patient.name", Constraints: tree.Constraints{Short: tree.Ptr("second")}},
	})
	name := tree.Find(merged, "Patient.name")
	if *name.Constraints.Short != "second" || *name.Constraints.Min != 1 {
		t.Errorf("got short %q min %d", *name.Constraints.Short, *name.Constraints.Min)
	}
}

func TestMergeCreatesAddedNodes(t *testing.T) {
	merged := mustMerge(t, baseTree(t), []tree.DifferentialElement{
		{Path: "Patient.contact.name", Constraints: tree.Constraints{Max: tree.Ptr(tree.Bound(1))}},
	})

	contact := tree.Find(merged, "Patient.contact")
	if contact == nil || contact.Source != tree.Added {
		t.Fatalf("intermediate node = %+v", contact)
	}
	name := tree.Find(merged, "Patient.contact.name")
	if name == nil || name.Source != tree.Added {
		t.Fatalf("target node = %+v", name)
	}

	// Editing an Added node keeps it Added.
	again := mustMerge(t, merged, []tree.DifferentialElement{
		{Path: "Patient.contact.name", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
	})
	if tree.Find(again, "Patient.contact.name").Source != tree.Added {
		t.Error("Added node was demoted to Modified")
	}
}

func TestMergeSliceInheritsChildren(t *testing.T) {
	merged := mustMerge(t, baseTree(t), []tree.DifferentialElement{
		{Path: "Patient.name", SliceName: "official", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
	})

	name := tree.Find(merged, "Patient.name")
	if name.Slicing == nil || name.Slicing.Rules != tree.RulesOpen || len(name.Slicing.Discriminators) != 0 {
		t.Errorf("sliced element slicing = %+v, want default open slicing", name.Slicing)
	}
	slice := name.Slice("official")
	if slice == nil {
		t.Fatal("slice not created")
	}
	if slice.Source != tree.Added || slice.Element.Source != tree.Added {
		t.Errorf("slice source = %s/%s", slice.Source, slice.Element.Source)
	}

	family := tree.Find(merged, "Patient.name:official.family")
	if family == nil {
		t.Fatal("slice does not contain an inherited copy of family")
	}
	if family.Source != tree.Inherited {
		t.Errorf("copied child source = %s, want inherited", family.Source)
	}
	if family.Constraints.Max == nil || family.Constraints.Max.N != 1 {
		t.Error("copied child lost its constraints")
	}
	if family.ID == tree.Find(merged, "Patient.name.family").ID {
		t.Error("copied child shares the original id")
	}
	if slice.Element.Constraints.Short == nil {
		t.Error("slice root did not start from the sliced element content")
	}
	if got := len(slice.Element.Children); got != 2 {
		t.Errorf("slice has %d children, want 2", got)
	}
}

func TestMergeSliceIgnoresEarlierEdits(t *testing.T) {
	edits := []tree.DifferentialElement{
		{Path: "Patient.name", Constraints: tree.Constraints{Short: tree.Ptr("edited")}},
		{Path: "Patient.name.family", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
	}
	slice := tree.DifferentialElement{Path: "Patient.name", SliceName: "official"}

	tests := []struct {
		name string
		diff []tree.DifferentialElement
	}{
		{name: "slice first", diff: append([]tree.DifferentialElement{slice}, edits...)},
		{name: "slice last", diff: append(append([]tree.DifferentialElement{}, edits...), slice)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := mustMerge(t, baseTree(t), tt.diff)

			root := tree.Find(merged, "Patient.name:official")
			if root == nil {
				t.Fatal("slice not created")
			}
			if root.Constraints.Short == nil || *root.Constraints.Short != "A name associated with the patient" {
				t.Errorf("slice root short = %v, want the base value", root.Constraints.Short)
			}
			if changed, _, _ := root.Changes(); len(changed.Fields()) != 0 {
				t.Errorf("slice root reports changes %v", changed.Fields())
			}

			family := tree.Find(merged, "Patient.name:official.family")
			if family == nil {
				t.Fatal("slice has no family")
			}
			if family.Source != tree.Inherited {
				t.Errorf("slice family source = %s, want inherited", family.Source)
			}
			if family.Constraints.Min == nil || *family.Constraints.Min != 0 {
				t.Errorf("slice family min = %v, want the base 0", family.Constraints.Min)
			}
		})
	}
}

func TestMergeSliceChildEntry(t *testing.T) {
	merged := mustMerge(t, baseTree(t), []tree.DifferentialElement{
		{Path: "Patient.name", SliceName: "official"},
		{Path: "Patient.name.family", ElementID: "Patient.name:official.family", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
	})
	family := tree.Find(merged, "Patient.name:official.family")
	if family.Source != tree.Modified || *family.Constraints.Min != 1 {
		t.Errorf("slice child = %s min %v", family.Source, family.Constraints.Min)
	}
	if *tree.Find(merged, "Patient.name.family").Constraints.Min != 0 {
		t.Error("slice child edit leaked into the sliced element's child")
	}
}

func TestMergeSliceIdentityEncodings(t *testing.T) {
	encodings := map[string]tree.DifferentialElement{
		"elementId": {Path: "Patient.name", ElementID: "Patient.name:official"},
		"path":      {Path: "Patient.name:official"},
		"sliceName": {Path: "Patient.name", SliceName: "official"},
	}
	var first *tree.ElementNode
	for name, entry := range encodings {
		t.Run(name, func(t *testing.T) {
			entry.Constraints = tree.Constraints{Max: tree.Ptr(tree.Bound(1))}
			merged := mustMerge(t, baseTree(t), []tree.DifferentialElement{entry})
			if tree.FindSlice(merged, "Patient.name:official") == nil {
				t.Fatal("slice not created")
			}
			if first == nil {
				first = merged
				return
			}
			if d := tree.ContentDifference(first, merged); d != "" {
				t.Errorf("encodings disagree: %s", d)
			}
		})
	}
}

func TestMergeNestedSlices(t *testing.T) {
	merged := mustMerge(t, baseTree(t), []tree.DifferentialElement{
		{Path: "Patient.name", SliceName: "official"},
		{Path: "Patient.name.given", ElementID: "Patient.name:official.given:first", SliceName: "first", Constraints: tree.Constraints{Max: tree.Ptr(tree.Bound(1))}},
	})
	n := tree.Find(merged, "Patient.name:official.given:first")
	if n == nil {
		t.Fatal("nested slice not created")
	}
	if tree.Find(merged, "Patient.name:official.given").Slicing == nil {
		t.Error("nested sliced element has no slicing")
	}
}

func TestMergeSkipsUnplaceableEntries(t *testing.T) {
	merged, res := Merge(baseTree(t), []tree.DifferentialElement{
		{Path: "Observation.code", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
		{Path: "Patient..name"},
		{Path: "Patient.name", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
	})
	if got := len(res.ByID(issue.DiagMergeEntrySkipped)); got != 2 {
		t.Errorf("skipped = %d, want 2: %v", got, res.Issues)
	}
	if *tree.Find(merged, "Patient.name").Constraints.Min != 1 {
		t.Error("valid entry after skipped ones was not applied")
	}
}

func TestMergeKeepsEntryIDs(t *testing.T) {
	merged := mustMerge(t, baseTree(t), []tree.DifferentialElement{
		{ID: "fixed-id", Path: "Patient.name", Constraints: tree.Constraints{Min: tree.Ptr[uint32](1)}},
	})
	if tree.Find(merged, "Patient.name").ID != "fixed-id" {
		t.Error("node id not taken from the entry")
	}
}
