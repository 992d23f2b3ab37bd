// Package profiler edits FHIR profiles (constraining StructureDefinitions).
//
// A profile exists in three shapes that this module converts between without
// losing information:
//
//   - Differential: the flat list of constraints a profile adds to its base.
//   - Merged tree: the differential projected onto the base schema, used for editing.
//   - Snapshot: the complete flattened element list required by FHIR.
//
// # Quick Start
//
//	import (
//	    "github.com/gofhir/profiler/pkg/editor"
//	    "github.com/gofhir/profiler/pkg/export"
//	)
//
//	ed := editor.New(editor.WithResolver(resolver))
//
//	res, warnings, err := ed.Import(rawStructureDefinition)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, w := range warnings.Issues {
//	    fmt.Println(w.Diagnostics)
//	}
//
//	out, _, err := ed.Export(ctx, res,
//	    export.WithSnapshot(true),
//	    export.WithDifferential(true),
//	    export.WithPretty(true),
//	)
//
// # Packages
//
//   - pkg/tree: element tree, slices, constraints and the persisted differential
//   - pkg/importer: StructureDefinition JSON to tree (snapshot, differential, slicing)
//   - pkg/merge: differential onto base tree, and the inverse extraction
//   - pkg/export: snapshot and differential generation
//   - pkg/canonical: deterministic field order, omission rules, element ordering
//   - pkg/preserve: unknown-field survival across import and export
//   - pkg/editor: the facade tying resolution, caching and the pipelines together
//   - pkg/loader, pkg/registry: FHIR packages and the StructureDefinition index
//   - pkg/store, pkg/translate: differential documents and YAML rendering
//
// The gofhir-profiler command in cmd/gofhir-profiler exposes the same
// operations on files.
//
// The transformation engine is pure and synchronous. Only base resolution and
// the external syntax and translation bridges perform I/O, and those take a
// context.Context.
package profiler
