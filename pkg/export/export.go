// Package export renders profiles as canonical StructureDefinition JSON.
//
// Export merges the persisted differential onto the base tree when the
// resource has no tree in memory, validates it, and writes the resource
// fields, the snapshot and differential sections and any preserved fields in
// a deterministic order.
package export

import (
	"fmt"

	"github.com/gofhir/profiler/pkg/canonical"
	"github.com/gofhir/profiler/pkg/errs"
	"github.com/gofhir/profiler/pkg/importer"
	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/logger"
	"github.com/gofhir/profiler/pkg/merge"
	"github.com/gofhir/profiler/pkg/preserve"
	"github.com/gofhir/profiler/pkg/tree"
	"github.com/gofhir/profiler/pkg/validate"
)

// Export renders resource. base is the base definition's tree; it is merged
// with the differential when resource.Root is nil, compared against during
// validation, and never modified. Warnings are returned
// with the bytes. Validation errors block the export unless forced.
func Export(resource *tree.ProfiledResource, base *tree.ElementNode, opts ...Option) ([]byte, *issue.Result, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	res := issue.NewSourceResult("export")
	if resource == nil {
		return nil, res, errs.MissingField("", importer.ResourceType)
	}

	root := resource.Root
	if root == nil {
		if base == nil {
			return nil, res, errs.MissingField(importer.ResourceType, "baseDefinition")
		}
		var mres *issue.Result
		root, mres = merge.Merge(base, resource.Differential)
		res.Merge(mres)
	}

	if cfg.Validate {
		vres := validate.New(validate.WithStrict(cfg.Strict), validate.WithBase(base)).Validate(resource, root)
		res.Merge(vres)
		if vres.HasErrors() && !cfg.Force {
			return nil, res, blocking(vres, cfg.Strict)
		}
	}

	doc, err := Document(resource, root, cfg)
	if err != nil {
		return nil, res, err
	}

	if len(cfg.Original) > 0 {
		if doc, err = preserve.ReconcileJSON(cfg.Original, doc); err != nil {
			return nil, res, err
		}
	}

	out, err := canonical.Marshal(doc, cfg.Pretty)
	if err != nil {
		return nil, res, fmt.Errorf("marshal %s: %w", resource.URL, err)
	}
	logger.Debug("export %s: %d bytes, %d issues", resource.URL, len(out), len(res.Issues))
	return out, res, nil
}

// blocking returns the error for a failed validation run. In strict mode a
// slicing problem is reported as a Slicing error.
func blocking(vres *issue.Result, strict bool) error {
	if strict {
		for _, iss := range vres.Issues {
			if iss.IsBlocking() && validate.IsSlicingIssue(iss) {
				path := ""
				if len(iss.Expression) > 0 {
					path = iss.Expression[0]
				}
				e := errs.Slicing(path, "%s", iss.Diagnostics)
				e.Issues = []issue.Issue{iss}
				return e
			}
		}
	}
	return errs.Validation(vres.Issues)
}

// Document builds the unmarshalled export of resource over root.
func Document(resource *tree.ProfiledResource, root *tree.ElementNode, cfg *Config) (map[string]any, error) {
	doc := ResourceObject(resource, root)
	order := canonical.NewPathOrder(root)

	if cfg.IncludeSnapshot {
		elements, err := GenerateSnapshot(root, order)
		if err != nil {
			return nil, err
		}
		doc["snapshot"] = canonical.Object{"element": elements}
	}
	if cfg.IncludeDifferential {
		doc["differential"] = canonical.Object{"element": GenerateDifferential(root, order)}
	}
	return doc, nil
}

// ResourceObject builds the resource-level fields. abstract is always
// written because StructureDefinition requires it.
func ResourceObject(resource *tree.ProfiledResource, root *tree.ElementNode) canonical.Object {
	obj := canonical.Object{"resourceType": importer.ResourceType}
	obj.SetString("id", resource.ID)
	obj.SetString("url", resource.URL)
	obj.SetString("version", resource.Version)
	obj.SetString("name", resource.Name)
	obj.SetString("title", resource.Title)
	obj.SetString("status", resource.Status)
	obj.SetString("publisher", resource.Publisher)
	obj.SetString("description", resource.Description)
	obj.SetString("fhirVersion", resource.FHIRVersion)
	obj.SetString("kind", string(resource.Kind))
	obj["abstract"] = resource.Abstract

	typ := resource.Type
	if typ == "" && root != nil {
		typ = root.Path
	}
	obj.SetString("type", typ)
	obj.SetString("baseDefinition", resource.Base.URL)
	obj.SetString("derivation", resource.Derivation)

	preserve.Inject(obj, resource.Unknown)
	return obj
}
