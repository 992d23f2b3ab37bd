// Package editor is the entry point for profile editing. It resolves and
// caches base trees, and runs the import, merge and export pipelines with the
// collaborators of a bridge.Context.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/bridge"
	"github.com/gofhir/profiler/pkg/cache"
	"github.com/gofhir/profiler/pkg/export"
	"github.com/gofhir/profiler/pkg/importer"
	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/logger"
	"github.com/gofhir/profiler/pkg/merge"
	"github.com/gofhir/profiler/pkg/store"
	"github.com/gofhir/profiler/pkg/translate"
	"github.com/gofhir/profiler/pkg/tree"
	"github.com/gofhir/profiler/pkg/worker"
)

// Editor runs the profile pipelines. It is safe for concurrent use by
// operations on different documents.
type Editor struct {
	bridge  *bridge.Context
	trees   *cache.Trees
	workers int
	metrics *Metrics
	log     *logger.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithBridge sets the collaborators.
func WithBridge(c *bridge.Context) Option {
	return func(e *Editor) {
		if c != nil {
			e.bridge = c
		}
	}
}

// WithResolver sets the base definition resolver.
func WithResolver(r bridge.BaseResolver) Option {
	return func(e *Editor) {
		e.bridge.Resolver = r
	}
}

// WithWorkers sets the parallelism of batch exports.
func WithWorkers(n int) Option {
	return func(e *Editor) {
		e.workers = n
	}
}

// WithCacheSize sets how many base trees are kept.
func WithCacheSize(n int) Option {
	return func(e *Editor) {
		e.trees = cache.NewTrees(n, e.buildBase)
	}
}

// New creates an Editor. Without a translator in the bridge, Translate
// renders YAML.
func New(opts ...Option) *Editor {
	e := &Editor{
		bridge:  &bridge.Context{},
		metrics: NewMetrics(),
		log:     logger.With("editor"),
	}
	e.trees = cache.NewTrees(cache.DefaultCapacity, e.buildBase)
	for _, opt := range opts {
		opt(e)
	}
	if e.bridge.Translator == nil {
		e.bridge.Translator = translate.NewYAML()
	}
	return e
}

// Bridge returns the collaborators of e.
func (e *Editor) Bridge() *bridge.Context {
	return e.bridge
}

// CacheStats returns the base tree cache counters.
func (e *Editor) CacheStats() cache.Stats {
	return e.trees.Stats()
}

// Metrics returns the operation counters of e.
func (e *Editor) Metrics() *Metrics {
	return e.metrics
}

// Import parses a StructureDefinition into a profile under edit.
func (e *Editor) Import(data []byte) (*tree.ProfiledResource, *issue.Result, error) {
	start := time.Now()
	resource, res, err := importer.Import(data)
	e.metrics.Record(OpImport, time.Since(start), res, err)
	return resource, res, err
}

// LoadBase returns a private copy of the base tree of a canonical URL.
func (e *Editor) LoadBase(ctx context.Context, url, version string) (*tree.ElementNode, error) {
	if url == "" {
		return nil, fmt.Errorf("load base: empty canonical url")
	}
	return e.trees.Get(ctx, url, version)
}

// AddBase builds a base tree from StructureDefinition JSON and caches it
// under the definition's URL.
func (e *Editor) AddBase(data []byte) (*tree.ElementNode, error) {
	root, meta, _, err := importer.BuildBase(data)
	if err != nil {
		return nil, err
	}
	e.trees.Put(meta.URL, "", root)
	return root, nil
}

func (e *Editor) buildBase(ctx context.Context, url, version string) (*tree.ElementNode, error) {
	data, err := e.bridge.ResolveBase(ctx, url, version)
	if err != nil {
		return nil, fmt.Errorf("resolve base %s: %w", url, err)
	}
	root, _, res, err := importer.BuildBase(data)
	if err != nil {
		return nil, fmt.Errorf("build base %s: %w", url, err)
	}
	e.log.Debug("built base %s: %d nodes, %d issues", url, tree.Count(root), len(res.Issues))
	return root, nil
}

// Merge projects a differential onto a copy of base.
func (e *Editor) Merge(base *tree.ElementNode, diff []tree.DifferentialElement) (*tree.ElementNode, *issue.Result) {
	return merge.Merge(base, diff)
}

// Extract returns the differential of an edited tree.
func (e *Editor) Extract(root *tree.ElementNode) []tree.DifferentialElement {
	return merge.ExtractDifferential(root)
}

// Open merges a persisted profile onto its base and sets resource.Root.
func (e *Editor) Open(ctx context.Context, resource *tree.ProfiledResource) (*issue.Result, error) {
	start := time.Now()
	base, err := e.LoadBase(ctx, resource.Base.URL, "")
	if err != nil {
		e.metrics.Record(OpOpen, time.Since(start), nil, err)
		return nil, err
	}
	root, res := merge.Merge(base, resource.Differential)
	resource.Root = root
	e.metrics.Record(OpOpen, time.Since(start), res, nil)
	return res, nil
}

// Export renders resource as canonical JSON. The base tree is resolved for
// merging and for cardinality checks; a resource that already holds a tree
// is exported without one when no resolver knows the base.
func (e *Editor) Export(ctx context.Context, resource *tree.ProfiledResource, opts ...export.Option) ([]byte, *issue.Result, error) {
	start := time.Now()
	out, res, err := e.exportResource(ctx, resource, opts...)
	e.metrics.Record(OpExport, time.Since(start), res, err)
	return out, res, err
}

func (e *Editor) exportResource(ctx context.Context, resource *tree.ProfiledResource, opts ...export.Option) ([]byte, *issue.Result, error) {
	if resource.Root != nil && resource.Base.URL == "" {
		return export.Export(resource, nil, opts...)
	}
	base, err := e.LoadBase(ctx, resource.Base.URL, "")
	if err != nil {
		if resource.Root == nil || !unresolvable(err) {
			return nil, issue.NewSourceResult("export"), err
		}
		e.log.Debug("export %s without base: %v", resource.URL, err)
		base = nil
	}
	return export.Export(resource, base, opts...)
}

func unresolvable(err error) bool {
	return errors.Is(err, bridge.ErrUnavailable) || errors.Is(err, bridge.ErrNotFound)
}

// ExportDocument exports a document: either a StructureDefinition, which is
// imported and reconciled with itself, or a stored profile.
func (e *Editor) ExportDocument(ctx context.Context, data []byte, opts ...export.Option) ([]byte, *issue.Result, error) {
	if isStructureDefinition(data) {
		resource, res, err := e.Import(data)
		if err != nil {
			return nil, res, err
		}
		opts = append([]export.Option{export.WithOriginal(data)}, opts...)
		out, eres, err := e.Export(ctx, resource, opts...)
		res.Merge(eres)
		return out, res, err
	}

	resource, err := store.Decode(data)
	if err != nil {
		return nil, issue.NewSourceResult("export"), err
	}
	return e.Export(ctx, resource, opts...)
}

func isStructureDefinition(data []byte) bool {
	if store.Detect(data) != store.JSON {
		return false
	}
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	return json.Unmarshal(data, &head) == nil && head.ResourceType == importer.ResourceType
}

// ExportBatch exports independent documents in parallel.
func (e *Editor) ExportBatch(ctx context.Context, jobs []worker.Job, opts ...export.Option) *worker.BatchResult {
	batch := worker.NewBatch(func(ctx context.Context, doc []byte) ([]byte, *issue.Result, error) {
		return e.ExportDocument(ctx, doc, opts...)
	}, e.workers)
	return batch.Run(ctx, jobs)
}

// Translate exports resource and hands the canonical JSON to the translator.
func (e *Editor) Translate(ctx context.Context, resource *tree.ProfiledResource, opts ...export.Option) ([]byte, *issue.Result, error) {
	out, res, err := e.Export(ctx, resource, opts...)
	if err != nil {
		return nil, res, err
	}
	translated, err := e.bridge.Translate(ctx, out)
	return translated, res, err
}

// Render exports the snapshot of resource and renders it in the alternate
// syntax.
func (e *Editor) Render(ctx context.Context, resource *tree.ProfiledResource) (string, *issue.Result, error) {
	out, res, err := e.Export(ctx, resource, export.WithSnapshot(true), export.WithDifferential(true), export.WithPretty(false))
	if err != nil {
		return "", res, err
	}
	text, err := e.bridge.RenderSyntax(ctx, out)
	return text, res, err
}

// Parse reads alternate syntax text and imports every definition it yields.
func (e *Editor) Parse(ctx context.Context, text string) ([]*tree.ProfiledResource, *issue.Result, error) {
	defs, err := e.bridge.ParseSyntax(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	res := issue.NewSourceResult("import")
	out := make([]*tree.ProfiledResource, 0, len(defs))
	for _, raw := range defs {
		resource, ires, err := e.Import(bytes.TrimSpace(raw))
		res.Merge(ires)
		if err != nil {
			return nil, res, err
		}
		out = append(out, resource)
	}
	return out, res, nil
}
