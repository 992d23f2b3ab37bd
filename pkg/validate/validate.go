// Package validate checks the business rules a profile must satisfy before
// it is exported.
package validate

import (
	"regexp"
	"sync"

	"github.com/gofhir/fhirpath"

	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/tree"
)

var (
	namePattern      = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]{0,254}$`)
	sliceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\-/@]*$`)
)

// slicingDiagnostics become errors in strict mode.
var slicingDiagnostics = []issue.DiagnosticID{
	issue.DiagSlicingNoDiscriminator,
	issue.DiagOrphanedSlice,
}

// IsSlicingIssue reports whether iss comes from a slicing rule.
func IsSlicingIssue(iss issue.Issue) bool {
	for _, id := range slicingDiagnostics {
		if iss.MessageID == string(id) {
			return true
		}
	}
	return false
}

// Validator runs the profile rules.
type Validator struct {
	strict bool
	base   *tree.ElementNode

	// Cache of compiled FHIRPath expressions.
	exprCache   map[string]error
	exprCacheMu sync.RWMutex
}

// Option configures a Validator.
type Option func(*Validator)

// WithStrict makes slicing problems errors instead of warnings.
func WithStrict(strict bool) Option {
	return func(v *Validator) {
		v.strict = strict
	}
}

// WithBase sets the base definition's tree. Cardinalities are compared with
// it to detect a profile loosening its base.
func WithBase(base *tree.ElementNode) Option {
	return func(v *Validator) {
		v.base = base
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{exprCache: make(map[string]error)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the resource metadata and every node of root.
func (v *Validator) Validate(resource *tree.ProfiledResource, root *tree.ElementNode) *issue.Result {
	res := issue.NewSourceResult("validate")

	if resource != nil && resource.Name != "" && !namePattern.MatchString(resource.Name) {
		res.Add(issue.DiagInvalidName, map[string]any{"name": resource.Name}, "StructureDefinition.name")
	}

	var baseIndex map[string]*tree.ElementNode
	if v.base != nil {
		baseIndex = tree.Index(v.base)
	}

	tree.Walk(root, func(n *tree.ElementNode, slice *tree.SliceNode) {
		if slice != nil && !sliceNamePattern.MatchString(slice.Name) {
			res.Add(issue.DiagInvalidSliceName, map[string]any{"name": slice.Name, "path": n.Path}, n.Path)
		}
		v.checkCardinality(n, slice != nil, baseIndex, res)
		v.checkSlicing(n, res)
		v.checkInvariants(n, res)
	})

	if v.strict {
		res.Escalate(slicingDiagnostics...)
	}
	return res
}

// baseNode finds the base element an address constrains: the same address
// when the base has it, else the unsliced path.
func baseNode(index map[string]*tree.ElementNode, path string) *tree.ElementNode {
	if n, ok := index[path]; ok {
		return n
	}
	return index[tree.StripSlices(path)]
}

func (v *Validator) checkCardinality(n *tree.ElementNode, sliceRoot bool, baseIndex map[string]*tree.ElementNode, res *issue.Result) {
	c := n.Constraints
	if c.Min != nil && c.Max != nil && !c.Max.Unbounded && *c.Min > c.Max.N {
		res.Add(issue.DiagInvalidCardinality, map[string]any{"path": n.Path, "min": *c.Min, "max": c.Max.String()}, n.Path)
		return
	}

	b := baseNode(baseIndex, n.Path)
	if b == nil {
		return
	}
	base := b.Constraints
	// A slice may require fewer repetitions than the element it slices.
	widened := (!sliceRoot && c.Min != nil && base.Min != nil && *c.Min < *base.Min) ||
		(c.Max != nil && base.Max != nil && base.Max.Less(*c.Max))
	if widened {
		res.Add(issue.DiagCardinalityWidened, map[string]any{
			"path":    n.Path,
			"min":     fmtMin(c.Min),
			"max":     fmtMax(c.Max),
			"baseMin": fmtMin(base.Min),
			"baseMax": fmtMax(base.Max),
		}, n.Path)
	}
}

func fmtMin(m *uint32) any {
	if m == nil {
		return "?"
	}
	return *m
}

func fmtMax(m *tree.MaxBound) any {
	if m == nil {
		return "?"
	}
	return m.String()
}

func (v *Validator) checkSlicing(n *tree.ElementNode, res *issue.Result) {
	if len(n.Slices) == 0 {
		return
	}
	if n.Slicing == nil {
		for _, s := range n.Slices {
			res.Add(issue.DiagOrphanedSlice, map[string]any{"path": s.Path}, s.Path)
		}
		return
	}
	if len(n.Slicing.Discriminators) == 0 {
		res.Add(issue.DiagSlicingNoDiscriminator, map[string]any{"path": n.Path}, n.Path)
	}
}

func (v *Validator) checkInvariants(n *tree.ElementNode, res *issue.Result) {
	inherited := make(map[string]bool)
	if n.Baseline != nil {
		for _, inv := range n.Baseline.Constraints.Invariants {
			inherited[inv.Key] = true
		}
	}

	seen := make(map[string]bool, len(n.Constraints.Invariants))
	for _, inv := range n.Constraints.Invariants {
		if inv.Key == "" {
			res.Add(issue.DiagInvariantMissingKey, map[string]any{"path": n.Path}, n.Path)
		} else if seen[inv.Key] {
			res.Add(issue.DiagDuplicateInvariantKey, map[string]any{"key": inv.Key, "path": n.Path}, n.Path)
		}
		seen[inv.Key] = true

		// Inherited invariants were checked where they were authored.
		if inherited[inv.Key] || inv.Expression == "" {
			continue
		}
		if err := v.compile(inv.Expression); err != nil {
			res.Add(issue.DiagInvalidInvariant, map[string]any{"key": inv.Key, "path": n.Path, "error": err.Error()}, n.Path)
		}
	}
}

// compile checks an expression once and caches the outcome.
func (v *Validator) compile(expr string) error {
	v.exprCacheMu.RLock()
	err, ok := v.exprCache[expr]
	v.exprCacheMu.RUnlock()
	if ok {
		return err
	}

	_, err = fhirpath.Compile(expr)

	v.exprCacheMu.Lock()
	v.exprCache[expr] = err
	v.exprCacheMu.Unlock()
	return err
}
