package tree

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
)

// MaxBound is an element's upper cardinality: a number or unbounded ("*").
type MaxBound struct {
	N         uint32
	Unbounded bool
}

// Unbounded is the "*" upper bound.
var Unbounded = MaxBound{Unbounded: true}

// Bound returns a numeric upper bound.
func Bound(n uint32) MaxBound { return MaxBound{N: n} }

// ParseMax parses a FHIR max string ("*" or a non-negative integer).
func ParseMax(s string) (MaxBound, error) {
	if s == "*" {
		return Unbounded, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return MaxBound{}, fmt.Errorf("invalid max %q: must be '*' or a non-negative integer", s)
	}
	return MaxBound{N: uint32(n)}, nil
}

// String renders the bound as FHIR does.
func (m MaxBound) String() string {
	if m.Unbounded {
		return "*"
	}
	return strconv.FormatUint(uint64(m.N), 10)
}

// Less reports whether m allows fewer repetitions than o.
func (m MaxBound) Less(o MaxBound) bool {
	if m.Unbounded {
		return false
	}
	return o.Unbounded || m.N < o.N
}

// MarshalJSON encodes the bound as a string.
func (m MaxBound) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes "*" or a numeric string.
func (m *MaxBound) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("max must be a string: %w", err)
	}
	v, err := ParseMax(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// TypeRef is one entry of an element's type list.
type TypeRef struct {
	Code          string   `json:"code"`
	Profile       []string `json:"profile,omitempty"`
	TargetProfile []string `json:"targetProfile,omitempty"`
	Aggregation   []string `json:"aggregation,omitempty"`
	Versioning    string   `json:"versioning,omitempty"`
}

func (t TypeRef) clone() TypeRef {
	t.Profile = slices.Clone(t.Profile)
	t.TargetProfile = slices.Clone(t.TargetProfile)
	t.Aggregation = slices.Clone(t.Aggregation)
	return t
}

func (t TypeRef) equal(o TypeRef) bool {
	return t.Code == o.Code && t.Versioning == o.Versioning &&
		slices.Equal(t.Profile, o.Profile) &&
		slices.Equal(t.TargetProfile, o.TargetProfile) &&
		slices.Equal(t.Aggregation, o.Aggregation)
}

// Binding is an element's terminology binding.
type Binding struct {
	Strength    string `json:"strength,omitempty"`
	ValueSet    string `json:"valueSet,omitempty"`
	Description string `json:"description,omitempty"`
}

// PolyValue is a polymorphic value such as fixed[x] or pattern[x]: the type
// suffix (e.g. "CodeableConcept") and the raw JSON value.
type PolyValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (p PolyValue) clone() PolyValue {
	p.Value = slices.Clone(p.Value)
	return p
}

func (p PolyValue) equal(o PolyValue) bool {
	return p.Type == o.Type && JSONEqual(p.Value, o.Value)
}

// Invariant is an ElementDefinition.constraint entry.
type Invariant struct {
	Key          string `json:"key,omitempty"`
	Severity     string `json:"severity,omitempty"`
	Human        string `json:"human,omitempty"`
	Expression   string `json:"expression,omitempty"`
	XPath        string `json:"xpath,omitempty"`
	Source       string `json:"source,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

// Example is an ElementDefinition.example entry.
type Example struct {
	Label string    `json:"label"`
	Value PolyValue `json:"value"`
}

func (e Example) clone() Example {
	e.Value = e.Value.clone()
	return e
}

func (e Example) equal(o Example) bool {
	return e.Label == o.Label && e.Value.equal(o.Value)
}

// Mapping is an ElementDefinition.mapping entry.
type Mapping struct {
	Identity string `json:"identity"`
	Language string `json:"language,omitempty"`
	Map      string `json:"map"`
	Comment  string `json:"comment,omitempty"`
}

// Constraints holds the modeled ElementDefinition content of one node.
// A nil field is absent; a non-nil field is set, even when it holds a zero value.
type Constraints struct {
	Min                *uint32     `json:"min,omitempty"`
	Max                *MaxBound   `json:"max,omitempty"`
	Types              []TypeRef   `json:"type,omitempty"`
	Binding            *Binding    `json:"binding,omitempty"`
	Fixed              *PolyValue  `json:"fixed,omitempty"`
	Pattern            *PolyValue  `json:"pattern,omitempty"`
	DefaultValue       *PolyValue  `json:"defaultValue,omitempty"`
	MinValue           *PolyValue  `json:"minValue,omitempty"`
	MaxValue           *PolyValue  `json:"maxValue,omitempty"`
	MustSupport        *bool       `json:"mustSupport,omitempty"`
	IsModifier         *bool       `json:"isModifier,omitempty"`
	IsModifierReason   *string     `json:"isModifierReason,omitempty"`
	IsSummary          *bool       `json:"isSummary,omitempty"`
	Short              *string     `json:"short,omitempty"`
	Definition         *string     `json:"definition,omitempty"`
	Comment            *string     `json:"comment,omitempty"`
	Requirements       *string     `json:"requirements,omitempty"`
	Label              *string     `json:"label,omitempty"`
	MeaningWhenMissing *string     `json:"meaningWhenMissing,omitempty"`
	Alias              []string    `json:"alias,omitempty"`
	MaxLength          *int        `json:"maxLength,omitempty"`
	Condition          []string    `json:"condition,omitempty"`
	ContentReference   *string     `json:"contentReference,omitempty"`
	Invariants         []Invariant `json:"constraint,omitempty"`
	Examples           []Example   `json:"example,omitempty"`
	Mappings           []Mapping   `json:"mapping,omitempty"`
}

// field describes how one Constraints field is tested, copied and compared.
type field struct {
	name   string
	has    func(c *Constraints) bool
	assign func(dst, src *Constraints)
	clear  func(c *Constraints)
	equal  func(a, b *Constraints) bool
}

func ptrField[T any](name string, at func(*Constraints) **T, cp func(T) T, eq func(a, b T) bool) field {
	return field{
		name: name,
		has:  func(c *Constraints) bool { return *at(c) != nil },
		assign: func(dst, src *Constraints) {
			v := cp(**at(src))
			*at(dst) = &v
		},
		clear: func(c *Constraints) { *at(c) = nil },
		equal: func(a, b *Constraints) bool {
			pa, pb := *at(a), *at(b)
			if pa == nil || pb == nil {
				return pa == nil && pb == nil
			}
			return eq(*pa, *pb)
		},
	}
}

func sliceField[T any](name string, at func(*Constraints) *[]T, cp func(T) T, eq func(a, b T) bool) field {
	return field{
		name: name,
		has:  func(c *Constraints) bool { return len(*at(c)) > 0 },
		assign: func(dst, src *Constraints) {
			in := *at(src)
			out := make([]T, len(in))
			for i, v := range in {
				out[i] = cp(v)
			}
			*at(dst) = out
		},
		clear: func(c *Constraints) { *at(c) = nil },
		equal: func(a, b *Constraints) bool {
			return slices.EqualFunc(*at(a), *at(b), eq)
		},
	}
}

func same[T comparable](a, b T) bool { return a == b }
func keep[T any](v T) T              { return v }

var constraintFields = []field{
	ptrField("min", func(c *Constraints) **uint32 { return &c.Min }, keep[uint32], same[uint32]),
	ptrField("max", func(c *Constraints) **MaxBound { return &c.Max }, keep[MaxBound], same[MaxBound]),
	sliceField("type", func(c *Constraints) *[]TypeRef { return &c.Types }, TypeRef.clone, TypeRef.equal),
	ptrField("binding", func(c *Constraints) **Binding { return &c.Binding }, keep[Binding], same[Binding]),
	ptrField("fixed", func(c *Constraints) **PolyValue { return &c.Fixed }, PolyValue.clone, PolyValue.equal),
	ptrField("pattern", func(c *Constraints) **PolyValue { return &c.Pattern }, PolyValue.clone, PolyValue.equal),
	ptrField("defaultValue", func(c *Constraints) **PolyValue { return &c.DefaultValue }, PolyValue.clone, PolyValue.equal),
	ptrField("minValue", func(c *Constraints) **PolyValue { return &c.MinValue }, PolyValue.clone, PolyValue.equal),
	ptrField("maxValue", func(c *Constraints) **PolyValue { return &c.MaxValue }, PolyValue.clone, PolyValue.equal),
	ptrField("mustSupport", func(c *Constraints) **bool { return &c.MustSupport }, keep[bool], same[bool]),
	ptrField("isModifier", func(c *Constraints) **bool { return &c.IsModifier }, keep[bool], same[bool]),
	ptrField("isModifierReason", func(c *Constraints) **string { return &c.IsModifierReason }, keep[string], same[string]),
	ptrField("isSummary", func(c *Constraints) **bool { return &c.IsSummary }, keep[bool], same[bool]),
	ptrField("short", func(c *Constraints) **string { return &c.Short }, keep[string], same[string]),
	ptrField("definition", func(c *Constraints) **string { return &c.Definition }, keep[string], same[string]),
	ptrField("comment", func(c *Constraints) **string { return &c.Comment }, keep[string], same[string]),
	ptrField("requirements", func(c *Constraints) **string { return &c.Requirements }, keep[string], same[string]),
	ptrField("label", func(c *Constraints) **string { return &c.Label }, keep[string], same[string]),
	ptrField("meaningWhenMissing", func(c *Constraints) **string { return &c.MeaningWhenMissing }, keep[string], same[string]),
	sliceField("alias", func(c *Constraints) *[]string { return &c.Alias }, keep[string], same[string]),
	ptrField("maxLength", func(c *Constraints) **int { return &c.MaxLength }, keep[int], same[int]),
	sliceField("condition", func(c *Constraints) *[]string { return &c.Condition }, keep[string], same[string]),
	ptrField("contentReference", func(c *Constraints) **string { return &c.ContentReference }, keep[string], same[string]),
	sliceField("constraint", func(c *Constraints) *[]Invariant { return &c.Invariants }, keep[Invariant], same[Invariant]),
	sliceField("example", func(c *Constraints) *[]Example { return &c.Examples }, Example.clone, Example.equal),
	sliceField("mapping", func(c *Constraints) *[]Mapping { return &c.Mappings }, keep[Mapping], same[Mapping]),
}

// Overlay copies every field set in src onto c. Fields absent from src are
// left unchanged: absence means "unchanged", never "cleared".
func (c *Constraints) Overlay(src Constraints) {
	for _, f := range constraintFields {
		if f.has(&src) {
			f.assign(c, &src)
		}
	}
}

// Forget clears every field of c that is set in fields.
func (c *Constraints) Forget(fields Constraints) {
	for _, f := range constraintFields {
		if f.has(&fields) {
			f.clear(c)
		}
	}
}

// Diff returns the fields of c that are absent from base or hold a different
// value. A nil base yields a copy of c.
func (c *Constraints) Diff(base *Constraints) Constraints {
	var out Constraints
	for _, f := range constraintFields {
		if !f.has(c) {
			continue
		}
		if base != nil && f.has(base) && f.equal(c, base) {
			continue
		}
		f.assign(&out, c)
	}
	return out
}

// Equal reports whether both constraint sets hold the same fields and values.
func (c *Constraints) Equal(o *Constraints) bool {
	for _, f := range constraintFields {
		if f.has(c) != f.has(o) {
			return false
		}
		if f.has(c) && !f.equal(c, o) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no field is set.
func (c *Constraints) IsEmpty() bool {
	for _, f := range constraintFields {
		if f.has(c) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (c *Constraints) Clone() Constraints {
	var out Constraints
	out.Overlay(*c)
	return out
}

// Fields lists the element keys of the fields that are set, in table order.
func (c *Constraints) Fields() []string {
	var names []string
	for _, f := range constraintFields {
		if f.has(c) {
			names = append(names, f.name)
		}
	}
	return names
}

// Ptr returns a pointer to v, for building constraint literals.
func Ptr[T any](v T) *T {
	return &v
}
