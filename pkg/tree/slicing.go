package tree

import "slices"

// DiscriminatorType is the rule a slicing discriminator applies.
type DiscriminatorType string

// Discriminator types.
const (
	ByValue    DiscriminatorType = "value"
	ByExists   DiscriminatorType = "exists"
	ByPattern  DiscriminatorType = "pattern"
	ByType     DiscriminatorType = "type"
	ByProfile  DiscriminatorType = "profile"
	ByPosition DiscriminatorType = "position"
)

// Valid reports whether t is one of the known discriminator types.
func (t DiscriminatorType) Valid() bool {
	switch t {
	case ByValue, ByExists, ByPattern, ByType, ByProfile, ByPosition:
		return true
	}
	return false
}

// Discriminator selects the slice a repeated value belongs to.
type Discriminator struct {
	Type DiscriminatorType `json:"type"`
	Path string            `json:"path"`
}

// SlicingRules controls whether values outside the declared slices are allowed.
type SlicingRules string

// Slicing rules.
const (
	RulesOpen      SlicingRules = "open"
	RulesClosed    SlicingRules = "closed"
	RulesOpenAtEnd SlicingRules = "openAtEnd"
)

// Valid reports whether r is a known rule.
func (r SlicingRules) Valid() bool {
	return r == RulesOpen || r == RulesClosed || r == RulesOpenAtEnd
}

// Slicing is the definition carried by the element that introduces slicing.
type Slicing struct {
	Discriminators []Discriminator `json:"discriminator,omitempty"`
	Description    string          `json:"description,omitempty"`
	Ordered        bool            `json:"ordered,omitempty"`
	Rules          SlicingRules    `json:"rules,omitempty"`
}

// DefaultSlicing is the open slicing without discriminators that is attached
// to an element whose slices arrived without a slicing definition.
func DefaultSlicing() *Slicing {
	return &Slicing{Rules: RulesOpen}
}

// Clone returns a deep copy; nil stays nil.
func (s *Slicing) Clone() *Slicing {
	if s == nil {
		return nil
	}
	out := *s
	out.Discriminators = slices.Clone(s.Discriminators)
	return &out
}

// Equal compares two slicing definitions; two nils are equal.
func (s *Slicing) Equal(o *Slicing) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	return s.Description == o.Description && s.Ordered == o.Ordered &&
		s.Rules == o.Rules && slices.Equal(s.Discriminators, o.Discriminators)
}
