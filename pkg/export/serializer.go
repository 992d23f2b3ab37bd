package export

import (
	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/canonical"
	"github.com/gofhir/profiler/pkg/preserve"
	"github.com/gofhir/profiler/pkg/tree"
)

// ElementContent is the part of a node written into an element object.
type ElementContent struct {
	Constraints tree.Constraints
	Slicing     *tree.Slicing
	Unknown     map[string]json.RawMessage
}

// FullContent returns all of a node's content.
func FullContent(n *tree.ElementNode) ElementContent {
	return ElementContent{Constraints: n.Constraints, Slicing: n.Slicing, Unknown: n.Unknown}
}

// ChangedContent returns the content that differs from the node's baseline.
func ChangedContent(n *tree.ElementNode) ElementContent {
	c, sl, unknown := n.Changes()
	return ElementContent{Constraints: c, Slicing: sl, Unknown: unknown}
}

// IsEmpty reports whether the content has nothing to write.
func (c *ElementContent) IsEmpty() bool {
	return c.Constraints.IsEmpty() && c.Slicing == nil && len(c.Unknown) == 0
}

// SerializeElement builds the element object of n. id is the slice-qualified
// address and path the plain FHIR path; slice roots also get sliceName.
// Unknown fields fill only keys the modeled content left unset.
func SerializeElement(n *tree.ElementNode, slice *tree.SliceNode, content ElementContent) canonical.Object {
	obj := canonical.Object{}
	obj.SetString("id", n.Path)
	obj.SetString("path", n.FHIRPath())
	if slice != nil {
		obj.SetString("sliceName", slice.Name)
	}
	if content.Slicing != nil {
		obj.Set("slicing", SerializeSlicing(content.Slicing))
	}
	SerializeConstraints(obj, &content.Constraints)
	preserve.Inject(obj, content.Unknown)
	return obj
}

// SerializeSlicing builds a slicing object.
func SerializeSlicing(s *tree.Slicing) canonical.Object {
	obj := canonical.Object{}
	if len(s.Discriminators) > 0 {
		ds := make([]any, len(s.Discriminators))
		for i, d := range s.Discriminators {
			ds[i] = canonical.Object{"type": string(d.Type), "path": d.Path}
		}
		obj["discriminator"] = ds
	}
	obj.SetString("description", s.Description)
	obj.SetBool("ordered", s.Ordered)
	obj.SetString("rules", string(s.Rules))
	return obj
}

// SerializeConstraints writes every set constraint into obj.
func SerializeConstraints(obj canonical.Object, c *tree.Constraints) {
	if c.Min != nil {
		obj["min"] = *c.Min
	}
	if c.Max != nil {
		obj["max"] = c.Max.String()
	}
	if len(c.Types) > 0 {
		types := make([]any, len(c.Types))
		for i, t := range c.Types {
			o := canonical.Object{}
			o.SetString("code", t.Code)
			o.Set("profile", t.Profile)
			o.Set("targetProfile", t.TargetProfile)
			o.Set("aggregation", t.Aggregation)
			o.SetString("versioning", t.Versioning)
			types[i] = o
		}
		obj["type"] = types
	}
	if c.Binding != nil {
		o := canonical.Object{}
		o.SetString("strength", c.Binding.Strength)
		o.SetString("description", c.Binding.Description)
		o.SetString("valueSet", c.Binding.ValueSet)
		obj.Set("binding", o)
	}

	setPoly(obj, "fixed", c.Fixed)
	setPoly(obj, "pattern", c.Pattern)
	setPoly(obj, "defaultValue", c.DefaultValue)
	setPoly(obj, "minValue", c.MinValue)
	setPoly(obj, "maxValue", c.MaxValue)

	obj.SetBoolPtr("mustSupport", c.MustSupport)
	obj.SetBoolPtr("isModifier", c.IsModifier)
	obj.SetStringPtr("isModifierReason", c.IsModifierReason)
	obj.SetBoolPtr("isSummary", c.IsSummary)

	obj.SetStringPtr("short", c.Short)
	obj.SetStringPtr("definition", c.Definition)
	obj.SetStringPtr("comment", c.Comment)
	obj.SetStringPtr("requirements", c.Requirements)
	obj.SetStringPtr("label", c.Label)
	obj.SetStringPtr("meaningWhenMissing", c.MeaningWhenMissing)
	obj.SetStringPtr("contentReference", c.ContentReference)
	obj.Set("alias", c.Alias)
	obj.Set("condition", c.Condition)
	if c.MaxLength != nil {
		obj["maxLength"] = *c.MaxLength
	}

	if len(c.Invariants) > 0 {
		invs := make([]any, len(c.Invariants))
		for i, inv := range c.Invariants {
			o := canonical.Object{}
			o.SetString("key", inv.Key)
			o.SetString("requirements", inv.Requirements)
			o.SetString("severity", inv.Severity)
			o.SetString("human", inv.Human)
			o.SetString("expression", inv.Expression)
			o.SetString("xpath", inv.XPath)
			o.SetString("source", inv.Source)
			invs[i] = o
		}
		obj["constraint"] = invs
	}
	if len(c.Examples) > 0 {
		examples := make([]any, 0, len(c.Examples))
		for _, ex := range c.Examples {
			o := canonical.Object{}
			o.SetString("label", ex.Label)
			setPoly(o, "value", &ex.Value)
			examples = append(examples, o)
		}
		obj["example"] = examples
	}
	if len(c.Mappings) > 0 {
		maps := make([]any, len(c.Mappings))
		for i, m := range c.Mappings {
			o := canonical.Object{}
			o.SetString("identity", m.Identity)
			o.SetString("language", m.Language)
			o.SetString("map", m.Map)
			o.SetString("comment", m.Comment)
			maps[i] = o
		}
		obj["mapping"] = maps
	}
}

func setPoly(obj canonical.Object, prefix string, pv *tree.PolyValue) {
	if pv == nil || len(pv.Value) == 0 {
		return
	}
	v, err := canonical.Decode(pv.Value)
	if err != nil {
		return
	}
	obj.Set(canonical.PolyKey(prefix, *pv), v)
}
