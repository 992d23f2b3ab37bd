package importer

import (
	"sort"

	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/canonical"
	"github.com/gofhir/profiler/pkg/errs"
	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/tree"
)

// Element is one parsed ElementDefinition.
type Element struct {
	// Index is the position in the source array.
	Index     int
	ID        string
	Path      string
	SliceName string
	// Address is the slice-qualified address resolved from id, path and sliceName.
	Address     tree.Address
	Constraints tree.Constraints
	Slicing     *tree.Slicing
	Unknown     map[string]json.RawMessage
}

// Key returns the rendered address.
func (e *Element) Key() string {
	return e.Address.String()
}

// polyPrefixes are the keys whose name carries a type suffix.
var polyPrefixes = []string{"fixed", "pattern", "defaultValue", "minValue", "maxValue"}

// identityKeys are consumed while resolving the address.
var identityKeys = map[string]bool{"id": true, "path": true, "sliceName": true}

type decodeFunc func(el *Element, raw json.RawMessage) error

// elementFields decodes the modeled ElementDefinition keys.
var elementFields = map[string]decodeFunc{
	"min": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.Min)
	},
	"max": func(el *Element, raw json.RawMessage) error {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		m, err := tree.ParseMax(s)
		if err != nil {
			return err
		}
		el.Constraints.Max = &m
		return nil
	},
	"type": func(el *Element, raw json.RawMessage) error {
		return json.Unmarshal(raw, &el.Constraints.Types)
	},
	"binding": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.Binding)
	},
	"mustSupport": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.MustSupport)
	},
	"isModifier": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.IsModifier)
	},
	"isModifierReason": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.IsModifierReason)
	},
	"isSummary": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.IsSummary)
	},
	"short": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.Short)
	},
	"definition": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.Definition)
	},
	"comment": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.Comment)
	},
	"requirements": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.Requirements)
	},
	"label": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.Label)
	},
	"meaningWhenMissing": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.MeaningWhenMissing)
	},
	"alias": func(el *Element, raw json.RawMessage) error {
		return json.Unmarshal(raw, &el.Constraints.Alias)
	},
	"maxLength": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.MaxLength)
	},
	"condition": func(el *Element, raw json.RawMessage) error {
		return json.Unmarshal(raw, &el.Constraints.Condition)
	},
	"contentReference": func(el *Element, raw json.RawMessage) error {
		return decodeInto(raw, &el.Constraints.ContentReference)
	},
	"constraint": func(el *Element, raw json.RawMessage) error {
		return json.Unmarshal(raw, &el.Constraints.Invariants)
	},
	"mapping": func(el *Element, raw json.RawMessage) error {
		return json.Unmarshal(raw, &el.Constraints.Mappings)
	},
	"example": decodeExamples,
	"slicing": decodeSlicing,
}

// decodeInto decodes a scalar or object into a fresh value behind dst.
func decodeInto[T any](raw json.RawMessage, dst **T) error {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

func decodeExamples(el *Element, raw json.RawMessage) error {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	for _, item := range items {
		var ex tree.Example
		if l, ok := item["label"]; ok {
			if err := json.Unmarshal(l, &ex.Label); err != nil {
				return err
			}
		}
		for _, k := range sortedKeys(item) {
			if _, suffix, ok := canonical.SplitPolyKey(k, "value"); ok {
				ex.Value = tree.PolyValue{Type: suffix, Value: tree.CompactJSON(item[k])}
				break
			}
		}
		el.Constraints.Examples = append(el.Constraints.Examples, ex)
	}
	return nil
}

func decodeSlicing(el *Element, raw json.RawMessage) error {
	var s tree.Slicing
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	el.Slicing = &s
	return nil
}

// ParseElement decodes one ElementDefinition. Modeled keys populate the
// constraints; every other key is kept verbatim in Unknown. index is the
// position in the source array and is used for diagnostics and ordering.
func ParseElement(raw json.RawMessage, index int, res *issue.Result) (*Element, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errs.InvalidValue("", "element", "element %d is not a JSON object: %v", index, err)
	}

	el := &Element{Index: index}
	for key, dst := range map[string]*string{"id": &el.ID, "path": &el.Path, "sliceName": &el.SliceName} {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return nil, errs.InvalidValue(el.Path, key, "must be a string")
		}
	}
	if el.Path == "" {
		return nil, errs.MissingField(el.ID, "path")
	}

	entry := tree.DifferentialElement{Path: el.Path, ElementID: el.ID, SliceName: el.SliceName}
	addr, _, err := entry.ResolveAddress()
	if err != nil {
		e := errs.InvalidPath(el.Path, "element %d has a malformed address", index)
		e.Err = err
		return nil, e
	}
	el.Address = addr
	at := addr.String()

	for _, key := range sortedKeys(obj) {
		value := obj[key]
		if identityKeys[key] {
			continue
		}
		if string(value) == "null" {
			continue
		}
		if decode, ok := elementFields[key]; ok {
			if err := decode(el, value); err != nil {
				e := errs.InvalidValue(at, key, "malformed value")
				e.Err = err
				return nil, e
			}
			continue
		}
		if prefix, suffix, ok := canonical.SplitPolyKey(key, polyPrefixes...); ok {
			pv := &tree.PolyValue{Type: suffix, Value: tree.CompactJSON(value)}
			switch prefix {
			case "fixed":
				el.Constraints.Fixed = pv
			case "pattern":
				el.Constraints.Pattern = pv
			case "defaultValue":
				el.Constraints.DefaultValue = pv
			case "minValue":
				el.Constraints.MinValue = pv
			case "maxValue":
				el.Constraints.MaxValue = pv
			}
			continue
		}
		if el.Unknown == nil {
			el.Unknown = make(map[string]json.RawMessage)
		}
		el.Unknown[key] = value
	}

	if el.Slicing != nil {
		checkDiscriminators(at, el.Slicing, res)
	}
	return el, nil
}

func checkDiscriminators(at string, s *tree.Slicing, res *issue.Result) {
	if res == nil {
		return
	}
	for _, d := range s.Discriminators {
		if !d.Type.Valid() {
			res.Add(issue.DiagUnresolvedDiscriminator, map[string]any{"type": d.Type, "path": at}, at)
		}
	}
}

// ParseElements decodes an element array. An empty array is an error.
func ParseElements(section string, raws []json.RawMessage, res *issue.Result) ([]*Element, error) {
	out, err := decodeElements(section, raws, res)
	if err != nil {
		return nil, err
	}
	reportUnknown(out, res, nil)
	return out, nil
}

func decodeElements(section string, raws []json.RawMessage, res *issue.Result) ([]*Element, error) {
	if len(raws) == 0 {
		return nil, errs.MissingField(section, "element")
	}
	out := make([]*Element, 0, len(raws))
	for i, raw := range raws {
		el, err := ParseElement(raw, i, res)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

// reportUnknown adds one preservation notice per distinct unmodeled key that
// is not in reported, and returns reported extended with the keys of elements.
func reportUnknown(elements []*Element, res *issue.Result, reported map[string]bool) map[string]bool {
	first := make(map[string]string)
	for _, el := range elements {
		for k := range el.Unknown {
			if _, seen := first[k]; !seen && !reported[k] {
				first[k] = el.Key()
			}
		}
	}
	if reported == nil {
		reported = make(map[string]bool, len(first))
	}
	for _, k := range sortedKeys(first) {
		reported[k] = true
		if res != nil {
			res.Add(issue.DiagUnknownFieldPreserved, map[string]any{"field": k}, first[k])
		}
	}
	return reported
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// isSliced reports whether an element belongs to the slicing pass.
func isSliced(el *Element) bool {
	return el.Address.IsSliced()
}

// slicedDepth counts the sliced steps of an address.
func slicedDepth(a tree.Address) int {
	n := 0
	for _, st := range a {
		if st.Slice != "" {
			n++
		}
	}
	return n
}

// rootName returns the first step of an address.
func rootName(a tree.Address) string {
	if len(a) == 0 {
		return ""
	}
	return a[0].Name
}
