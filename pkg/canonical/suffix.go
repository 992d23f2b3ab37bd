package canonical

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/tree"
)

// InferTypeSuffix guesses the FHIR type of a decoded JSON value from its
// shape, for keys such as fixed[x] whose type was not recorded.
func InferTypeSuffix(v any) string {
	switch x := v.(type) {
	case bool:
		return "Boolean"
	case json.Number:
		if strings.ContainsAny(x.String(), ".eE") {
			return "Decimal"
		}
		return "Integer"
	case float64:
		if x == float64(int64(x)) {
			return "Integer"
		}
		return "Decimal"
	case int, int32, int64, uint32:
		return "Integer"
	case string:
		return "String"
	case map[string]any:
		return inferObject(x)
	case Object:
		return inferObject(x)
	}
	return "String"
}

func inferObject(m map[string]any) string {
	has := func(k string) bool { _, ok := m[k]; return ok }
	switch {
	case has("reference"):
		return "Reference"
	case has("value") && has("unit"):
		return "Quantity"
	case has("coding"):
		return "CodeableConcept"
	case has("system") && has("code"):
		return "Coding"
	case has("start") || has("end"):
		return "Period"
	case has("family") || has("given"):
		return "HumanName"
	case has("line") || has("city"):
		return "Address"
	}
	return "String"
}

// PolyKey returns the element key for a polymorphic value, e.g. prefix
// "pattern" and a CodeableConcept value give "patternCodeableConcept". A
// recorded type wins over inference.
func PolyKey(prefix string, pv tree.PolyValue) string {
	if pv.Type != "" {
		return prefix + pv.Type
	}
	v, err := Decode(pv.Value)
	if err != nil {
		return prefix + "String"
	}
	return prefix + InferTypeSuffix(v)
}

// SplitPolyKey splits a key such as fixedCoding into the matching prefix and
// type suffix. ok is false when key does not start with any of the prefixes.
func SplitPolyKey(key string, prefixes ...string) (prefix, suffix string, ok bool) {
	for _, p := range prefixes {
		if IsPolymorphic(key, p) {
			return p, key[len(p):], true
		}
	}
	return "", "", false
}
