// Package preserve keeps JSON content the element model does not understand.
//
// Unknown fields captured at import are written back by Inject. Reconcile
// folds a previously exported document into a fresh export so hand-authored
// content survives, and Drift reports what an export changed.
package preserve

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/canonical"
)

// Sections are the element-list sections of a StructureDefinition.
var Sections = []string{"snapshot", "differential"}

// identityKeys lists the arrays merged entry by entry, keyed by the named
// field, instead of being replaced.
var identityKeys = map[string]string{
	"constraint": "key",
	"mapping":    "identity",
	"type":       "code",
	"example":    "label",
}

// polyPrefixes are the element keys that carry a type suffix.
var polyPrefixes = []string{"fixed", "pattern", "defaultValue", "minValue", "maxValue"}

// Inject writes unknown fields into obj where obj has no value for the key.
// Computed values are never overwritten. It returns the keys written.
func Inject(obj canonical.Object, unknown map[string]json.RawMessage) []string {
	var written []string
	for key, raw := range unknown {
		v, err := canonical.Decode(raw)
		if err != nil {
			continue
		}
		if obj.SetIfAbsent(key, v) {
			written = append(written, key)
		}
	}
	return written
}

// Reconcile merges original into generated and returns generated. Fields
// present only in original are copied in; fields both carry keep the
// generated value, except objects, which are merged recursively, and the
// identity-keyed arrays (constraint, mapping, type, example), which are
// merged by key. Snapshot and differential elements are matched by id, then
// by path and slice name. A section generated lacks is never taken from
// original, and original elements with no generated match are dropped.
func Reconcile(original, generated map[string]any) map[string]any {
	if generated == nil {
		return nil
	}
	for key, ov := range original {
		if isSection(key) {
			gv, ok := generated[key]
			if !ok {
				continue
			}
			gsec, gok := asObject(gv)
			osec, ook := asObject(ov)
			if gok && ook {
				reconcileSection(gsec, osec)
			}
			continue
		}
		mergeField(generated, key, ov)
	}
	return generated
}

// ReconcileJSON decodes original and merges it into generated.
func ReconcileJSON(original []byte, generated map[string]any) (map[string]any, error) {
	v, err := canonical.Decode(original)
	if err != nil {
		return nil, fmt.Errorf("decode original document: %w", err)
	}
	orig, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("original document is not a JSON object")
	}
	return Reconcile(orig, generated), nil
}

// Drift returns an RFC 7386 merge patch that turns original into exported.
// An empty object means the export reproduced the original.
func Drift(original, exported []byte) ([]byte, error) {
	patch, err := jsonpatch.CreateMergePatch(original, exported)
	if err != nil {
		return nil, fmt.Errorf("create merge patch: %w", err)
	}
	return patch, nil
}

func isSection(key string) bool {
	for _, s := range Sections {
		if key == s {
			return true
		}
	}
	return false
}

func reconcileSection(generated, original map[string]any) {
	for key, ov := range original {
		if key != "element" {
			mergeField(generated, key, ov)
		}
	}
	gen, gok := asArray(generated["element"])
	orig, ook := asArray(original["element"])
	if !gok || !ook {
		return
	}

	byID := make(map[string]map[string]any)
	byPath := make(map[string]map[string]any)
	for _, item := range orig {
		el, ok := asObject(item)
		if !ok {
			continue
		}
		if id, _ := el["id"].(string); id != "" {
			byID[id] = el
		}
		if key := pathKey(el); key != "" {
			if _, dup := byPath[key]; !dup {
				byPath[key] = el
			}
		}
	}

	for _, item := range gen {
		el, ok := asObject(item)
		if !ok {
			continue
		}
		match := byID[stringField(el, "id")]
		if match == nil {
			match = byPath[pathKey(el)]
		}
		if match != nil {
			mergeObject(el, match)
		}
	}
}

func pathKey(el map[string]any) string {
	path := stringField(el, "path")
	if path == "" {
		return ""
	}
	if slice := stringField(el, "sliceName"); slice != "" {
		return path + ":" + slice
	}
	return path
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func mergeObject(dst, src map[string]any) {
	for key, sv := range src {
		mergeField(dst, key, sv)
	}
}

func mergeField(dst map[string]any, key string, sv any) {
	dv, ok := dst[key]
	if !ok || canonical.IsEmpty(dv) {
		if hasOtherPolyKey(dst, key) {
			return
		}
		if !canonical.IsEmpty(sv) {
			dst[key] = deepCopy(sv)
		}
		return
	}

	if dm, ok := asObject(dv); ok {
		if sm, ok := asObject(sv); ok {
			mergeObject(dm, sm)
		}
		return
	}

	idKey, keyed := identityKeys[key]
	if !keyed {
		return
	}
	da, dok := asArray(dv)
	sa, sok := asArray(sv)
	if dok && sok {
		dst[key] = mergeArray(da, sa, idKey)
	}
}

// hasOtherPolyKey reports whether key is a typed polymorphic key and dst
// already carries the same prefix with another type.
func hasOtherPolyKey(dst map[string]any, key string) bool {
	prefix, _, ok := canonical.SplitPolyKey(key, polyPrefixes...)
	if !ok {
		return false
	}
	for k := range dst {
		if k != key && canonical.IsPolymorphic(k, prefix) {
			return true
		}
	}
	return false
}

func mergeArray(dst, src []any, idKey string) []any {
	index := make(map[string]map[string]any, len(dst))
	for _, item := range dst {
		if m, ok := asObject(item); ok {
			if id := stringField(m, idKey); id != "" {
				index[id] = m
			}
		}
	}
	for _, item := range src {
		m, ok := asObject(item)
		if !ok {
			continue
		}
		id := stringField(m, idKey)
		if id == "" {
			continue
		}
		if match, found := index[id]; found {
			mergeObject(match, m)
			continue
		}
		cp, _ := deepCopy(m).(map[string]any)
		dst = append(dst, cp)
		index[id] = cp
	}
	return dst
}

func asObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case canonical.Object:
		return x, true
	}
	return nil, false
}

func asArray(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []canonical.Object:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	}
	return nil, false
}

func deepCopy(v any) any {
	if m, ok := asObject(v); ok {
		out := make(map[string]any, len(m))
		for k, x := range m {
			out[k] = deepCopy(x)
		}
		return out
	}
	if a, ok := asArray(v); ok {
		out := make([]any, len(a))
		for i, x := range a {
			out[i] = deepCopy(x)
		}
		return out
	}
	return v
}
