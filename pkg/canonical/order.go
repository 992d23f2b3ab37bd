// Package canonical produces deterministic StructureDefinition JSON: fixed
// field orders, omission of empty values, element-path ordering and type
// suffixes for polymorphic keys.
package canonical

import (
	"sort"
	"strings"
	"unicode"
)

// ResourceFieldOrder is the StructureDefinition field order.
var ResourceFieldOrder = []string{
	"resourceType", "id", "meta", "implicitRules", "language", "text", "contained",
	"extension", "modifierExtension", "url", "identifier", "version", "name", "title",
	"status", "experimental", "date", "publisher", "contact", "description", "useContext",
	"jurisdiction", "purpose", "copyright", "keyword", "fhirVersion", "mapping", "kind",
	"abstract", "context", "contextInvariant", "type", "baseDefinition", "derivation",
	"snapshot", "differential",
}

// ElementFieldOrder is the ElementDefinition field order. Entries ending in
// [x] match any key with that prefix followed by a type suffix.
var ElementFieldOrder = []string{
	"id", "extension", "modifierExtension", "path", "representation", "sliceName",
	"sliceIsConstraining", "label", "code", "slicing", "short", "definition", "comment",
	"requirements", "alias", "min", "max", "base", "contentReference", "type",
	"defaultValue[x]", "meaningWhenMissing", "orderMeaning", "fixed[x]", "pattern[x]",
	"example", "minValue[x]", "maxValue[x]", "maxLength", "condition", "constraint",
	"mustSupport", "isModifier", "isModifierReason", "isSummary", "binding", "mapping",
}

// KeyOrder ranks object keys against a field-order table.
type KeyOrder struct {
	exact    map[string]int
	prefixes []prefixRank
}

type prefixRank struct {
	prefix string
	rank   int
}

// NewKeyOrder builds a KeyOrder from a table.
func NewKeyOrder(table []string) *KeyOrder {
	o := &KeyOrder{exact: make(map[string]int, len(table))}
	for i, key := range table {
		if p, ok := strings.CutSuffix(key, "[x]"); ok {
			o.prefixes = append(o.prefixes, prefixRank{prefix: p, rank: i})
			continue
		}
		o.exact[key] = i
	}
	return o
}

var (
	resourceOrder = NewKeyOrder(ResourceFieldOrder)
	elementOrder  = NewKeyOrder(ElementFieldOrder)
)

// Rank returns the table position of key.
func (o *KeyOrder) Rank(key string) (int, bool) {
	if r, ok := o.exact[key]; ok {
		return r, true
	}
	for _, p := range o.prefixes {
		if IsPolymorphic(key, p.prefix) {
			return p.rank, true
		}
	}
	return 0, false
}

// Sort orders keys: table keys in table order, then the rest alphabetically.
func (o *KeyOrder) Sort(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ri, oki := o.Rank(keys[i])
		rj, okj := o.Rank(keys[j])
		switch {
		case oki && okj:
			if ri != rj {
				return ri < rj
			}
			return keys[i] < keys[j]
		case oki != okj:
			return oki
		default:
			return keys[i] < keys[j]
		}
	})
}

// IsPolymorphic reports whether key is prefix followed by an uppercase type
// suffix, e.g. fixedCodeableConcept for prefix fixed.
func IsPolymorphic(key, prefix string) bool {
	if len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
		return false
	}
	return unicode.IsUpper(rune(key[len(prefix)]))
}
