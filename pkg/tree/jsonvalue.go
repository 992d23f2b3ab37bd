package tree

import (
	"bytes"
	"reflect"

	"github.com/goccy/go-json"
)

// JSONEqual compares two JSON values structurally, ignoring whitespace and
// object key order.
func JSONEqual(a, b json.RawMessage) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if bytes.Equal(a, b) {
		return true
	}

	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

// CompactJSON returns raw with insignificant whitespace removed. Invalid JSON
// is returned unchanged.
func CompactJSON(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func rawMapEqual(a, b map[string]json.RawMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !JSONEqual(av, bv) {
			return false
		}
	}
	return true
}
