package canonical

import (
	"bytes"
	"reflect"

	"github.com/goccy/go-json"
)

// Object is a JSON object under construction. Its setters drop null, empty
// string, empty array and empty object values, and false booleans.
type Object map[string]any

// Set stores v under key unless v is empty.
func (o Object) Set(key string, v any) {
	if IsEmpty(v) {
		return
	}
	o[key] = v
}

// SetString stores a non-empty string.
func (o Object) SetString(key, s string) {
	if s != "" {
		o[key] = s
	}
}

// SetStringPtr stores a set, non-empty string.
func (o Object) SetStringPtr(key string, s *string) {
	if s != nil {
		o.SetString(key, *s)
	}
}

// SetBool stores a boolean only when it is true.
func (o Object) SetBool(key string, b bool) {
	if b {
		o[key] = true
	}
}

// SetBoolPtr stores a set boolean only when it is true.
func (o Object) SetBoolPtr(key string, b *bool) {
	if b != nil {
		o.SetBool(key, *b)
	}
}

// SetRaw decodes raw JSON and stores it unless it is empty.
func (o Object) SetRaw(key string, raw json.RawMessage) {
	v, err := Decode(raw)
	if err != nil {
		return
	}
	o.Set(key, v)
}

// SetIfAbsent stores v only when key has no value yet. It reports whether the
// value was stored.
func (o Object) SetIfAbsent(key string, v any) bool {
	if _, ok := o[key]; ok || IsEmpty(v) {
		return false
	}
	o[key] = v
	return true
}

// IsEmpty reports whether v is null, an empty string or an empty collection.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case json.RawMessage:
		t := bytes.TrimSpace(x)
		return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte("{}")) ||
			bytes.Equal(t, []byte("[]")) || bytes.Equal(t, []byte(`""`))
	case Object:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Decode parses raw JSON keeping numbers as json.Number, so integers and
// decimals survive a decode and encode unchanged.
func Decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
