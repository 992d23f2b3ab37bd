package canonical

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"

	"github.com/goccy/go-json"
)

// context tells the writer which field-order table applies to an object.
type context int

const (
	ctxResource context = iota
	ctxSection          // snapshot or differential
	ctxElement
	ctxOther
)

// Marshal encodes a StructureDefinition document deterministically. Resource
// keys follow ResourceFieldOrder, snapshot and differential elements follow
// ElementFieldOrder, keys missing from a table come after it alphabetically,
// and every other object is written with sorted keys. Empty values are dropped.
func Marshal(doc map[string]any, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, doc, ctxResource); err != nil {
		return nil, err
	}
	if !pretty {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent canonical JSON: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// MarshalElement encodes one element object with the element field order.
func MarshalElement(el map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, el, ctxElement); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v any, ctx context) error {
	switch x := v.(type) {
	case Object:
		return writeObject(buf, x, ctx)
	case map[string]any:
		return writeObject(buf, x, ctx)
	case []Object:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return writeArray(buf, items, ctx)
	case []any:
		return writeArray(buf, x, ctx)
	case json.RawMessage:
		decoded, err := Decode(x)
		if err != nil {
			return fmt.Errorf("decode embedded JSON: %w", err)
		}
		return writeValue(buf, decoded, ctx)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return writeArray(buf, items, ctx)
	}
	return writeScalar(buf, v)
}

func writeObject(buf *bytes.Buffer, obj map[string]any, ctx context) error {
	keys := make([]string, 0, len(obj))
	for k, v := range obj {
		if !IsEmpty(v) {
			keys = append(keys, k)
		}
	}
	switch ctx {
	case ctxResource:
		resourceOrder.Sort(keys)
	case ctxElement:
		elementOrder.Sort(keys)
	default:
		sort.Strings(keys)
	}

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeScalar(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, obj[k], childContext(ctx, k)); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

func childContext(parent context, key string) context {
	switch parent {
	case ctxResource:
		if key == "snapshot" || key == "differential" {
			return ctxSection
		}
	case ctxSection:
		if key == "element" {
			return ctxElement
		}
	}
	return ctxOther
}

func writeArray(buf *bytes.Buffer, items []any, ctx context) error {
	buf.WriteByte('[')
	n := 0
	for _, item := range items {
		if IsEmpty(item) {
			continue
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, item, ctx); err != nil {
			return err
		}
		n++
	}
	buf.WriteByte(']')
	return nil
}

func writeScalar(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
