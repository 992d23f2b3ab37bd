package canonical

import (
	"strings"
	"testing"
)

func TestMarshalResourceOrder(t *testing.T) {
	doc := map[string]any{
		"differential": map[string]any{
			"element": []any{
				map[string]any{
					"max":         "1",
					"path":        "Patient.name",
					"id":          "Patient.name",
					"zExtra":      "z",
					"aExtra":      "a",
					"fixedString": "x",
					"mustSupport": true,
				},
			},
		},
		"url":          "http://example.org/StructureDefinition/p",
		"resourceType": "StructureDefinition",
		"name":         "P",
		"custom":       "kept",
		"abstract":     false,
		"text":         map[string]any{"status": "generated", "div": "<div>x</div>"},
	}

	got, err := Marshal(doc, false)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"resourceType":"StructureDefinition","text":{"div":"<div>x</div>","status":"generated"},` +
		`"url":"http://example.org/StructureDefinition/p","name":"P","abstract":false,` +
		`"differential":{"element":[{"id":"Patient.name","path":"Patient.name","max":"1",` +
		`"fixedString":"x","mustSupport":true,"aExtra":"a","zExtra":"z"}]},"custom":"kept"}`
	if string(got) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", got, want)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	doc := map[string]any{
		"resourceType": "StructureDefinition",
		"b":            1,
		"a":            map[string]any{"y": 1, "x": []any{map[string]any{"d": 1, "c": 2}}},
	}
	first, err := Marshal(doc, true)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Marshal(doc, true)
		if string(again) != string(first) {
			t.Fatal("Marshal is not deterministic")
		}
	}
	if !strings.HasPrefix(string(first), "{\n  \"resourceType\"") {
		t.Errorf("pretty output not indented: %s", first)
	}
}

func TestMarshalDropsEmpty(t *testing.T) {
	got, err := Marshal(map[string]any{"resourceType": "X", "empty": []any{}, "nil": nil, "s": ""}, false)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"resourceType":"X"}` {
		t.Errorf("Marshal = %s", got)
	}
}
