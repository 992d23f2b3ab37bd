package preserve

import (
	"testing"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/canonical"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	v, err := canonical.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	return v.(map[string]any)
}

func assertJSON(t *testing.T, got map[string]any, want string) {
	t.Helper()
	b, err := canonical.Marshal(got, false)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !jsonpatch.Equal(b, []byte(want)) {
		t.Errorf("got  %s\nwant %s", b, want)
	}
}

func TestInject(t *testing.T) {
	obj := canonical.Object{"short": "computed"}
	written := Inject(obj, map[string]json.RawMessage{
		"short":          json.RawMessage(`"stale"`),
		"orderMeaning":   json.RawMessage(`"by date"`),
		"_short":         json.RawMessage(`{"extension":[{"url":"x"}]}`),
		"representation": json.RawMessage(`[]`),
	})

	if obj["short"] != "computed" {
		t.Errorf("computed value overwritten: %v", obj["short"])
	}
	if obj["orderMeaning"] != "by date" {
		t.Errorf("orderMeaning = %v", obj["orderMeaning"])
	}
	if _, ok := obj["_short"]; !ok {
		t.Error("_short not injected")
	}
	if _, ok := obj["representation"]; ok {
		t.Error("empty array injected")
	}
	if len(written) != 2 {
		t.Errorf("written = %v, want 2 keys", written)
	}
}

func TestReconcileCopiesMissingFields(t *testing.T) {
	original := decode(t, `{
		"resourceType": "StructureDefinition",
		"id": "p",
		"jurisdiction": [{"text": "US"}],
		"text": {"status": "generated", "div": "<div/>"},
		"meta": {"lastUpdated": "2024-01-01"}
	}`)
	generated := decode(t, `{"resourceType": "StructureDefinition", "id": "p", "meta": {"versionId": "2"}}`)

	got := Reconcile(original, generated)
	assertJSON(t, got, `{
		"resourceType": "StructureDefinition",
		"id": "p",
		"jurisdiction": [{"text": "US"}],
		"text": {"status": "generated", "div": "<div/>"},
		"meta": {"lastUpdated": "2024-01-01", "versionId": "2"}
	}`)
}

func TestReconcileKeepsGeneratedValues(t *testing.T) {
	original := decode(t, `{"name": "Old", "status": "draft"}`)
	generated := decode(t, `{"name": "New"}`)

	got := Reconcile(original, generated)
	if got["name"] != "New" {
		t.Errorf("name = %v, want New", got["name"])
	}
	if got["status"] != "draft" {
		t.Errorf("status = %v, want draft", got["status"])
	}
}

func TestReconcileNeverResurrectsSections(t *testing.T) {
	original := decode(t, `{
		"snapshot": {"element": [{"id": "Patient", "path": "Patient"}]},
		"differential": {"element": [{"id": "Patient", "path": "Patient"}]}
	}`)
	generated := decode(t, `{"differential": {"element": [{"id": "Patient", "path": "Patient"}]}}`)

	got := Reconcile(original, generated)
	if _, ok := got["snapshot"]; ok {
		t.Error("snapshot section resurrected")
	}
	if _, ok := got["differential"]; !ok {
		t.Error("differential section lost")
	}
}

func TestReconcileElements(t *testing.T) {
	original := decode(t, `{"differential": {"element": [
		{"id": "Patient.name", "path": "Patient.name", "orderMeaning": "hand written"},
		{"id": "old-id", "path": "Patient.name", "sliceName": "official", "_short": {"extension": [{"url": "u"}]}},
		{"id": "Patient.gender", "path": "Patient.gender", "short": "gone"}
	]}}`)
	generated := decode(t, `{"differential": {"element": [
		{"id": "Patient.name", "path": "Patient.name", "min": 1},
		{"id": "Patient.name:official", "path": "Patient.name", "sliceName": "official"}
	]}}`)

	got := Reconcile(original, generated)
	assertJSON(t, got, `{"differential": {"element": [
		{"id": "Patient.name", "path": "Patient.name", "min": 1, "orderMeaning": "hand written"},
		{"id": "Patient.name:official", "path": "Patient.name", "sliceName": "official", "_short": {"extension": [{"url": "u"}]}}
	]}}`)
}

func TestReconcileIdentityArrays(t *testing.T) {
	original := decode(t, `{"differential": {"element": [{
		"id": "Patient",
		"path": "Patient",
		"constraint": [
			{"key": "p-1", "human": "old", "extension": [{"url": "best-practice"}]},
			{"key": "p-2", "human": "hand authored"}
		],
		"type": [{"code": "Reference", "_code": {"extension": [{"url": "t"}]}}]
	}]}}`)
	generated := decode(t, `{"differential": {"element": [{
		"id": "Patient",
		"path": "Patient",
		"constraint": [{"key": "p-1", "human": "new"}],
		"type": [{"code": "Reference", "targetProfile": ["http://x/Patient"]}]
	}]}}`)

	got := Reconcile(original, generated)
	assertJSON(t, got, `{"differential": {"element": [{
		"id": "Patient",
		"path": "Patient",
		"constraint": [
			{"key": "p-1", "human": "new", "extension": [{"url": "best-practice"}]},
			{"key": "p-2", "human": "hand authored"}
		],
		"type": [{"code": "Reference", "targetProfile": ["http://x/Patient"], "_code": {"extension": [{"url": "t"}]}}]
	}]}}`)
}

func TestReconcilePolymorphicConflict(t *testing.T) {
	original := decode(t, `{"differential": {"element": [{"id": "Patient.gender", "path": "Patient.gender", "fixedString": "male"}]}}`)
	generated := decode(t, `{"differential": {"element": [{"id": "Patient.gender", "path": "Patient.gender", "fixedCode": "female"}]}}`)

	got := Reconcile(original, generated)
	assertJSON(t, got, `{"differential": {"element": [{"id": "Patient.gender", "path": "Patient.gender", "fixedCode": "female"}]}}`)
}

func TestReconcileJSON(t *testing.T) {
	if _, err := ReconcileJSON([]byte(`[1]`), map[string]any{}); err == nil {
		t.Error("expected error for non-object original")
	}
	if _, err := ReconcileJSON([]byte(`{`), map[string]any{}); err == nil {
		t.Error("expected error for malformed original")
	}
	got, err := ReconcileJSON([]byte(`{"title":"T"}`), map[string]any{"name": "N"})
	if err != nil {
		t.Fatalf("ReconcileJSON: %v", err)
	}
	if got["title"] != "T" {
		t.Errorf("title = %v", got["title"])
	}
}

func TestDrift(t *testing.T) {
	tests := []struct {
		name     string
		original string
		exported string
		want     string
	}{
		{"unchanged", `{"a":1,"b":[1,2]}`, `{"b":[1,2],"a":1}`, `{}`},
		{"changed", `{"a":1,"b":"x"}`, `{"a":2}`, `{"a":2,"b":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Drift([]byte(tt.original), []byte(tt.exported))
			if err != nil {
				t.Fatalf("Drift: %v", err)
			}
			if !jsonpatch.Equal(got, []byte(tt.want)) {
				t.Errorf("Drift = %s, want %s", got, tt.want)
			}
		})
	}
}
