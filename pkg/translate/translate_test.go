package translate

import (
	"context"
	"errors"
	"strings"
	"testing"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

const canonicalDoc = `{"resourceType":"StructureDefinition","url":"http://example.org/sd/p","name":"P","status":"draft","kind":"resource","abstract":false,"type":"Patient","differential":{"element":[{"id":"Patient","path":"Patient"},{"id":"Patient.name","path":"Patient.name","min":1,"max":"*"}]}}`

func TestTranslateKeepsKeyOrder(t *testing.T) {
	out, err := NewYAML().Translate(context.Background(), []byte(canonicalDoc))
	if err != nil {
		t.Fatalf("Translate() error: %v", err)
	}
	text := string(out)
	last := -1
	for _, key := range []string{"resourceType:", "url:", "name:", "status:", "kind:", "abstract:", "type:", "differential:"} {
		i := strings.Index(text, key)
		if i < 0 {
			t.Fatalf("%s missing from:\n%s", key, text)
		}
		if i < last {
			t.Errorf("%s out of order in:\n%s", key, text)
		}
		last = i
	}
	if strings.Contains(text, "{") {
		t.Errorf("output uses flow style:\n%s", text)
	}
}

func TestTranslateRoundTrip(t *testing.T) {
	out, err := NewYAML(WithIndent(4), WithIndentSequence(false)).Translate(context.Background(), []byte(canonicalDoc))
	if err != nil {
		t.Fatal(err)
	}
	back, err := ToJSON(out)
	if err != nil {
		t.Fatalf("ToJSON() error: %v", err)
	}
	if !jsonpatch.Equal(back, []byte(canonicalDoc)) {
		t.Errorf("round trip changed the document:\n%s", back)
	}
}

func TestTranslateErrors(t *testing.T) {
	y := NewYAML()
	if _, err := y.Translate(context.Background(), []byte(`[1, 2`)); err == nil {
		t.Error("expected parse error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := y.Translate(ctx, []byte(canonicalDoc)); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
