package issue

import (
	"testing"
)

func TestNewResult(t *testing.T) {
	r := NewResult()
	if r == nil {
		t.Fatal("NewResult() returned nil")
	}
	if len(r.Issues) != 0 {
		t.Errorf("NewResult() should have no issues, got %d", len(r.Issues))
	}
}

func TestResultAddError(t *testing.T) {
	r := NewResult()
	r.AddError(CodeStructure, "Unknown element 'foo'", "Patient.foo")

	if len(r.Issues) != 1 {
		t.Fatalf("Result should have 1 issue, got %d", len(r.Issues))
	}
	if r.Issues[0].Severity != SeverityError {
		t.Errorf("Issue severity = %q, want %q", r.Issues[0].Severity, SeverityError)
	}
	if len(r.Issues[0].Expression) != 1 || r.Issues[0].Expression[0] != "Patient.foo" {
		t.Errorf("Issue expression = %v, want [Patient.foo]", r.Issues[0].Expression)
	}
}

func TestResultCounts(t *testing.T) {
	r := NewResult()
	r.AddWarning(CodeInformational, "Warning 1", "Patient.photo")
	r.AddError(CodeRequired, "Error 1", "Patient.identifier")
	r.AddInfo(CodeInformational, "Info 1")
	r.AddError(CodeStructure, "Error 2", "Patient.foo")

	if r.ErrorCount() != 2 {
		t.Errorf("ErrorCount = %d, want 2", r.ErrorCount())
	}
	if r.WarningCount() != 1 {
		t.Errorf("WarningCount = %d, want 1", r.WarningCount())
	}
	if r.InfoCount() != 1 {
		t.Errorf("InfoCount = %d, want 1", r.InfoCount())
	}
	if !r.HasErrors() {
		t.Error("Result with errors should have errors")
	}
}

func TestNilResultIsEmpty(t *testing.T) {
	var r *Result
	if r.HasErrors() || r.ErrorCount() != 0 {
		t.Error("nil Result should report no errors")
	}
}

func TestResultMerge(t *testing.T) {
	r1 := NewResult()
	r1.AddError(CodeRequired, "Error 1", "Patient.identifier")

	r2 := NewResult()
	r2.AddWarning(CodeInformational, "Warning 1", "Patient.photo")

	r1.Merge(r2)
	r1.Merge(nil)

	if len(r1.Issues) != 2 {
		t.Errorf("Merged result should have 2 issues, got %d", len(r1.Issues))
	}
}

func TestResultSourceStamp(t *testing.T) {
	r := NewSourceResult("import")
	r.AddWarning(CodeNotFound, "missing")
	r.AddIssue(Issue{Severity: SeverityInformation, Source: "merge"})

	if r.Issues[0].Source != "import" {
		t.Errorf("Source = %q, want import", r.Issues[0].Source)
	}
	if r.Issues[1].Source != "merge" {
		t.Errorf("explicit Source overwritten: %q", r.Issues[1].Source)
	}
}

func TestAddWithCatalog(t *testing.T) {
	r := NewResult()
	r.Add(DiagInvalidCardinality, map[string]any{"path": "Patient.name", "min": 2, "max": 1}, "Patient.name")

	if len(r.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(r.Issues))
	}
	iss := r.Issues[0]
	if iss.MessageID != "INVALID_CARDINALITY" {
		t.Errorf("MessageID = %q", iss.MessageID)
	}
	if iss.Severity != SeverityError {
		t.Errorf("Severity = %q, want error", iss.Severity)
	}
	want := "Element 'Patient.name' has min 2 greater than max 1"
	if iss.Diagnostics != want {
		t.Errorf("Diagnostics = %q, want %q", iss.Diagnostics, want)
	}
	if got := r.ByID(DiagInvalidCardinality); len(got) != 1 {
		t.Errorf("ByID returned %d issues", len(got))
	}
}

func TestAddUnknownID(t *testing.T) {
	r := NewResult()
	r.Add(DiagnosticID("NOPE"), nil)
	if r.Issues[0].Code != CodeProcessing || r.Issues[0].Diagnostics != "NOPE" {
		t.Errorf("unexpected fallback issue: %+v", r.Issues[0])
	}
}

func TestEscalate(t *testing.T) {
	r := NewResult()
	r.Add(DiagSlicingNoDiscriminator, map[string]any{"path": "Patient.name"})
	r.Add(DiagMissingSnapshot, map[string]any{"url": "x"})

	r.Escalate(DiagSlicingNoDiscriminator)

	if r.Issues[0].Severity != SeverityError {
		t.Errorf("escalated severity = %q", r.Issues[0].Severity)
	}
	if r.Issues[1].Severity != SeverityWarning {
		t.Errorf("unrelated issue changed to %q", r.Issues[1].Severity)
	}
}

func TestFormatDiagnosticDeterministic(t *testing.T) {
	params := map[string]any{"path": "A", "reason": "{path}"}
	first := FormatDiagnostic(DiagMergeEntrySkipped, params)
	for i := 0; i < 20; i++ {
		if got := FormatDiagnostic(DiagMergeEntrySkipped, params); got != first {
			t.Fatalf("FormatDiagnostic not deterministic: %q vs %q", got, first)
		}
	}
}
