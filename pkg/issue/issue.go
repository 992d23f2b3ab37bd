// Package issue defines diagnostics aligned with FHIR OperationOutcome.
//
// Warnings raised while importing, merging or exporting a profile are never
// thrown; they are collected in a Result returned next to the successful value.
package issue

import "fmt"

// Severity represents the severity of an issue.
type Severity string

// Severity constants aligned with FHIR IssueSeverity.
const (
	SeverityFatal       Severity = "fatal"
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// Code represents the type of issue (IssueType).
type Code string

// Code constants aligned with FHIR IssueType.
const (
	CodeInvalid       Code = "invalid"
	CodeStructure     Code = "structure"
	CodeRequired      Code = "required"
	CodeValue         Code = "value"
	CodeInvariant     Code = "invariant"
	CodeProcessing    Code = "processing"
	CodeNotSupported  Code = "not-supported"
	CodeDuplicate     Code = "duplicate"
	CodeNotFound      Code = "not-found"
	CodeBusinessRule  Code = "business-rule"
	CodeIncomplete    Code = "incomplete"
	CodeInformational Code = "informational"
)

// Issue represents a single diagnostic.
type Issue struct {
	// Severity indicates the severity level (error, warning, etc.)
	Severity Severity `json:"severity"`

	// Code indicates the type of issue
	Code Code `json:"code"`

	// Diagnostics is the human-readable description of the issue
	Diagnostics string `json:"diagnostics"`

	// Expression holds the element path(s) the issue refers to
	Expression []string `json:"expression,omitempty"`

	// Source identifies the stage that raised the issue (import, merge, export, validate)
	Source string `json:"source,omitempty"`

	// MessageID is the identifier from the diagnostic catalog
	MessageID string `json:"messageId,omitempty"`
}

// String returns a one-line rendering of the issue.
func (i Issue) String() string {
	s := fmt.Sprintf("%s [%s] %s", i.Severity, i.Code, i.Diagnostics)
	if len(i.Expression) > 0 {
		s += " @ " + i.Expression[0]
	}
	return s
}

// IsBlocking reports whether the issue is an error or fatal.
func (i Issue) IsBlocking() bool {
	return i.Severity == SeverityError || i.Severity == SeverityFatal
}

// Result holds a collection of issues.
type Result struct {
	Issues []Issue
	// Source is stamped on issues added through this Result.
	Source string
}

// NewResult creates a new empty Result.
func NewResult() *Result {
	return &Result{Issues: make([]Issue, 0, 8)}
}

// NewSourceResult creates an empty Result whose issues are stamped with source.
func NewSourceResult(source string) *Result {
	r := NewResult()
	r.Source = source
	return r
}

// AddIssue adds an issue to the result.
func (r *Result) AddIssue(iss Issue) {
	if iss.Source == "" {
		iss.Source = r.Source
	}
	r.Issues = append(r.Issues, iss)
}

// AddError adds an error-level issue.
func (r *Result) AddError(code Code, diagnostics string, expression ...string) {
	r.AddIssue(Issue{Severity: SeverityError, Code: code, Diagnostics: diagnostics, Expression: expression})
}

// AddWarning adds a warning-level issue.
func (r *Result) AddWarning(code Code, diagnostics string, expression ...string) {
	r.AddIssue(Issue{Severity: SeverityWarning, Code: code, Diagnostics: diagnostics, Expression: expression})
}

// AddInfo adds an information-level issue.
func (r *Result) AddInfo(code Code, diagnostics string, expression ...string) {
	r.AddIssue(Issue{Severity: SeverityInformation, Code: code, Diagnostics: diagnostics, Expression: expression})
}

// HasErrors returns true if there are any error-level issues.
func (r *Result) HasErrors() bool {
	if r == nil {
		return false
	}
	for _, iss := range r.Issues {
		if iss.IsBlocking() {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error-level issues.
func (r *Result) ErrorCount() int {
	return r.count(func(i Issue) bool { return i.IsBlocking() })
}

// WarningCount returns the number of warning-level issues.
func (r *Result) WarningCount() int {
	return r.count(func(i Issue) bool { return i.Severity == SeverityWarning })
}

// InfoCount returns the number of information-level issues.
func (r *Result) InfoCount() int {
	return r.count(func(i Issue) bool { return i.Severity == SeverityInformation })
}

func (r *Result) count(match func(Issue) bool) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, iss := range r.Issues {
		if match(iss) {
			n++
		}
	}
	return n
}

// Merge combines another result into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Filter returns a new Result with only issues matching the given severity.
func (r *Result) Filter(severity Severity) *Result {
	filtered := NewResult()
	for _, iss := range r.Issues {
		if iss.Severity == severity {
			filtered.Issues = append(filtered.Issues, iss)
		}
	}
	return filtered
}

// ByID returns the issues raised from the given catalog entry.
func (r *Result) ByID(id DiagnosticID) []Issue {
	var out []Issue
	for _, iss := range r.Issues {
		if iss.MessageID == string(id) {
			out = append(out, iss)
		}
	}
	return out
}

// Escalate rewrites warnings raised from the given catalog entries to errors.
// Strict export uses it to make slicing problems fatal.
func (r *Result) Escalate(ids ...DiagnosticID) {
	for i := range r.Issues {
		for _, id := range ids {
			if r.Issues[i].MessageID == string(id) && r.Issues[i].Severity == SeverityWarning {
				r.Issues[i].Severity = SeverityError
			}
		}
	}
}
