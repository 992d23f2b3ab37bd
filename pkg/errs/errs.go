// Package errs defines the error taxonomy of the profile engine.
//
// Every fatal condition is reported as an *Error carrying a Kind. Callers test
// for a kind with errors.Is against the exported sentinels:
//
//	if errors.Is(err, errs.ErrMissingField) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofhir/profiler/pkg/issue"
)

// Kind classifies an engine error.
type Kind string

// Error kinds.
const (
	// KindMissingField means a structurally required key is absent.
	KindMissingField Kind = "MissingField"
	// KindInvalidValue means a known key holds malformed content.
	KindInvalidValue Kind = "InvalidValue"
	// KindInvalidPath means an element path or address cannot be parsed.
	KindInvalidPath Kind = "InvalidPath"
	// KindInvalidResourceType means the document is not a StructureDefinition.
	KindInvalidResourceType Kind = "InvalidResourceType"
	// KindSlicing means a slicing definition is unusable (strict export only).
	KindSlicing Kind = "SlicingError"
	// KindSnapshotGeneration means the generated snapshot broke an internal invariant.
	KindSnapshotGeneration Kind = "SnapshotGeneration"
	// KindValidation means business rules blocked the operation.
	KindValidation Kind = "Validation"
)

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrMissingField        = &Error{Kind: KindMissingField}
	ErrInvalidValue        = &Error{Kind: KindInvalidValue}
	ErrInvalidPath         = &Error{Kind: KindInvalidPath}
	ErrInvalidResourceType = &Error{Kind: KindInvalidResourceType}
	ErrSlicing             = &Error{Kind: KindSlicing}
	ErrSnapshotGeneration  = &Error{Kind: KindSnapshotGeneration}
	ErrValidation          = &Error{Kind: KindValidation}
)

// Error is a classified engine error.
type Error struct {
	Kind Kind
	// Path is the element path or address the error refers to, if any.
	Path string
	// Field is the JSON key involved, if any.
	Field string
	// Msg is a human-readable description.
	Msg string
	// Issues holds the diagnostics behind a Validation error.
	Issues []issue.Issue
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	b := &strings.Builder{}
	b.WriteString(string(e.Kind))
	if e.Field != "" {
		fmt.Fprintf(b, " %q", e.Field)
	}
	if e.Path != "" {
		fmt.Fprintf(b, " at %s", e.Path)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MissingField reports a required key absent at path.
func MissingField(path, field string) *Error {
	return &Error{Kind: KindMissingField, Path: path, Field: field, Msg: "required field is missing"}
}

// InvalidValue reports malformed content of field at path.
func InvalidValue(path, field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidValue, Path: path, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// InvalidPath reports an unparsable element path or address.
func InvalidPath(path, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidPath, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// InvalidResourceType reports a document that is not of the expected resource type.
func InvalidResourceType(got, want string) *Error {
	return &Error{
		Kind:  KindInvalidResourceType,
		Field: "resourceType",
		Msg:   fmt.Sprintf("expected %s, got %q", want, got),
	}
}

// Slicing reports an unusable slicing definition at path.
func Slicing(path, format string, args ...any) *Error {
	return &Error{Kind: KindSlicing, Path: path, Msg: fmt.Sprintf(format, args...)}
}

// SnapshotCount reports a snapshot whose element count differs from the tree.
func SnapshotCount(want, got int) *Error {
	return &Error{
		Kind: KindSnapshotGeneration,
		Msg:  fmt.Sprintf("snapshot has %d elements, tree has %d nodes", got, want),
	}
}

// Validation wraps the blocking diagnostics of a validation run.
func Validation(issues []issue.Issue) *Error {
	blocking := make([]issue.Issue, 0, len(issues))
	for _, iss := range issues {
		if iss.Severity == issue.SeverityError || iss.Severity == issue.SeverityFatal {
			blocking = append(blocking, iss)
		}
	}
	msg := fmt.Sprintf("%d blocking issue(s)", len(blocking))
	if len(blocking) > 0 {
		msg += ", first: " + blocking[0].Diagnostics
	}
	return &Error{Kind: KindValidation, Msg: msg, Issues: blocking}
}
