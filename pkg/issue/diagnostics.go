package issue

import (
	"fmt"
	"sort"
	"strings"
)

// DiagnosticID identifies a specific diagnostic message.
type DiagnosticID string

// Import diagnostics.
const (
	DiagUnknownFieldPreserved   DiagnosticID = "UNKNOWN_FIELD_PRESERVED"
	DiagMissingSnapshot         DiagnosticID = "MISSING_SNAPSHOT"
	DiagElementNotFound         DiagnosticID = "ELEMENT_NOT_FOUND"
	DiagUnresolvedDiscriminator DiagnosticID = "UNRESOLVED_DISCRIMINATOR"
	DiagOrphanedSlice           DiagnosticID = "ORPHANED_SLICE"
	DiagSlicingReconstructed    DiagnosticID = "SLICING_RECONSTRUCTED"
	DiagDuplicateElement        DiagnosticID = "DUPLICATE_ELEMENT"
)

// Merge diagnostics.
const (
	DiagMergeEntrySkipped DiagnosticID = "MERGE_ENTRY_SKIPPED"
)

// Validation diagnostics.
const (
	DiagInvalidCardinality     DiagnosticID = "INVALID_CARDINALITY"
	DiagCardinalityWidened     DiagnosticID = "CARDINALITY_WIDENED"
	DiagInvalidName            DiagnosticID = "INVALID_NAME"
	DiagInvalidSliceName       DiagnosticID = "INVALID_SLICE_NAME"
	DiagSlicingNoDiscriminator DiagnosticID = "SLICING_NO_DISCRIMINATOR"
	DiagInvalidInvariant       DiagnosticID = "INVALID_INVARIANT"
	DiagInvariantMissingKey    DiagnosticID = "INVARIANT_MISSING_KEY"
	DiagDuplicateInvariantKey  DiagnosticID = "DUPLICATE_INVARIANT_KEY"
)

// DiagnosticTemplate defines the structure for a diagnostic message.
type DiagnosticTemplate struct {
	ID       DiagnosticID
	Severity Severity
	Code     Code
	Template string
}

// diagnosticTemplates maps diagnostic IDs to their templates.
// Templates use {placeholder} syntax for variable substitution.
var diagnosticTemplates = map[DiagnosticID]DiagnosticTemplate{
	DiagUnknownFieldPreserved: {
		Severity: SeverityInformation,
		Code:     CodeInformational,
		Template: "Field '{field}' is not modeled and will be preserved verbatim",
	},
	DiagMissingSnapshot: {
		Severity: SeverityWarning,
		Code:     CodeIncomplete,
		Template: "StructureDefinition '{url}' has no snapshot; the tree was built from the differential",
	},
	DiagElementNotFound: {
		Severity: SeverityInformation,
		Code:     CodeNotFound,
		Template: "Differential element '{path}' does not exist in the base tree and was skipped",
	},
	DiagUnresolvedDiscriminator: {
		Severity: SeverityWarning,
		Code:     CodeValue,
		Template: "Discriminator type '{type}' on '{path}' is not recognized",
	},
	DiagOrphanedSlice: {
		Severity: SeverityWarning,
		Code:     CodeStructure,
		Template: "Slice element '{path}' has no sliced base element and was dropped",
	},
	DiagSlicingReconstructed: {
		Severity: SeverityInformation,
		Code:     CodeInformational,
		Template: "Element '{path}' has slices but no slicing definition; an open slicing without discriminators was added",
	},
	DiagDuplicateElement: {
		Severity: SeverityWarning,
		Code:     CodeDuplicate,
		Template: "Element '{path}' appears more than once; the later definition was merged into the first",
	},
	DiagMergeEntrySkipped: {
		Severity: SeverityWarning,
		Code:     CodeNotFound,
		Template: "Differential entry '{path}' could not be applied: {reason}",
	},
	DiagInvalidCardinality: {
		Severity: SeverityError,
		Code:     CodeInvariant,
		Template: "Element '{path}' has min {min} greater than max {max}",
	},
	DiagCardinalityWidened: {
		Severity: SeverityError,
		Code:     CodeBusinessRule,
		Template: "Element '{path}' cardinality {min}..{max} is wider than the base {baseMin}..{baseMax}",
	},
	DiagInvalidName: {
		Severity: SeverityError,
		Code:     CodeBusinessRule,
		Template: "Name '{name}' must start with an uppercase letter and contain only letters, digits and '_'",
	},
	DiagInvalidSliceName: {
		Severity: SeverityError,
		Code:     CodeBusinessRule,
		Template: "Slice name '{name}' on '{path}' contains characters that are not allowed",
	},
	DiagSlicingNoDiscriminator: {
		Severity: SeverityWarning,
		Code:     CodeStructure,
		Template: "Slicing on '{path}' has no discriminator",
	},
	DiagInvalidInvariant: {
		Severity: SeverityWarning,
		Code:     CodeInvariant,
		Template: "Invariant '{key}' on '{path}' does not compile: {error}",
	},
	DiagInvariantMissingKey: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Invariant on '{path}' has no key",
	},
	DiagDuplicateInvariantKey: {
		Severity: SeverityError,
		Code:     CodeDuplicate,
		Template: "Invariant key '{key}' is defined more than once on '{path}'",
	},
}

// FormatDiagnostic formats a diagnostic message with the given parameters.
func FormatDiagnostic(id DiagnosticID, params map[string]any) string {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		return string(id)
	}
	return formatTemplate(tmpl.Template, params)
}

// GetDiagnosticTemplate returns the template for a diagnostic ID.
func GetDiagnosticTemplate(id DiagnosticID) (DiagnosticTemplate, bool) {
	tmpl, ok := diagnosticTemplates[id]
	if ok {
		tmpl.ID = id
	}
	return tmpl, ok
}

// formatTemplate replaces {placeholder} with values from params.
// Keys are applied in sorted order so output never depends on map iteration.
func formatTemplate(template string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := template
	for _, key := range keys {
		result = strings.ReplaceAll(result, "{"+key+"}", fmt.Sprint(params[key]))
	}
	return result
}

// Add adds an issue from the catalog with its default severity.
func (r *Result) Add(id DiagnosticID, params map[string]any, expression ...string) {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		r.AddError(CodeProcessing, string(id), expression...)
		return
	}
	r.AddIssue(Issue{
		Severity:    tmpl.Severity,
		Code:        tmpl.Code,
		Diagnostics: formatTemplate(tmpl.Template, params),
		Expression:  expression,
		MessageID:   string(id),
	})
}

// AddErrorWithID adds a catalog issue forced to error severity.
func (r *Result) AddErrorWithID(id DiagnosticID, params map[string]any, expression ...string) {
	r.addWithSeverity(id, SeverityError, params, expression)
}

// AddWarningWithID adds a catalog issue forced to warning severity.
func (r *Result) AddWarningWithID(id DiagnosticID, params map[string]any, expression ...string) {
	r.addWithSeverity(id, SeverityWarning, params, expression)
}

func (r *Result) addWithSeverity(id DiagnosticID, sev Severity, params map[string]any, expression []string) {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		r.AddIssue(Issue{Severity: sev, Code: CodeProcessing, Diagnostics: string(id), Expression: expression})
		return
	}
	r.AddIssue(Issue{
		Severity:    sev,
		Code:        tmpl.Code,
		Diagnostics: formatTemplate(tmpl.Template, params),
		Expression:  expression,
		MessageID:   string(id),
	})
}
