package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/editor"
	"github.com/gofhir/profiler/pkg/issue"
)

// Report formats.
const (
	reportText = "text"
	reportJSON = "json"
)

// IssueReport is the JSON form of the issues of one document.
type IssueReport struct {
	Document string        `json:"document"`
	Errors   int           `json:"errors"`
	Warnings int           `json:"warnings"`
	Info     int           `json:"info"`
	Issues   []IssueOutput `json:"issues,omitempty"`
}

// IssueOutput represents a single issue in JSON output
type IssueOutput struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics"`
	Expression  []string `json:"expression,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// printIssues reports the issues of one document. Nothing is written for an
// empty result.
func printIssues(w io.Writer, format, name string, result *issue.Result) error {
	if result == nil || len(result.Issues) == 0 {
		return nil
	}
	switch format {
	case reportJSON:
		return printJSONIssues(w, name, result)
	case reportText, "":
		printTextIssues(w, name, result)
		return nil
	}
	return fmt.Errorf("unknown issue format %q (want text or json)", format)
}

func printJSONIssues(w io.Writer, name string, result *issue.Result) error {
	report := IssueReport{
		Document: name,
		Errors:   result.ErrorCount(),
		Warnings: result.WarningCount(),
		Info:     result.InfoCount(),
	}
	for _, iss := range result.Issues {
		report.Issues = append(report.Issues, IssueOutput{
			Severity:    string(iss.Severity),
			Code:        string(iss.Code),
			Diagnostics: iss.Diagnostics,
			Expression:  iss.Expression,
			Source:      iss.Source,
		})
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func printTextIssues(w io.Writer, name string, result *issue.Result) {
	fmt.Fprintf(w, "== %s ==\n", name)
	fmt.Fprintf(w, "Errors: %d, Warnings: %d, Info: %d\n", result.ErrorCount(), result.WarningCount(), result.InfoCount())
	for _, iss := range result.Issues {
		location := ""
		if len(iss.Expression) > 0 {
			location = fmt.Sprintf(" @ %s", strings.Join(iss.Expression, ", "))
		}
		fmt.Fprintf(w, "  %s [%s] %s%s\n", severityLabel(iss.Severity), iss.Code, iss.Diagnostics, location)
	}
}

func severityLabel(severity issue.Severity) string {
	switch severity {
	case issue.SeverityFatal:
		return "FATAL"
	case issue.SeverityError:
		return "ERROR"
	case issue.SeverityWarning:
		return "WARN "
	case issue.SeverityInformation:
		return "INFO "
	default:
		return "     "
	}
}

func printStats(w io.Writer, ed *editor.Editor) {
	snap := ed.Metrics().Snapshot()
	fmt.Fprintln(w, "== stats ==")
	for _, op := range snap.Operations {
		fmt.Fprintf(w, "%-8s calls=%d failed=%d avg=%s max=%s\n",
			op.Name, op.Calls, op.Failures, op.Avg.Round(time.Microsecond), op.Max.Round(time.Microsecond))
	}
	cs := ed.CacheStats()
	fmt.Fprintf(w, "bases    cached=%d hits=%d misses=%d\n", cs.Size, cs.Hits, cs.Misses)
	fmt.Fprintf(w, "issues   errors=%d warnings=%d info=%d\n", snap.ErrorsTotal, snap.WarningsTotal, snap.InfosTotal)
}
