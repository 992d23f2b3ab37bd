package worker

import (
	"time"

	"github.com/gofhir/profiler/pkg/issue"
)

// Job is one document to process.
type Job struct {
	// ID names the job in results, typically the source file name.
	ID string

	// Document is the input JSON.
	Document []byte
}

// JobResult is the outcome of one job.
type JobResult struct {
	ID string

	// Output is the produced document, nil on error.
	Output []byte

	// Issues holds the warnings and diagnostics of the job.
	Issues *issue.Result

	Error    error
	Duration time.Duration

	// Skipped is set when the context ended before the job started.
	Skipped bool
}

// BatchResult aggregates the results of a batch in submission order.
type BatchResult struct {
	Results       []*JobResult
	TotalJobs     int
	CompletedJobs int
	FailedJobs    int
	TotalDuration time.Duration
}

// HasErrors reports whether any job failed or produced error diagnostics.
func (br *BatchResult) HasErrors() bool {
	for _, r := range br.Results {
		if r == nil {
			continue
		}
		if r.Error != nil || r.Issues != nil && r.Issues.HasErrors() {
			return true
		}
	}
	return false
}

// Failed returns the results of the jobs that returned an error.
func (br *BatchResult) Failed() []*JobResult {
	var out []*JobResult
	for _, r := range br.Results {
		if r != nil && r.Error != nil {
			out = append(out, r)
		}
	}
	return out
}
