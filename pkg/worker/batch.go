package worker

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/gofhir/profiler/pkg/issue"
)

// Func processes one document.
type Func func(ctx context.Context, doc []byte) ([]byte, *issue.Result, error)

// Batch runs jobs through a Func with a bounded number of goroutines.
type Batch struct {
	fn      Func
	workers int
}

// NewBatch creates a Batch. workers <= 0 selects runtime.NumCPU().
func NewBatch(fn Func, workers int) *Batch {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Batch{fn: fn, workers: workers}
}

// Run processes jobs and returns their results in job order. Jobs not started
// before ctx is done are reported with ctx.Err().
func (b *Batch) Run(ctx context.Context, jobs []Job) *BatchResult {
	start := time.Now()
	result := &BatchResult{
		Results:   make([]*JobResult, len(jobs)),
		TotalJobs: len(jobs),
	}
	if len(jobs) == 0 {
		return result
	}

	// Small batches are not worth the goroutines.
	if len(jobs) <= 2 || b.workers == 1 {
		for i, job := range jobs {
			result.Results[i] = b.process(ctx, job)
		}
	} else {
		b.runParallel(ctx, jobs, result.Results)
	}

	for _, r := range result.Results {
		if r.Error != nil {
			result.FailedJobs++
		}
		if !r.Skipped {
			result.CompletedJobs++
		}
	}
	result.TotalDuration = time.Since(start)
	return result
}

func (b *Batch) runParallel(ctx context.Context, jobs []Job, results []*JobResult) {
	workers := b.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = b.process(ctx, jobs[i])
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
}

func (b *Batch) process(ctx context.Context, job Job) *JobResult {
	r := &JobResult{ID: job.ID}
	if err := ctx.Err(); err != nil {
		r.Error = err
		r.Skipped = true
		return r
	}
	start := time.Now()
	r.Output, r.Issues, r.Error = b.fn(ctx, job.Document)
	r.Duration = time.Since(start)
	return r
}
