package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofhir/profiler/pkg/issue"
)

func upper(_ context.Context, doc []byte) ([]byte, *issue.Result, error) {
	out := make([]byte, len(doc))
	for i, c := range doc {
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return out, issue.NewResult(), nil
}

func jobs(n int) []Job {
	out := make([]Job, n)
	for i := range out {
		out[i] = Job{ID: fmt.Sprintf("job-%d", i), Document: []byte(fmt.Sprintf("doc%d", i))}
	}
	return out
}

func TestBatchKeepsOrder(t *testing.T) {
	for _, n := range []int{0, 1, 2, 10} {
		t.Run(fmt.Sprintf("%d jobs", n), func(t *testing.T) {
			res := NewBatch(upper, 3).Run(context.Background(), jobs(n))
			if res.TotalJobs != n || res.CompletedJobs != n || res.FailedJobs != 0 {
				t.Errorf("counts = %d/%d/%d, want %d/%d/0", res.TotalJobs, res.CompletedJobs, res.FailedJobs, n, n)
			}
			for i, r := range res.Results {
				if r.ID != fmt.Sprintf("job-%d", i) {
					t.Errorf("Results[%d].ID = %s", i, r.ID)
				}
				if want := fmt.Sprintf("DOC%d", i); string(r.Output) != want {
					t.Errorf("Results[%d].Output = %s, want %s", i, r.Output, want)
				}
			}
			if res.HasErrors() {
				t.Error("HasErrors() = true")
			}
		})
	}
}

func TestBatchDefaultWorkers(t *testing.T) {
	if b := NewBatch(upper, 0); b.workers <= 0 {
		t.Errorf("workers = %d, want > 0", b.workers)
	}
}

func TestBatchBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	fn := func(context.Context, []byte) ([]byte, *issue.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil, nil, nil
	}
	NewBatch(fn, 2).Run(context.Background(), jobs(8))
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestBatchErrors(t *testing.T) {
	bad := errors.New("bad document")
	fn := func(_ context.Context, doc []byte) ([]byte, *issue.Result, error) {
		if string(doc) == "doc1" {
			return nil, nil, bad
		}
		res := issue.NewResult()
		if string(doc) == "doc2" {
			res.AddError(issue.CodeInvalid, "min > max")
		}
		return doc, res, nil
	}
	res := NewBatch(fn, 4).Run(context.Background(), jobs(4))
	if res.FailedJobs != 1 || res.CompletedJobs != 4 {
		t.Errorf("failed/completed = %d/%d, want 1/4", res.FailedJobs, res.CompletedJobs)
	}
	failed := res.Failed()
	if len(failed) != 1 || failed[0].ID != "job-1" || !errors.Is(failed[0].Error, bad) {
		t.Errorf("Failed() = %+v", failed)
	}
	if !res.HasErrors() {
		t.Error("HasErrors() = false")
	}
}

func TestBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewBatch(upper, 2).Run(ctx, jobs(5))
	if res.CompletedJobs != 0 {
		t.Errorf("CompletedJobs = %d, want 0", res.CompletedJobs)
	}
	for _, r := range res.Results {
		if !r.Skipped || !errors.Is(r.Error, context.Canceled) {
			t.Errorf("%s: skipped=%v err=%v", r.ID, r.Skipped, r.Error)
		}
	}
}
