// Package worker runs independent profile documents through a function in
// parallel.
//
// Each job owns its document for the duration of the call; the pool never
// hands the same document to two workers.
//
// Example usage:
//
//	batch := worker.NewBatch(func(ctx context.Context, doc []byte) ([]byte, *issue.Result, error) {
//	    return ed.ExportBytes(ctx, doc)
//	}, 4)
//	result := batch.Run(ctx, jobs)
//	for _, r := range result.Results {
//	    if r.Error != nil {
//	        // Handle error
//	    }
//	}
package worker
