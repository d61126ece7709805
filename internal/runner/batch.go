package runner

import (
	"context"
	"sync"
	"time"
)

// BatchOptions bound a BatchProcess call.
type BatchOptions struct {
	// BatchSize is the number of items processed in parallel per window.
	// Values below 1 are treated as 1.
	BatchSize int
	// DelayBetweenBatches is the pause between windows. Appropriate when the
	// remote system rate-limits by wall-clock windows rather than by
	// concurrency.
	DelayBetweenBatches time.Duration
}

// ItemError records one failed item with its original index.
type ItemError struct {
	Index int
	Err   error
}

// BatchProcess applies process to items in windows of BatchSize, waiting
// DelayBetweenBatches between windows. Per-item failures are collected with
// their original index instead of failing the whole batch. Results are
// index-aligned to items; a cancelled context stops before the next window,
// leaving later slots at their zero value.
func BatchProcess[T, R any](ctx context.Context, items []T, process func(ctx context.Context, item T) (R, error), opts BatchOptions) ([]R, []ItemError) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(items); start += batchSize {
		if ctx.Err() != nil {
			break
		}

		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = process(ctx, items[i])
			}(i)
		}
		wg.Wait()

		if end < len(items) && opts.DelayBetweenBatches > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.DelayBetweenBatches):
			}
		}
	}

	var itemErrs []ItemError
	for i, err := range errs {
		if err != nil {
			itemErrs = append(itemErrs, ItemError{Index: i, Err: err})
		}
	}
	return results, itemErrs
}
