// Package runner executes batches of independent operations against a
// capacity-constrained external system. Two limits apply independently: a
// maximum number of in-flight operations and a minimum spacing between
// operation starts. A pure semaphore cannot express the second, which is why
// start pacing goes through a rate limiter.
package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrAbortBatch is the sentinel a task returns (or wraps) to cancel the
// entire batch, regardless of ContinueOnError. It is distinct from an
// ordinary per-task failure, which only fills that task's error slot.
var ErrAbortBatch = errors.New("abort batch")

// Task is one unit of work. The context passed in is cancelled when the
// batch aborts; a task already running may finish, cancellation is advisory.
type Task[T any] func(ctx context.Context) (T, error)

// Options bound a Run call.
type Options struct {
	// MaxConcurrent caps in-flight tasks. Values below 1 are treated as 1.
	MaxConcurrent int
	// MinStartInterval is the minimum spacing between task starts,
	// independent of task duration. Zero disables pacing.
	MinStartInterval time.Duration
	// ContinueOnError keeps launching after a task fails. When false, the
	// first failure cancels the remaining unstarted tasks and is returned
	// from Run once in-flight tasks settle.
	ContinueOnError bool
}

// Batch holds the outcome of a Run call. Results and Errors are full-length
// and aligned to the input order regardless of completion order; slots whose
// task never ran hold zero values.
type Batch[T any] struct {
	Results []T
	Errors  []error
	Aborted bool
}

// Run executes tasks in strict index order subject to the concurrency and
// pacing gates, isolating each task's failure into its own error slot.
// Run returns only after every launched task has settled. The returned error
// is non-nil only when ContinueOnError is false and a task failed; it is the
// first failure observed.
func Run[T any](ctx context.Context, tasks []Task[T], opts Options) (Batch[T], error) {
	batch := Batch[T]{
		Results: make([]T, len(tasks)),
		Errors:  make([]error, len(tasks)),
	}
	if len(tasks) == 0 {
		return batch, nil
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	// The abort token: cancelled on the sentinel, on the first error when
	// ContinueOnError is false, or by the caller's own context.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var limiter *rate.Limiter
	if opts.MinStartInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.MinStartInterval), 1)
	}
	sem := semaphore.NewWeighted(int64(maxConcurrent))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
		aborted  atomic.Bool
	)
	abort := func() {
		aborted.Store(true)
		cancel()
	}

	for i, task := range tasks {
		if runCtx.Err() != nil {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(runCtx); err != nil {
				break
			}
		}
		if err := sem.Acquire(runCtx, 1); err != nil {
			break
		}
		// A release racing the abort can fulfil the acquire before the
		// cancellation is observed; re-check so no task starts after abort.
		if runCtx.Err() != nil {
			sem.Release(1)
			break
		}

		wg.Add(1)
		go func(i int, task Task[T]) {
			defer wg.Done()
			defer sem.Release(1)

			// Each goroutine writes only its own slot.
			result, err := task(runCtx)
			if err != nil {
				batch.Errors[i] = err
				if errors.Is(err, ErrAbortBatch) {
					abort()
					return
				}
				if !opts.ContinueOnError {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					abort()
				}
				return
			}
			batch.Results[i] = result
		}(i, task)
	}

	wg.Wait()

	if ctx.Err() != nil {
		aborted.Store(true)
	}
	batch.Aborted = aborted.Load()

	return batch, firstErr
}
