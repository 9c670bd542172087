// Package executor runs a bounded pool of tasks concurrently and reports
// their progress as a stream of typed events, grounded on the teacher's
// own errgroup.WithContext + SetLimit idiom (pkg/repository/bulk.go's
// processRepositories/processFetchRepositories/processPullRepositories
// all share this shape), generalized here to emit events on a channel
// instead of calling a synchronous callback.
package executor

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when Executor is constructed with a
// non-positive concurrency value.
const DefaultConcurrency = 4

// maxRecordedErrors bounds how many per-task errors a Summary keeps
// inline; the rest are coalesced into ErrorsTruncated.
const maxRecordedErrors = 20

// Task is a unit of work submitted to an Executor. ID identifies the
// task in emitted events and in the resulting Summary.
type Task[R any] struct {
	ID  string
	Run func(ctx context.Context) (R, error)
}

// EventKind distinguishes the events a Future emits.
type EventKind int

const (
	EventTaskStarted EventKind = iota
	EventTaskCompleted
	EventProgress
)

// Event reports one step of a submitted task set. Done/Total are only
// meaningful on EventProgress; Result/Err are only meaningful on
// EventTaskCompleted.
type Event[R any] struct {
	Kind   EventKind
	TaskID string
	Result R
	Err    error
	Done   int
	Total  int
}

// TaskResult pairs a task's ID with its outcome.
type TaskResult[R any] struct {
	ID     string
	Result R
	Err    error
}

// Summary aggregates a completed (or cancelled) Submit call.
type Summary[R any] struct {
	Results         []TaskResult[R]
	Succeeded       int
	Failed          int
	Cancelled       bool
	Errors          []error
	ErrorsTruncated int
}

// Executor runs Tasks across a bounded pool of worker goroutines.
type Executor[R any] struct {
	concurrency int
}

// New constructs an Executor with the given worker concurrency. A
// non-positive value falls back to DefaultConcurrency.
func New[R any](concurrency int) *Executor[R] {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Executor[R]{concurrency: concurrency}
}

// Future represents an in-flight Submit call.
type Future[R any] struct {
	events chan Event[R]
	cancel context.CancelFunc
	done   chan Summary[R]
}

// Events returns the channel of typed progress events. It is closed once
// every task has finished, after which Wait will return immediately.
func (f *Future[R]) Events() <-chan Event[R] { return f.events }

// Cancel stops new tasks from starting and propagates cancellation into
// in-flight tasks' context, which in turn tears down any running git
// subprocess (internal/gitcmd honors context cancellation directly).
func (f *Future[R]) Cancel() { f.cancel() }

// Wait blocks until every task has completed or been cancelled and
// returns the aggregate Summary.
func (f *Future[R]) Wait() Summary[R] { return <-f.done }

// Submit dispatches tasks across the executor's worker pool. Task
// failures never abort the run; each is recorded in the eventual
// Summary rather than propagated as an error from Wait.
func (e *Executor[R]) Submit(ctx context.Context, tasks []Task[R]) (*Future[R], error) {
	if len(tasks) == 0 {
		return nil, errors.New("executor: no tasks submitted")
	}

	runCtx, cancel := context.WithCancel(ctx)
	future := &Future[R]{
		events: make(chan Event[R], len(tasks)*3),
		cancel: cancel,
		done:   make(chan Summary[R], 1),
	}

	go e.run(runCtx, tasks, future)
	return future, nil
}

func (e *Executor[R]) run(ctx context.Context, tasks []Task[R], future *Future[R]) {
	total := len(tasks)
	results := make([]TaskResult[R], total)
	var mu sync.Mutex
	doneCount := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			var result R
			err := gctx.Err()
			if err == nil {
				future.events <- Event[R]{Kind: EventTaskStarted, TaskID: task.ID}
				result, err = task.Run(gctx)
			}

			mu.Lock()
			results[i] = TaskResult[R]{ID: task.ID, Result: result, Err: err}
			doneCount++
			progress := doneCount
			mu.Unlock()

			future.events <- Event[R]{Kind: EventTaskCompleted, TaskID: task.ID, Result: result, Err: err}
			future.events <- Event[R]{Kind: EventProgress, Done: progress, Total: total}
			return nil
		})
	}
	_ = g.Wait()
	close(future.events)

	summary := Summary[R]{Results: results, Cancelled: ctx.Err() != nil}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			if len(summary.Errors) < maxRecordedErrors {
				summary.Errors = append(summary.Errors, r.Err)
			} else {
				summary.ErrorsTruncated++
			}
		} else {
			summary.Succeeded++
		}
	}
	future.done <- summary
}
