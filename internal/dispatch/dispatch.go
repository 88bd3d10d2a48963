// Package dispatch runs batches of tile tasks concurrently with bounded
// parallelism. The first task failure stops new submissions, but tasks
// already running are allowed to finish so their workspaces release cleanly.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"tileprep/internal/workspace"
)

// Task is one unit of batch work. Run executes inside a private workspace
// and returns the task's console output plus any warnings worth surfacing
// after the batch completes.
type Task interface {
	ID() string
	Run(ws *workspace.Workspace) (output string, warnings []string, err error)
}

// Result holds the outcome of a single finished task.
type Result struct {
	TaskID   string
	Output   string
	Warnings []string
}

// BatchError reports the first task failure. Output carries the failing
// task's console output verbatim so the operator sees the underlying tool
// message, not a paraphrase.
type BatchError struct {
	TaskID string
	Output string
	Err    error
}

func (e *BatchError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("task %s failed: %v\n%s", e.TaskID, e.Err, e.Output)
	}
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Dispatcher executes task batches over an isolator with at most Workers
// tasks in flight.
type Dispatcher struct {
	Workers  int
	Isolator *workspace.Isolator
	// Verify runs after every batch to check that shared state survived
	// untouched. Nil means the default base-region comparison.
	Verify func() error
}

// New creates a dispatcher. workers < 1 is treated as 1.
func New(workers int, iso *workspace.Isolator) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{Workers: workers, Isolator: iso}
}

// RunBatch executes all tasks and returns results keyed by task ID, in task
// order. On failure the returned error is a *BatchError for the first task
// that failed; results of tasks that completed before the stop are still
// returned. After the batch, the shared base window is verified against the
// snapshot taken before the first task started.
func (d *Dispatcher) RunBatch(ctx context.Context, tasks []Task) ([]Result, error) {
	baseBefore := d.Isolator.BaseRegion()

	g, bctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Workers)

	var mu sync.Mutex
	done := make(map[string]Result, len(tasks))
	var firstErr *BatchError

	for _, task := range tasks {
		// A failed task cancels bctx; stop handing out new work but
		// keep draining the tasks already started.
		if bctx.Err() != nil {
			break
		}
		task := task
		g.Go(func() error {
			// The slot may have been granted after a failure canceled
			// the batch; errgroup cancels before releasing slots, so
			// this check is reliable.
			if bctx.Err() != nil {
				return nil
			}
			ws, err := d.Isolator.Acquire(task.ID())
			if err != nil {
				return d.recordFailure(&mu, &firstErr, task.ID(), "", err)
			}
			defer ws.Release()

			out, warns, err := task.Run(ws)
			if err != nil {
				return d.recordFailure(&mu, &firstErr, task.ID(), out, err)
			}
			mu.Lock()
			done[task.ID()] = Result{TaskID: task.ID(), Output: out, Warnings: warns}
			mu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()

	verify := d.Verify
	if verify == nil {
		verify = func() error {
			return workspace.VerifyBase(baseBefore, d.Isolator.BaseRegion())
		}
	}
	if err := verify(); err != nil && waitErr == nil {
		waitErr = err
	}

	results := make([]Result, 0, len(done))
	for _, task := range tasks {
		if r, ok := done[task.ID()]; ok {
			results = append(results, r)
		}
	}

	if firstErr != nil {
		return results, firstErr
	}
	return results, waitErr
}

// recordFailure keeps the earliest failure for the batch error. It always
// returns an error so the errgroup cancels pending submissions.
func (d *Dispatcher) recordFailure(mu *sync.Mutex, first **BatchError, id, out string, err error) error {
	mu.Lock()
	if *first == nil {
		*first = &BatchError{TaskID: id, Output: out, Err: err}
	}
	mu.Unlock()
	return err
}

// CollectWarnings flattens batch warnings in a stable order so they can be
// re-emitted once the batch has finished.
func CollectWarnings(results []Result) []string {
	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TaskID < sorted[j].TaskID })
	var out []string
	for _, r := range sorted {
		out = append(out, r.Warnings...)
	}
	return out
}
