package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"peerpipe/internal/staleness"
)

// DefaultWorkers bounds concurrent producer executions. Small on purpose:
// each worker holds a warehouse query slot and local disk bandwidth.
const DefaultWorkers = 4

// Item identifies one unit of work: produce (or re-produce) a unit for a
// date. Items are plain values; that is all that ever crosses the worker
// boundary.
type Item struct {
	Date   string
	UnitID string
}

// Result is a worker's value-typed report of a successful production.
type Result struct {
	OutputPath string
	RowCount   int64
	SizeBytes  int64
}

// RunFunc executes a single item inside a worker.
type RunFunc func(ctx context.Context, item Item) (Result, error)

// Failure records one failed item for the run summary.
type Failure struct {
	Item Item
	Err  string
}

// Summary is the per-run outcome tally the caller uses to decide process
// exit status.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
	Failures  []Failure
}

// Orchestrator drains a work set through a bounded worker pool.
//
// Failures are isolated: one failed item never aborts its siblings, and the
// full work set is always drained before Run returns. All shared-state
// mutation (the onSuccess callback, which persists manifest records) happens
// on the coordinating goroutine, immediately as each success arrives, so a
// crash mid-run leaves state consistent with whatever actually completed.
type Orchestrator struct {
	Workers int
	Log     *slog.Logger
}

// NewOrchestrator returns an orchestrator with the default worker bound.
func NewOrchestrator(log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{Workers: DefaultWorkers, Log: log}
}

type outcome struct {
	item   Item
	result Result
	err    error
}

// Run executes every item and returns the summary. onSuccess is invoked on
// the coordinating goroutine for each success, in completion order; its
// error is a state error and aborts the run's bookkeeping (workers are still
// drained first).
func (o *Orchestrator) Run(ctx context.Context, items []Item, run RunFunc, onSuccess func(Item, Result) error) (Summary, error) {
	summary := Summary{}
	if len(items) == 0 {
		return summary, nil
	}

	workers := o.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(items) {
		workers = len(items)
	}

	runID := uuid.NewString()
	o.Log.Info("run started", "run_id", runID, "items", len(items), "workers", workers)

	jobs := make(chan Item)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				outcomes <- execute(ctx, run, item)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, item := range items {
			jobs <- item
		}
	}()
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var stateErr error
	for out := range outcomes {
		if out.err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Item: out.item, Err: out.err.Error()})
			o.Log.Error("item failed", "run_id", runID, "date", out.item.Date, "unit", out.item.UnitID, "error", out.err)
			continue
		}

		if onSuccess != nil {
			if stateErr != nil {
				// A previous record failed to persist; do not count later
				// successes the manifest will not reflect.
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{Item: out.item, Err: "not recorded: " + stateErr.Error()})
				continue
			}
			if err := onSuccess(out.item, out.result); err != nil {
				stateErr = fmt.Errorf("recording %s/%s: %w", out.item.Date, out.item.UnitID, err)
				summary.Failed++
				summary.Failures = append(summary.Failures, Failure{Item: out.item, Err: stateErr.Error()})
				continue
			}
		}
		summary.Succeeded++
		o.Log.Info("item done", "run_id", runID, "date", out.item.Date, "unit", out.item.UnitID, "rows", out.result.RowCount)
	}

	o.Log.Info("run finished", "run_id", runID,
		"succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, stateErr
}

// execute runs one item, converting a panic in the producer into an ordinary
// failure so a broken unit cannot take down the run.
func execute(ctx context.Context, run RunFunc, item Item) (out outcome) {
	out.item = item
	defer func() {
		if r := recover(); r != nil {
			out.err = fmt.Errorf("panic: %v", r)
		}
	}()
	out.result, out.err = run(ctx, item)
	return out
}

// ErrStaleUpstream blocks a stage whose inputs are known stale.
var ErrStaleUpstream = errors.New("upstream data is stale")

// Gate enforces the pipeline invariant "do not render from known-stale
// data". It returns ErrStaleUpstream when the upstream staleness report is
// non-empty, unless the caller explicitly allows proceeding.
func Gate(stale []staleness.Entry, allow bool, log *slog.Logger) error {
	if len(stale) == 0 {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	if allow {
		log.Warn("proceeding despite stale upstream data", "stale_items", len(stale))
		return nil
	}
	for i, e := range stale {
		if i == 5 {
			log.Error("further stale items omitted", "remaining", len(stale)-5)
			break
		}
		log.Error("stale upstream data", "date", e.Date, "unit", e.UnitID, "reason", string(e.Reason))
	}
	return fmt.Errorf("%w: %d date/unit combinations", ErrStaleUpstream, len(stale))
}
