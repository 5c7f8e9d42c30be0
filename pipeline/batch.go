package pipeline

import (
	"context"
	"time"

	"github.com/opd-ai/loudnorm/config"
)

// BatchPlan is one iteration of the continuous processing loop: the
// inputs to enumerate and the configuration to process them under.
type BatchPlan struct {
	// Inputs holds file paths and/or directory paths to scan.
	Inputs []string

	// Config overrides the orchestrator's configuration for this batch.
	// Nil reuses the configuration the orchestrator was built with.
	Config *config.Config
}

// BatchPlanner supplies plans for successive batch runs. Interactive
// frontends prompt the operator inside NextBatch; embedding callers can
// return a fixed sequence.
type BatchPlanner interface {
	// NextBatch returns the plan for the next run. previous carries the
	// report of the run just finished, nil before the first. Returning a
	// nil plan with a nil error ends the loop.
	NextBatch(ctx context.Context, previous *Report) (*BatchPlan, error)
}

// PlannerFunc adapts a plain function to the BatchPlanner interface.
type PlannerFunc func(ctx context.Context, previous *Report) (*BatchPlan, error)

// NextBatch implements BatchPlanner for PlannerFunc.
func (f PlannerFunc) NextBatch(ctx context.Context, previous *Report) (*BatchPlan, error) {
	return f(ctx, previous)
}

// BatchRun is one pass over a fixed set of items. Membership is fixed
// when the run is created; files appearing under the inputs afterwards
// belong to the next batch.
type BatchRun struct {
	// Config is the immutable configuration the run processes under.
	Config *config.Config

	// Items holds one entry per enumerated input, in scan order.
	Items []*JobItem

	started time.Time
}

// newBatchRun enumerates matching inputs into pending items.
func newBatchRun(cfg *config.Config, inputs []string) (*BatchRun, error) {
	paths, err := Scan(inputs, cfg.Extensions)
	if err != nil {
		return nil, err
	}
	run := &BatchRun{
		Config: cfg,
		Items:  make([]*JobItem, len(paths)),
	}
	for i, path := range paths {
		item := NewJobItem(path)
		item.Ordinal = i
		run.Items[i] = item
	}
	return run, nil
}

// Size returns the number of enumerated items.
func (r *BatchRun) Size() int {
	return len(r.Items)
}

// counts tallies the items by terminal outcome. Items that never left
// Pending (a cancelled run) count as skipped.
func (r *BatchRun) counts() (succeeded, failed, skipped int) {
	for _, item := range r.Items {
		switch item.Status() {
		case StatusSucceeded:
			succeeded++
		case StatusFailed:
			failed++
		case StatusPending:
			skipped++
		}
	}
	return succeeded, failed, skipped
}
