package runtracker

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anvilbuild/anvil/pkg/stores"
	"github.com/anvilbuild/anvil/pkg/telemetry"
)

// WorkUnitLabel classifies a workunit for reporting.
type WorkUnitLabel string

const (
	// LabelSetup marks setup-phase work such as build-file parsing.
	LabelSetup WorkUnitLabel = "setup"

	// LabelGoal marks a goal-level workunit.
	LabelGoal WorkUnitLabel = "goal"

	// LabelTask marks a task execution workunit.
	LabelTask WorkUnitLabel = "task"
)

// WorkUnit is one timed unit of tracked work. Create with NewWorkUnit and
// always End it, usually via defer, so the span and timing close on every
// exit path.
type WorkUnit struct {
	tracker *RunTracker
	id      string
	name    string
	labels  []WorkUnitLabel
	started time.Time
	outcome Outcome
	endSpan spanCloser
	ended   bool
}

// NewWorkUnit opens a workunit. The returned context carries the workunit's
// span so nested workunits become child spans.
func (rt *RunTracker) NewWorkUnit(ctx context.Context, name string, labels ...WorkUnitLabel) (context.Context, *WorkUnit) {
	wu := &WorkUnit{
		tracker: rt,
		id:      uuid.New().String(),
		name:    name,
		labels:  labels,
		started: time.Now(),
		outcome: OutcomeSuccess,
	}
	if rt.metrics != nil {
		rt.metrics.WorkUnitOpened()
	}
	if rt.tracer != nil {
		labelNames := make([]string, len(labels))
		for i, l := range labels {
			labelNames[i] = string(l)
		}
		spanCtx, span := rt.tracer.StartWorkUnit(ctx, name, labelNames)
		wu.endSpan = func(failed bool) { telemetry.EndSpan(span, failed, nil) }
		ctx = spanCtx
	}
	rt.logger.Debug().Str("workunit", name).Msg("workunit started")
	return ctx, wu
}

// Name returns the workunit name.
func (wu *WorkUnit) Name() string {
	return wu.name
}

// SetOutcome sets the workunit's outcome. Failure is sticky.
func (wu *WorkUnit) SetOutcome(o Outcome) {
	if wu.outcome == OutcomeFailure {
		return
	}
	wu.outcome = o
}

// End closes the workunit, recording its duration and outcome. Idempotent.
func (wu *WorkUnit) End() {
	if wu.ended {
		return
	}
	wu.ended = true
	duration := time.Since(wu.started)

	rt := wu.tracker
	if rt.metrics != nil {
		rt.metrics.WorkUnitClosed(wu.name, wu.outcome.String(), duration)
	}
	if wu.endSpan != nil {
		wu.endSpan(wu.outcome == OutcomeFailure)
	}

	labelNames := make([]string, len(wu.labels))
	for i, l := range wu.labels {
		labelNames[i] = string(l)
	}
	row := stores.WorkUnitRow{
		ID:         wu.id,
		RunID:      rt.runID,
		Name:       wu.name,
		Labels:     strings.Join(labelNames, ","),
		Outcome:    wu.outcome.String(),
		StartedAt:  wu.started,
		DurationMS: duration.Milliseconds(),
	}
	rt.mu.Lock()
	rt.workunits = append(rt.workunits, row)
	rt.mu.Unlock()

	rt.logger.Debug().
		Str("workunit", wu.name).
		Str("outcome", wu.outcome.String()).
		Dur("duration", duration).
		Msg("workunit finished")
}
