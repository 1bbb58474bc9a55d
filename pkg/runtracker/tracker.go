// Package runtracker records the state of one run: a hierarchy of timed
// workunits, the run's monotonic terminal outcome, the computed goal
// schedule, and source-control metadata. One tracker is created per run and
// injected into every component; there is no ambient global instance.
package runtracker

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/stores"
	"github.com/anvilbuild/anvil/pkg/telemetry"
)

// Outcome is a run or workunit outcome. The root outcome is monotonic: once
// failed it never becomes successful again.
type Outcome int

const (
	// OutcomeSuccess is the initial and successful outcome.
	OutcomeSuccess Outcome = iota

	// OutcomeFailure marks the run or workunit as failed.
	OutcomeFailure

	// OutcomeAborted marks a workunit that never ran to completion.
	OutcomeAborted
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// GoalInfo is one entry of the published schedule: a goal and its tasks in
// execution order.
type GoalInfo struct {
	Goal  string   `json:"goal"`
	Tasks []string `json:"tasks"`
}

// Store is the persistence sink the tracker writes to at run end.
type Store interface {
	SaveRun(ctx context.Context, run stores.RunRow) error
	SaveWorkUnits(ctx context.Context, rows []stores.WorkUnitRow) error
}

// Params carries the collaborators for New.
type Params struct {
	Logger  zerolog.Logger
	Metrics *telemetry.Metrics
	Tracer  *telemetry.Tracer

	// Store is optional; nil disables run persistence.
	Store Store
}

// RunTracker tracks one run.
type RunTracker struct {
	runID   string
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	store   Store

	mu         sync.Mutex
	started    time.Time
	startedSet bool
	ended      bool
	outcome    Outcome
	goals      []string
	goalInfos  []GoalInfo
	runInfo    *RunInfo
	rootSpan   spanCloser
	workunits  []stores.WorkUnitRow
}

type spanCloser func(failed bool)

// New creates a tracker for a single run.
func New(p Params) *RunTracker {
	runID := uuid.New().String()
	return &RunTracker{
		runID:   runID,
		logger:  telemetry.RunLogger(p.Logger, runID),
		metrics: p.Metrics,
		tracer:  p.Tracer,
		store:   p.Store,
		outcome: OutcomeSuccess,
		runInfo: newRunInfo(),
	}
}

// RunID returns the run's unique identifier.
func (rt *RunTracker) RunID() string {
	return rt.runID
}

// Logger returns the run-scoped logger.
func (rt *RunTracker) Logger() zerolog.Logger {
	return rt.logger
}

// Start begins tracking: opens the root span and records run-started
// metrics. The returned context carries the root span for child workunits.
func (rt *RunTracker) Start(ctx context.Context, goals []string) context.Context {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.startedSet {
		return ctx
	}
	rt.startedSet = true
	rt.started = time.Now()
	rt.goals = append([]string(nil), goals...)

	if rt.metrics != nil {
		rt.metrics.RunStarted()
	}
	if rt.tracer != nil {
		spanCtx, span := rt.tracer.StartRun(ctx, rt.runID, goals)
		rt.rootSpan = func(failed bool) { telemetry.EndSpan(span, failed, nil) }
		ctx = spanCtx
	}
	rt.logger.Info().Strs("goals", goals).Msg("run started")
	return ctx
}

// SetRootOutcome updates the run's terminal outcome. Failure is sticky.
func (rt *RunTracker) SetRootOutcome(o Outcome) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.outcome == OutcomeFailure {
		return
	}
	rt.outcome = o
}

// RootOutcome returns the run's current outcome.
func (rt *RunTracker) RootOutcome() Outcome {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.outcome
}

// SetSortedGoalInfos publishes the computed schedule so it can be reported
// even if the run later aborts.
func (rt *RunTracker) SetSortedGoalInfos(infos []GoalInfo) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.goalInfos = infos
}

// SortedGoalInfos returns the published schedule, or nil before sorting.
func (rt *RunTracker) SortedGoalInfos() []GoalInfo {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.goalInfos
}

// RunInfo returns the run's metadata record.
func (rt *RunTracker) RunInfo() *RunInfo {
	return rt.runInfo
}

// End records the terminal outcome, closes the root span and persists the
// run and its workunits. It is idempotent; only the first call has effect.
// Worker-pool teardown must wait for End: background reporting coordinated
// through the tracker may still need the workers until the outcome is
// recorded.
func (rt *RunTracker) End(ctx context.Context) error {
	rt.mu.Lock()
	if rt.ended || !rt.startedSet {
		rt.mu.Unlock()
		return nil
	}
	rt.ended = true
	outcome := rt.outcome
	duration := time.Since(rt.started)
	rootSpan := rt.rootSpan
	workunits := rt.workunits
	rt.mu.Unlock()

	if rt.metrics != nil {
		rt.metrics.RunCompleted(outcome.String(), duration)
	}
	if rootSpan != nil {
		rootSpan(outcome == OutcomeFailure)
	}
	rt.logger.Info().
		Str("outcome", outcome.String()).
		Dur("duration", duration).
		Msg("run finished")

	if rt.store == nil {
		return nil
	}
	completed := time.Now()
	run := stores.RunRow{
		ID:          rt.runID,
		Goals:       strings.Join(rt.goals, " "),
		Outcome:     outcome.String(),
		StartedAt:   rt.started,
		CompletedAt: &completed,
		Branch:      rt.runInfo.Get("branch"),
		Commit:      rt.runInfo.Get("commit"),
		CreatedAt:   rt.started,
	}
	if err := rt.store.SaveRun(ctx, run); err != nil {
		return err
	}
	return rt.store.SaveWorkUnits(ctx, workunits)
}
