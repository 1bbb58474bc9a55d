package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/engine"
	"github.com/anvilbuild/anvil/pkg/runtracker"
)

// WorkdirSuffix is the required name suffix of the scratch directory. A
// run against any other directory is refused outright.
const WorkdirSuffix = ".anvil.d"

// GoalRunner executes one assembled run. It owns the failure, interrupt and
// teardown protocol: the run outcome is always recorded before the worker
// pool is torn down, the invalidation report is flushed exactly once after
// execution, and interrupts are re-propagated, never swallowed.
type GoalRunner struct {
	context *engine.Context
	goals   []*engine.Goal
	engine  *engine.RoundEngine
	tracker *runtracker.RunTracker
	pool    WorkerPool
	logger  zerolog.Logger
}

// Run drives the run to completion and returns the process exit code: 0 on
// success, 1 otherwise. The returned error carries the classified failure
// for callers that want more than the exit code; an interrupt surfaces as
// an interrupted error after teardown has finished.
func (r *GoalRunner) Run(ctx context.Context) (int, error) {
	global := r.context.Options.ForGlobalScope()

	if !strings.HasSuffix(global.Workdir, WorkdirSuffix) {
		r.logger.Error().
			Str("workdir", global.Workdir).
			Msg("invalid work directory: name must end in " + WorkdirSuffix)
		return 1, nil
	}

	if global.Explain {
		return r.explain()
	}

	release, err := r.context.Executing()
	if err != nil {
		return 1, err
	}
	defer release()

	killPool := global.KillWorkers

	failed, execErr := r.executeWithRecovery(ctx)

	if failed || execErr != nil {
		r.tracker.SetRootOutcome(runtracker.OutcomeFailure)
	} else {
		r.tracker.SetRootOutcome(runtracker.OutcomeSuccess)
	}

	if execErr != nil {
		// Interrupts and hard failures both force pool teardown, whatever
		// the configured kill policy says.
		killPool = true
		if engine.IsInterrupted(execErr) {
			r.logger.Warn().Msg("run interrupted")
		}
	}

	// Terminal outcome must be recorded before workers die: finishing work
	// coordinated through the tracker may still need the pool.
	if endErr := r.tracker.End(ctx); endErr != nil {
		r.logger.Error().Err(endErr).Msg("failed to finalize run tracking")
	}
	if killPool && r.pool != nil {
		if killErr := r.pool.KillAll(); killErr != nil {
			r.logger.Error().Err(killErr).Msg("failed to tear down worker pool")
		}
	}

	if execErr != nil {
		return 1, execErr
	}
	if r.tracker.RootOutcome() != runtracker.OutcomeSuccess {
		return 1, nil
	}
	return 0, nil
}

// executeWithRecovery invokes the scheduling engine and converts a task
// panic into a classified execution error so teardown still runs in order.
func (r *GoalRunner) executeWithRecovery(ctx context.Context) (failed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			failed = true
			err = engine.NewExecutionError(fmt.Sprintf("panic during execution: %v", rec), nil).
				WithCode(engine.ErrCodeInternal)
		}
		// The report is flushed right after execution on every exit path,
		// including panics. Flush is a no-op after the first call.
		if r.context.InvalidationReport != nil {
			if flushErr := r.context.InvalidationReport.Flush(); flushErr != nil {
				r.logger.Error().Err(flushErr).Msg("failed to flush invalidation report")
			}
		}
	}()

	return r.engine.Execute(ctx, r.context, r.goals)
}

// explain prints the computed schedule without executing anything.
func (r *GoalRunner) explain() (int, error) {
	sched, err := r.engine.SortGoals(r.goals)
	if err != nil {
		return 1, err
	}
	r.tracker.SetSortedGoalInfos(sched.GoalInfos())

	for i, round := range sched.Rounds {
		ids := make([]string, len(round))
		for j, st := range round {
			ids[j] = st.ID()
		}
		fmt.Printf("round %d: %s\n", i+1, strings.Join(ids, ", "))
	}
	return 0, nil
}
