package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/runtracker"
	"github.com/anvilbuild/anvil/pkg/telemetry"
)

// ScheduledTask is one node of the computed schedule: a task together with
// the goal that owns it.
type ScheduledTask struct {
	Goal *Goal
	Task *Task
}

// ID returns the node's "goal.task" identifier used in diagnostics.
func (s ScheduledTask) ID() string {
	return s.Goal.Name + "." + s.Task.Name
}

// Round is a set of tasks with no ordering constraints among them. Tasks
// within a round are still executed sequentially, in request order then
// declaration order.
type Round []ScheduledTask

// Schedule is the ordered round list satisfying every product dependency:
// for each declared dependency the producing task's round strictly precedes
// the consuming task's round.
type Schedule struct {
	Rounds []Round
}

// Flatten returns the tasks in execution order.
func (s *Schedule) Flatten() []ScheduledTask {
	var out []ScheduledTask
	for _, r := range s.Rounds {
		out = append(out, r...)
	}
	return out
}

// GoalInfos converts the schedule into the tracker's reporting shape,
// grouping consecutive tasks of the same goal.
func (s *Schedule) GoalInfos() []runtracker.GoalInfo {
	var infos []runtracker.GoalInfo
	for _, st := range s.Flatten() {
		if n := len(infos); n > 0 && infos[n-1].Goal == st.Goal.Name {
			infos[n-1].Tasks = append(infos[n-1].Tasks, st.Task.Name)
			continue
		}
		infos = append(infos, runtracker.GoalInfo{Goal: st.Goal.Name, Tasks: []string{st.Task.Name}})
	}
	return infos
}

// RoundEngine orders requested goals' tasks by product dependency and drives
// their sequential execution against the run context.
type RoundEngine struct {
	logger zerolog.Logger
}

// NewRoundEngine creates a round engine.
func NewRoundEngine(logger zerolog.Logger) *RoundEngine {
	return &RoundEngine{
		logger: logger.With().Str("component", "round-engine").Logger(),
	}
}

// node is the internal scheduling view of one task instance.
type node struct {
	st         ScheduledTask
	dependents []int // consumer node indexes, deduplicated
	inDegree   int
}

// SortGoals computes the execution rounds for the requested goals. A product
// required by some task but produced by none, or a cyclic product
// dependency, is a fatal scheduling error raised before any task executes.
func (e *RoundEngine) SortGoals(goals []*Goal) (*Schedule, error) {
	nodes, err := buildNodes(goals)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{}
	done := make([]bool, len(nodes))
	remaining := len(nodes)

	for remaining > 0 {
		var round Round
		var picked []int
		// Canonical scan preserves request order, then declaration order,
		// for tasks with no constraint between them.
		for i := range nodes {
			if !done[i] && nodes[i].inDegree == 0 {
				picked = append(picked, i)
				round = append(round, nodes[i].st)
			}
		}
		if len(picked) == 0 {
			cycle := findCycle(nodes, done)
			return nil, NewSchedulingError(
				fmt.Sprintf("cyclic product dependency among tasks: %s", strings.Join(cycle, " -> ")),
				nil,
			).WithCode(ErrCodeTaskCycle)
		}
		for _, i := range picked {
			done[i] = true
			remaining--
			for _, dep := range nodes[i].dependents {
				nodes[dep].inDegree--
			}
		}
		sched.Rounds = append(sched.Rounds, round)
	}

	e.logger.Debug().
		Int("rounds", len(sched.Rounds)).
		Int("tasks", len(nodes)).
		Msg("computed goal schedule")
	return sched, nil
}

// buildNodes flattens the requested goals into scheduling nodes and wires
// product-dependency edges between them.
func buildNodes(goals []*Goal) ([]*node, error) {
	var nodes []*node
	seenGoals := make(map[string]struct{}, len(goals))
	producers := make(map[Product][]int)

	for _, g := range goals {
		if _, dup := seenGoals[g.Name]; dup {
			continue
		}
		seenGoals[g.Name] = struct{}{}
		for _, t := range g.Tasks {
			idx := len(nodes)
			nodes = append(nodes, &node{st: ScheduledTask{Goal: g, Task: t}})
			for _, p := range t.Produces {
				producers[p] = append(producers[p], idx)
			}
		}
	}

	for i, n := range nodes {
		edges := make(map[int]struct{})
		for _, p := range n.st.Task.Requires {
			prods := producers[p]
			found := false
			for _, j := range prods {
				if j == i {
					continue
				}
				found = true
				if _, dup := edges[j]; !dup {
					edges[j] = struct{}{}
					nodes[j].dependents = append(nodes[j].dependents, i)
					n.inDegree++
				}
			}
			if !found {
				return nil, NewSchedulingError(
					fmt.Sprintf("no scheduled task produces %q required by %s", p, n.st.ID()),
					nil,
				).WithCode(ErrCodeMissingProduct).WithGoal(n.st.Goal.Name).WithTask(n.st.Task.Name)
			}
		}
	}
	return nodes, nil
}

// findCycle walks the unfinished subgraph and returns one dependency cycle as
// task IDs. Called only when Kahn's algorithm stalls, so a cycle must exist.
func findCycle(nodes []*node, done []bool) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(nodes))
	var path []int

	var visit func(i int) []string
	visit = func(i int) []string {
		color[i] = gray
		path = append(path, i)
		for _, dep := range nodes[i].dependents {
			if done[dep] {
				continue
			}
			switch color[dep] {
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			case gray:
				start := 0
				for k, idx := range path {
					if idx == dep {
						start = k
						break
					}
				}
				var ids []string
				for _, idx := range path[start:] {
					ids = append(ids, nodes[idx].st.ID())
				}
				return append(ids, nodes[dep].st.ID())
			}
		}
		path = path[:len(path)-1]
		color[i] = black
		return nil
	}

	for i := range nodes {
		if !done[i] && color[i] == white {
			path = path[:0]
			if cycle := visit(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Execute sorts the goals, publishes the computed order to the run tracker,
// and runs each task sequentially inside its own workunit. The returned bool
// is true if any task failed. Dependents of a failed or skipped task are
// skipped; independent tasks still run unless fail-fast is set. Interrupts
// abort the remaining schedule and surface as an interrupted error.
func (e *RoundEngine) Execute(ctx context.Context, rc *Context, goals []*Goal) (bool, error) {
	sched, err := e.SortGoals(goals)
	if err != nil {
		return false, err
	}
	// Publish the order before running anything so it is reportable even if
	// the run aborts mid-way.
	rc.RunTracker.SetSortedGoalInfos(sched.GoalInfos())

	failFast := rc.Options.ForGlobalScope().FailFast
	status := make(map[string]TaskStatus)
	for _, st := range sched.Flatten() {
		status[st.ID()] = TaskPending
	}
	// Terminal status of each product: a product is tainted when any of its
	// producers failed or was skipped.
	tainted := make(map[Product]bool)

	failed := false
	for _, round := range sched.Rounds {
		for _, st := range round {
			if err := ctx.Err(); err != nil {
				return failed, NewInterruptedError(err)
			}

			if p, bad := taintedRequirement(st.Task, tainted); bad {
				status[st.ID()] = TaskSkipped
				for _, prod := range st.Task.Produces {
					tainted[prod] = true
				}
				e.logger.Warn().
					Str("goal", st.Goal.Name).
					Str("task", st.Task.Name).
					Str("product", string(p)).
					Msg("skipping task: a required product's producer did not succeed")
				continue
			}

			taskErr := e.runTask(ctx, rc, st)
			if taskErr != nil {
				failed = true
				status[st.ID()] = TaskFailed
				for _, prod := range st.Task.Produces {
					tainted[prod] = true
				}
				e.logger.Error().Err(taskErr).
					Str("goal", st.Goal.Name).
					Str("task", st.Task.Name).
					Msg("task failed")
				if failFast {
					return true, nil
				}
				continue
			}
			status[st.ID()] = TaskSucceeded
		}
	}
	counts := make(map[TaskStatus]int)
	for _, s := range status {
		counts[s]++
	}
	e.logger.Info().
		Int("succeeded", counts[TaskSucceeded]).
		Int("failed", counts[TaskFailed]).
		Int("skipped", counts[TaskSkipped]).
		Msg("goal execution finished")

	// A cancellation that arrived during the final task must still surface
	// as an interrupt, not a plain failure.
	if err := ctx.Err(); err != nil {
		return failed, NewInterruptedError(err)
	}
	return failed, nil
}

// runTask executes one task inside its own tracked workunit.
func (e *RoundEngine) runTask(ctx context.Context, rc *Context, st ScheduledTask) error {
	wuCtx, wu := rc.RunTracker.NewWorkUnit(ctx, st.ID(), runtracker.LabelTask)
	defer wu.End()

	taskLog := telemetry.GoalLogger(rc.Log, st.Goal.Name, st.Task.Name)
	taskLog.Debug().Msg("running task")
	err := st.Task.run(wuCtx, rc)
	if err != nil {
		wu.SetOutcome(runtracker.OutcomeFailure)
		return err
	}
	wu.SetOutcome(runtracker.OutcomeSuccess)
	return nil
}

func taintedRequirement(t *Task, tainted map[Product]bool) (Product, bool) {
	for _, p := range t.Requires {
		if tainted[p] {
			return p, true
		}
	}
	return "", false
}
