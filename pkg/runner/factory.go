// Package runner owns the run lifecycle: it assembles the run context from
// validated specs and resolved goals, drives the scheduling engine, and
// guarantees worker teardown on every exit path.
package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/engine"
	"github.com/anvilbuild/anvil/pkg/graph"
	"github.com/anvilbuild/anvil/pkg/options"
	"github.com/anvilbuild/anvil/pkg/policy"
	"github.com/anvilbuild/anvil/pkg/reporting"
	"github.com/anvilbuild/anvil/pkg/runtracker"
	"github.com/anvilbuild/anvil/pkg/specs"
)

// GraphSession produces a populated build graph for one run. The workspace
// BUILD file walker is the production implementation.
type GraphSession interface {
	CreateBuildGraph(ctx context.Context) (graph.BuildGraph, *graph.AddressMapper, error)
}

// WorkerPool is the lifecycle contract of the external worker-process pool.
// The runner never spawns workers itself; it only guarantees teardown.
type WorkerPool interface {
	KillAll() error
}

// FactoryParams carries the collaborators a Factory assembles runs from.
type FactoryParams struct {
	Registry  *engine.Registry
	Options   *options.Options
	RootDir   string
	Session   GraphSession
	Tracker   *runtracker.RunTracker
	Reporting *reporting.Reporting
	Policies  *policy.Engine
	Pool      WorkerPool
	Logger    zerolog.Logger
}

// Factory validates the request and assembles GoalRunners. Spec validation
// happens at construction so an unsupported invocation fails before any
// graph work begins.
type Factory struct {
	registry  *engine.Registry
	opts      *options.Options
	rootDir   string
	session   GraphSession
	tracker   *runtracker.RunTracker
	reporting *reporting.Reporting
	policies  *policy.Engine
	pool      WorkerPool
	logger    zerolog.Logger

	specs specs.Specs
}

// NewFactory parses and validates the raw spec arguments. Filesystem specs
// are rejected here, before any graph resolution.
func NewFactory(p FactoryParams) (*Factory, error) {
	if p.Registry == nil {
		return nil, engine.NewUsageError("factory requires a goal registry", nil)
	}
	if p.Options == nil {
		return nil, engine.NewUsageError("factory requires options", nil)
	}
	if p.Session == nil {
		return nil, engine.NewUsageError("factory requires a graph session", nil)
	}
	if p.Tracker == nil {
		return nil, engine.NewUsageError("factory requires a run tracker", nil)
	}

	global := p.Options.ForGlobalScope()
	sp := specs.Parse(p.Options.SpecArgs)
	if err := specs.Validate(sp, p.Options.Goals, global.BinName); err != nil {
		return nil, engine.NewUsageError("unsupported specs", err).
			WithCode(engine.ErrCodeUnsupportedSpecs)
	}

	return &Factory{
		registry:  p.Registry,
		opts:      p.Options,
		rootDir:   p.RootDir,
		session:   p.Session,
		tracker:   p.Tracker,
		reporting: p.Reporting,
		policies:  p.Policies,
		pool:      p.Pool,
		logger:    p.Logger,
		specs:     sp,
	}, nil
}

// Create resolves goals and specs into a fully populated run context and
// returns the GoalRunner that will execute it. All setup happens inside
// tracked workunits so aborted setups are still reportable.
func (f *Factory) Create(ctx context.Context) (*GoalRunner, error) {
	setupCtx, setupWU := f.tracker.NewWorkUnit(ctx, "setup", runtracker.LabelSetup)
	defer setupWU.End()

	goals, err := f.resolveGoals()
	if err != nil {
		setupWU.SetOutcome(runtracker.OutcomeFailure)
		return nil, err
	}

	isQuiet := f.shouldBeQuiet(goals)

	buildGraph, mapper, roots, err := f.parse(setupCtx)
	if err != nil {
		setupWU.SetOutcome(runtracker.OutcomeFailure)
		return nil, err
	}

	// Parsing establishes the workspace root, so SCM detection runs only
	// after it succeeds.
	f.tracker.RunInfo().AddSCMInfo(f.rootDir)

	if f.policies != nil {
		if err := f.checkPolicies(setupCtx, buildGraph, roots); err != nil {
			setupWU.SetOutcome(runtracker.OutcomeFailure)
			return nil, err
		}
	}

	global := f.opts.ForGlobalScope()
	var report *reporting.InvalidationReport
	if f.reporting != nil {
		report = f.reporting.UpdateReporting(global, isQuiet, f.tracker)
	}

	rc, err := engine.NewContext(engine.ContextParams{
		Options:            f.opts,
		RunTracker:         f.tracker,
		TargetRoots:        roots,
		RequestedGoals:     f.opts.Goals,
		Graph:              buildGraph,
		AddressMapper:      mapper,
		InvalidationReport: report,
		Log:                f.logger,
	})
	if err != nil {
		setupWU.SetOutcome(runtracker.OutcomeFailure)
		return nil, err
	}

	setupWU.SetOutcome(runtracker.OutcomeSuccess)
	return &GoalRunner{
		context: rc,
		goals:   goals,
		engine:  engine.NewRoundEngine(f.logger),
		tracker: f.tracker,
		pool:    f.pool,
		logger:  f.logger,
	}, nil
}

// resolveGoals looks up the requested goal names in the registry. V2-only
// names are skipped; names registered for both generations still resolve
// here.
func (f *Factory) resolveGoals() ([]*engine.Goal, error) {
	v1, ambiguous, _ := f.opts.GoalsByVersion()
	wanted := make(map[string]struct{}, len(v1)+len(ambiguous))
	for _, n := range v1 {
		wanted[n] = struct{}{}
	}
	for _, n := range ambiguous {
		wanted[n] = struct{}{}
	}

	var goals []*engine.Goal
	for _, name := range f.opts.Goals {
		if _, ok := wanted[name]; !ok {
			continue
		}
		g, err := f.registry.ByName(name)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, nil
}

// shouldBeQuiet computes effective quiet mode. Explain always forces quiet;
// an explicitly set quiet flag wins next; otherwise quiet is on when any
// resolved goal carries a quiet task.
func (f *Factory) shouldBeQuiet(goals []*engine.Goal) bool {
	global := f.opts.ForGlobalScope()
	if global.Explain {
		return true
	}
	if global.GetRank("quiet") > options.RankHardcoded {
		return global.Quiet
	}
	for _, g := range goals {
		if g.HasQuietTask() {
			return true
		}
	}
	return false
}

// parse builds the graph and injects the spec closure inside its own
// workunit.
func (f *Factory) parse(ctx context.Context) (graph.BuildGraph, *graph.AddressMapper, []*graph.Target, error) {
	parseCtx, parseWU := f.tracker.NewWorkUnit(ctx, "parse", runtracker.LabelSetup)
	defer parseWU.End()

	global := f.opts.ForGlobalScope()

	buildGraph, mapper, err := f.session.CreateBuildGraph(parseCtx)
	if err != nil {
		parseWU.SetOutcome(runtracker.OutcomeFailure)
		return nil, nil, nil, engine.NewResolutionError("failed to create build graph", err)
	}

	rootAddrs, err := buildGraph.InjectRootsClosure(parseCtx, f.specs.AddressSpecs, global.FailFast)
	if err != nil {
		parseWU.SetOutcome(runtracker.OutcomeFailure)
		return nil, nil, nil, engine.NewResolutionError("failed to resolve specs", err)
	}

	roots := make([]*graph.Target, 0, len(rootAddrs))
	for _, addr := range rootAddrs {
		t, err := buildGraph.GetTarget(addr)
		if err != nil {
			parseWU.SetOutcome(runtracker.OutcomeFailure)
			return nil, nil, nil, engine.NewResolutionError("failed to read resolved target", err)
		}
		roots = append(roots, t)
	}

	parseWU.SetOutcome(runtracker.OutcomeSuccess)
	return buildGraph, mapper, roots, nil
}

// checkPolicies evaluates the loaded policies against the resolved closure.
func (f *Factory) checkPolicies(ctx context.Context, buildGraph graph.BuildGraph, roots []*graph.Target) error {
	targets := roots
	// Prefer the full closure when the graph exposes it.
	if g, ok := buildGraph.(interface{ Targets() []*graph.Target }); ok {
		targets = g.Targets()
	}

	result, err := f.policies.EvaluateGraph(ctx, targets, f.opts.Goals)
	if err != nil {
		return engine.NewResolutionError("policy evaluation failed", err).
			WithCode(engine.ErrCodePolicy)
	}
	if !result.Allowed {
		msgs := make([]string, len(result.Violations))
		for i, v := range result.Violations {
			msgs[i] = fmt.Sprintf("%s: %s", v.Policy, v.Message)
		}
		return engine.NewResolutionError(
			fmt.Sprintf("policy violations:\n  %s", strings.Join(msgs, "\n  ")), nil).
			WithCode(engine.ErrCodePolicy)
	}
	return nil
}
