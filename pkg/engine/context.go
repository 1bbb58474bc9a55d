package engine

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/graph"
	"github.com/anvilbuild/anvil/pkg/options"
	"github.com/anvilbuild/anvil/pkg/reporting"
	"github.com/anvilbuild/anvil/pkg/runtracker"
)

// Context is the shared mutable state bag for a run. It is constructed
// exactly once, after specs have been resolved into targets, and is the
// single object handed to every task. Tasks execute sequentially by
// contract, so the context imposes no internal locking beyond the
// executing-scope marker.
type Context struct {
	// Options is the active option set for the run.
	Options *options.Options

	// RunTracker records workunits and the run's terminal outcome.
	RunTracker *runtracker.RunTracker

	// TargetRoots are the targets the requested specs resolved to.
	TargetRoots []*graph.Target

	// RequestedGoals is the raw requested-goal list as typed by the user,
	// not filtered by goal version affiliation.
	RequestedGoals []string

	// Graph is the populated build graph handle.
	Graph graph.BuildGraph

	// AddressMapper resolves address patterns against declared targets.
	AddressMapper *graph.AddressMapper

	// InvalidationReport, when non-nil, records stale/fresh decisions and
	// is flushed exactly once after all goals have executed.
	InvalidationReport *reporting.InvalidationReport

	// Log is the run-scoped logger.
	Log zerolog.Logger

	mu        sync.Mutex
	executing bool
}

// ContextParams carries the fully-resolved inputs for NewContext.
type ContextParams struct {
	Options            *options.Options
	RunTracker         *runtracker.RunTracker
	TargetRoots        []*graph.Target
	RequestedGoals     []string
	Graph              graph.BuildGraph
	AddressMapper      *graph.AddressMapper
	InvalidationReport *reporting.InvalidationReport
	Log                zerolog.Logger
}

// NewContext constructs the run context. Downstream components must not need
// to re-resolve specs or re-detect quiet mode: everything is populated here.
func NewContext(p ContextParams) (*Context, error) {
	if p.Options == nil {
		return nil, NewUsageError("context requires options", nil)
	}
	if p.RunTracker == nil {
		return nil, NewUsageError("context requires a run tracker", nil)
	}
	if p.Graph == nil {
		return nil, NewUsageError("context requires a build graph", nil)
	}
	return &Context{
		Options:            p.Options,
		RunTracker:         p.RunTracker,
		TargetRoots:        p.TargetRoots,
		RequestedGoals:     p.RequestedGoals,
		Graph:              p.Graph,
		AddressMapper:      p.AddressMapper,
		InvalidationReport: p.InvalidationReport,
		Log:                p.Log,
	}, nil
}

// Executing enters the scoped "currently executing" marker. The returned
// release function must be deferred so the marker clears on every exit path.
// Entering the scope while it is already held is a programming error.
func (c *Context) Executing() (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executing {
		return nil, NewExecutionError("run context is already executing", nil)
	}
	c.executing = true
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.executing = false
			c.mu.Unlock()
		})
	}, nil
}

// IsExecuting reports whether the executing scope is currently held.
func (c *Context) IsExecuting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executing
}
