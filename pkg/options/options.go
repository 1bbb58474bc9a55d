// Package options holds the pre-parsed option state for a run: global flags
// with value ranking, the raw requested goals and specs, and the split of
// goal names by engine version affiliation.
package options

// Rank records where an option value came from. Higher ranks override lower
// ones; a value is "explicitly set by the user" when its rank is above
// RankHardcoded.
type Rank int

const (
	// RankNone means the option was never set at all.
	RankNone Rank = iota

	// RankHardcoded is the built-in default.
	RankHardcoded

	// RankConfig means the value came from the workspace config file.
	RankConfig

	// RankEnvironment means the value came from an environment variable.
	RankEnvironment

	// RankFlag means the value came from a command-line flag.
	RankFlag
)

// String implements fmt.Stringer.
func (r Rank) String() string {
	switch r {
	case RankHardcoded:
		return "hardcoded"
	case RankConfig:
		return "config"
	case RankEnvironment:
		return "environment"
	case RankFlag:
		return "flag"
	default:
		return "none"
	}
}

// GlobalOptions is the global option scope consumed by the run lifecycle.
type GlobalOptions struct {
	// FailFast aborts on the first resolution error and on the first failed
	// task instead of continuing with independent work.
	FailFast bool

	// Explain prints the computed schedule without executing it and forces
	// quiet mode.
	Explain bool

	// KillWorkers tears down the worker process pool after every run, not
	// just after interrupts.
	KillWorkers bool

	// Quiet suppresses informational reporting. Its effective value depends
	// on rank; see Factory.shouldBeQuiet.
	Quiet bool

	// Loop re-runs the requested goals whenever a build file changes.
	Loop bool

	// Workdir is the tool's scratch directory. Must end in ".anvil.d".
	Workdir string

	// BinName is the binary name used to render suggested commands.
	BinName string

	// PolicyPaths are optional rego policy files checked against the
	// resolved target graph before scheduling.
	PolicyPaths []string

	// StorePath is the sqlite run-history database path. Empty disables
	// run persistence.
	StorePath string

	// InvalidationReportPath, when set, enables the invalidation report and
	// names the YAML file it is flushed to.
	InvalidationReportPath string

	ranks map[string]Rank
}

// GetRank reports where the named option's value came from.
func (g GlobalOptions) GetRank(name string) Rank {
	if r, ok := g.ranks[name]; ok {
		return r
	}
	return RankHardcoded
}

// SetRank records the provenance of the named option's value.
func (g *GlobalOptions) SetRank(name string, r Rank) {
	if g.ranks == nil {
		g.ranks = make(map[string]Rank)
	}
	g.ranks[name] = r
}

// Options is the full pre-parsed option state for one run.
type Options struct {
	// Goals is the raw requested-goal list, in request order.
	Goals []string

	// SpecArgs are the raw spec arguments, in request order.
	SpecArgs []string

	global GlobalOptions

	// v1Names and v2Names record which registered goal names belong to
	// which engine generation; names in both are ambiguous.
	v1Names map[string]struct{}
	v2Names map[string]struct{}
}

// New assembles an Options value from the parsed global scope and the goal
// version sets.
func New(global GlobalOptions, goals, specArgs []string, v1Goals, v2Goals []string) *Options {
	o := &Options{
		Goals:    goals,
		SpecArgs: specArgs,
		global:   global,
		v1Names:  make(map[string]struct{}, len(v1Goals)),
		v2Names:  make(map[string]struct{}, len(v2Goals)),
	}
	for _, n := range v1Goals {
		o.v1Names[n] = struct{}{}
	}
	for _, n := range v2Goals {
		o.v2Names[n] = struct{}{}
	}
	return o
}

// ForGlobalScope returns the global option scope.
func (o *Options) ForGlobalScope() GlobalOptions {
	return o.global
}

// GoalsByVersion splits the requested goals into v1 names, ambiguous names
// (registered for both engine generations) and v2 names, preserving request
// order within each slice.
func (o *Options) GoalsByVersion() (v1, ambiguous, v2 []string) {
	for _, g := range o.Goals {
		_, isV1 := o.v1Names[g]
		_, isV2 := o.v2Names[g]
		switch {
		case isV1 && isV2:
			ambiguous = append(ambiguous, g)
		case isV2:
			v2 = append(v2, g)
		default:
			// Unregistered names stay in the v1 bucket so resolution can
			// fail with a proper unknown-goal diagnostic.
			v1 = append(v1, g)
		}
	}
	return v1, ambiguous, v2
}
