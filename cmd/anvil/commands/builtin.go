package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/anvilbuild/anvil/pkg/engine"
	"github.com/anvilbuild/anvil/pkg/graph"
)

// Products exchanged between the built-in goals.
const (
	productDeps      engine.Product = "deps"
	productArtifacts engine.Product = "artifacts"
)

// newRegistry builds the registry of built-in goals. Third-party goals
// would be registered here as well.
func newRegistry() (*engine.Registry, error) {
	registry := engine.NewRegistry()

	goals := []*engine.Goal{
		{
			Name:        "list",
			Description: "List the targets matched by the given specs",
			Tasks: []*engine.Task{
				{Name: "list", Quiet: true, Run: runList},
			},
		},
		{
			Name:        "dependencies",
			Description: "Print the transitive dependencies of the matched targets",
			Tasks: []*engine.Task{
				{Name: "dependencies", Quiet: true, Run: runDependencies},
			},
		},
		{
			Name:        "resolve",
			Description: "Resolve external dependencies for the matched targets",
			Tasks: []*engine.Task{
				{Name: "resolve", Produces: []engine.Product{productDeps}, Run: runResolve},
			},
		},
		{
			Name:        "compile",
			Description: "Compile the matched targets and their dependencies",
			Tasks: []*engine.Task{
				{Name: "compile", Requires: []engine.Product{productDeps}, Produces: []engine.Product{productArtifacts}, Run: runCompile},
			},
		},
		{
			Name:        "test",
			Description: "Run tests for the matched targets",
			Tasks: []*engine.Task{
				{Name: "test", Requires: []engine.Product{productArtifacts}, Run: runTest},
			},
		},
	}

	for _, g := range goals {
		if err := registry.Register(g); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func runList(ctx context.Context, rc *engine.Context) error {
	for _, t := range rc.TargetRoots {
		fmt.Println(t.Address)
	}
	return nil
}

func runDependencies(ctx context.Context, rc *engine.Context) error {
	seen := make(map[string]bool)
	var collect func(t *graph.Target) error
	collect = func(t *graph.Target) error {
		for _, dep := range t.Dependencies {
			key := dep.String()
			if seen[key] {
				continue
			}
			seen[key] = true
			depTarget, err := rc.Graph.GetTarget(dep)
			if err != nil {
				return err
			}
			if err := collect(depTarget); err != nil {
				return err
			}
		}
		return nil
	}

	for _, t := range rc.TargetRoots {
		if err := collect(t); err != nil {
			return err
		}
	}

	deps := make([]string, 0, len(seen))
	for key := range seen {
		deps = append(deps, key)
	}
	sort.Strings(deps)
	for _, d := range deps {
		fmt.Println(d)
	}
	return nil
}

func runResolve(ctx context.Context, rc *engine.Context) error {
	for _, t := range rc.TargetRoots {
		if err := ctx.Err(); err != nil {
			return err
		}
		rc.Log.Info().Str("target", t.Address.String()).Msg("Resolving dependencies")
	}
	return nil
}

func runCompile(ctx context.Context, rc *engine.Context) error {
	for _, t := range rc.TargetRoots {
		if err := ctx.Err(); err != nil {
			return err
		}
		rc.Log.Info().
			Str("target", t.Address.String()).
			Int("sources", len(t.Sources)).
			Msg("Compiling")
		if rc.InvalidationReport != nil {
			rc.InvalidationReport.Add(t.Address.String(), true, "sources changed")
		}
	}
	return nil
}

func runTest(ctx context.Context, rc *engine.Context) error {
	for _, t := range rc.TargetRoots {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !t.HasTag("no-test") {
			rc.Log.Info().Str("target", t.Address.String()).Msg("Running tests")
		}
	}
	return nil
}
