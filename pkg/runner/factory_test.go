package runner

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/engine"
	"github.com/anvilbuild/anvil/pkg/graph"
	"github.com/anvilbuild/anvil/pkg/options"
	"github.com/anvilbuild/anvil/pkg/reporting"
	"github.com/anvilbuild/anvil/pkg/runtracker"
)

// fakeSession serves a fixed set of declarations and counts graph builds so
// tests can assert that validation failures never reach the graph.
type fakeSession struct {
	decls []graph.TargetDeclaration
	calls int
}

func (s *fakeSession) CreateBuildGraph(ctx context.Context) (graph.BuildGraph, *graph.AddressMapper, error) {
	s.calls++
	m, err := graph.NewAddressMapper(s.decls)
	if err != nil {
		return nil, nil, err
	}
	return graph.NewGraph(m, zerolog.Nop()), m, nil
}

func appDecls() []graph.TargetDeclaration {
	return []graph.TargetDeclaration{
		{Address: graph.Address{Path: "src/app", Name: "app"}},
	}
}

func registryWith(t *testing.T, goals ...*engine.Goal) *engine.Registry {
	t.Helper()
	r := engine.NewRegistry()
	for _, g := range goals {
		if err := r.Register(g); err != nil {
			t.Fatalf("Expected no error registering %s, got: %v", g.Name, err)
		}
	}
	return r
}

func newTestFactory(t *testing.T, registry *engine.Registry, opts *options.Options, session *fakeSession) (*Factory, *runtracker.RunTracker) {
	t.Helper()
	tracker := runtracker.New(runtracker.Params{Logger: zerolog.Nop()})
	f, err := NewFactory(FactoryParams{
		Registry:  registry,
		Options:   opts,
		RootDir:   t.TempDir(),
		Session:   session,
		Tracker:   tracker,
		Reporting: reporting.New(zerolog.Nop()),
		Pool:      &recordingPool{tracker: tracker},
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("Expected no error building factory, got: %v", err)
	}
	return f, tracker
}

func TestNewFactory_RejectsFilesystemSpecsBeforeAnyGraphWork(t *testing.T) {
	registry := registryWith(t, &engine.Goal{Name: "compile", Tasks: []*engine.Task{{Name: "compile"}}})
	global := options.GlobalOptions{Workdir: "build/.anvil.d", BinName: "anvil"}
	opts := options.New(global, []string{"compile"}, []string{"src/jvm/Example.java"}, registry.Names(), nil)

	session := &fakeSession{decls: appDecls()}
	tracker := runtracker.New(runtracker.Params{Logger: zerolog.Nop()})
	_, err := NewFactory(FactoryParams{
		Registry: registry,
		Options:  opts,
		Session:  session,
		Tracker:  tracker,
		Logger:   zerolog.Nop(),
	})
	if err == nil {
		t.Fatal("Expected an error for filesystem specs")
	}
	if !engine.IsUsage(err) {
		t.Errorf("Expected a usage error, got: %v", err)
	}
	if session.calls != 0 {
		t.Errorf("Expected no graph call for rejected specs, got %d", session.calls)
	}
}

func TestFactory_Create_UnknownGoal(t *testing.T) {
	registry := registryWith(t, &engine.Goal{Name: "compile", Tasks: []*engine.Task{{Name: "compile"}}})
	global := options.GlobalOptions{Workdir: "build/.anvil.d", BinName: "anvil"}
	opts := options.New(global, []string{"compil"}, []string{"src/app:app"}, registry.Names(), nil)

	f, tracker := newTestFactory(t, registry, opts, &fakeSession{decls: appDecls()})
	ctx := tracker.Start(context.Background(), opts.Goals)

	_, err := f.Create(ctx)
	if err == nil {
		t.Fatal("Expected an error for an unknown goal")
	}
	if !engine.IsUsage(err) {
		t.Errorf("Expected a usage error, got: %v", err)
	}
}

func TestFactory_Create_PopulatesContext(t *testing.T) {
	registry := registryWith(t, &engine.Goal{Name: "compile", Tasks: []*engine.Task{{Name: "compile"}}})
	global := options.GlobalOptions{Workdir: "build/.anvil.d", BinName: "anvil"}
	opts := options.New(global, []string{"compile"}, []string{"src/app:app"}, registry.Names(), nil)

	f, tracker := newTestFactory(t, registry, opts, &fakeSession{decls: appDecls()})
	ctx := tracker.Start(context.Background(), opts.Goals)

	gr, err := f.Create(ctx)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(gr.context.TargetRoots) != 1 || gr.context.TargetRoots[0].Address.String() != "src/app:app" {
		t.Errorf("Expected the resolved root src/app:app, got %v", gr.context.TargetRoots)
	}
	if len(gr.context.RequestedGoals) != 1 || gr.context.RequestedGoals[0] != "compile" {
		t.Errorf("Expected the raw requested goals, got %v", gr.context.RequestedGoals)
	}
	if gr.context.Graph == nil || gr.context.AddressMapper == nil {
		t.Error("Expected graph handles on the context")
	}
}

func TestFactory_Create_ResolutionErrorIsFatal(t *testing.T) {
	registry := registryWith(t, &engine.Goal{Name: "compile", Tasks: []*engine.Task{{Name: "compile"}}})
	global := options.GlobalOptions{Workdir: "build/.anvil.d", BinName: "anvil"}
	opts := options.New(global, []string{"compile"}, []string{"src/missing:x"}, registry.Names(), nil)

	f, tracker := newTestFactory(t, registry, opts, &fakeSession{decls: appDecls()})
	ctx := tracker.Start(context.Background(), opts.Goals)

	_, err := f.Create(ctx)
	if err == nil {
		t.Fatal("Expected a resolution error for an unresolvable spec")
	}
	if !engine.IsResolution(err) {
		t.Errorf("Expected a resolution error, got: %v", err)
	}
}

func TestFactory_ShouldBeQuiet_Cascade(t *testing.T) {
	loud := &engine.Goal{Name: "compile", Tasks: []*engine.Task{{Name: "compile"}}}
	quietGoal := &engine.Goal{Name: "list", Tasks: []*engine.Task{{Name: "list", Quiet: true}}}

	newF := func(mutate func(*options.GlobalOptions)) *Factory {
		registry := registryWith(t, &engine.Goal{Name: "compile", Tasks: []*engine.Task{{Name: "compile"}}})
		global := options.GlobalOptions{Workdir: "build/.anvil.d", BinName: "anvil"}
		if mutate != nil {
			mutate(&global)
		}
		opts := options.New(global, []string{"compile"}, []string{"src/app:app"}, registry.Names(), nil)
		f, _ := newTestFactory(t, registry, opts, &fakeSession{decls: appDecls()})
		return f
	}

	// No override: quiet follows the quiet-capable task tag.
	if newF(nil).shouldBeQuiet([]*engine.Goal{loud}) {
		t.Error("Expected quiet false without quiet-capable tasks")
	}
	if !newF(nil).shouldBeQuiet([]*engine.Goal{loud, quietGoal}) {
		t.Error("Expected quiet true with a quiet-capable task")
	}

	// An explicit user-set quiet flag overrides the tag-based default.
	explicitOff := newF(func(g *options.GlobalOptions) {
		g.Quiet = false
		g.SetRank("quiet", options.RankFlag)
	})
	if explicitOff.shouldBeQuiet([]*engine.Goal{quietGoal}) {
		t.Error("Expected an explicit quiet=false to override the task tag")
	}

	// Explain forces quiet regardless of everything else.
	explain := newF(func(g *options.GlobalOptions) {
		g.Explain = true
		g.Quiet = false
		g.SetRank("quiet", options.RankFlag)
	})
	if !explain.shouldBeQuiet([]*engine.Goal{loud}) {
		t.Error("Expected explain to force quiet")
	}
}
