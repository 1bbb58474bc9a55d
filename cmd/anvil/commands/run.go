package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/anvilbuild/anvil/pkg/buildfiles"
	"github.com/anvilbuild/anvil/pkg/engine"
	"github.com/anvilbuild/anvil/pkg/options"
	"github.com/anvilbuild/anvil/pkg/policy"
	"github.com/anvilbuild/anvil/pkg/reporting"
	"github.com/anvilbuild/anvil/pkg/runner"
	"github.com/anvilbuild/anvil/pkg/runtracker"
	"github.com/anvilbuild/anvil/pkg/stores"
	"github.com/anvilbuild/anvil/pkg/telemetry"
	"github.com/anvilbuild/anvil/pkg/workers"
)

func newRunCommand() *cobra.Command {
	var (
		workdir     string
		storePath   string
		reportPath  string
		policyPaths []string
		quiet       bool
		failFast    bool
		explain     bool
		killWorkers bool
		loop        bool
	)

	cmd := &cobra.Command{
		Use:   "run <goals and specs...>",
		Short: "Run build goals against target specs",
		Long: `Execute the requested goals against the targets matched by the specs.

Goals are plain names (compile, test); specs address targets declared in
BUILD files: "src/core:lib" names one target, "src/core:" every target in
that directory, and "src::" every target under src recursively.`,
		Example: `  # Compile one target
  anvil run compile src/core:lib

  # Test everything under src, stopping at the first failure
  anvil run test src:: --fail-fast

  # Show the computed schedule without running anything
  anvil run compile test src:: --explain

  # Re-run on BUILD file changes
  anvil run compile src:: --loop`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := telemetry.NewLogger(telemetry.LoggingConfig{
				Level:  logLevel,
				Format: logFormat,
				Output: "stderr",
			})
			if err != nil {
				return err
			}

			rootDir, err := os.Getwd()
			if err != nil {
				return err
			}

			registry, err := newRegistry()
			if err != nil {
				return err
			}

			goals, specArgs := splitArgs(args)

			global := options.GlobalOptions{
				Quiet:                  quiet,
				FailFast:               failFast,
				Explain:                explain,
				KillWorkers:            killWorkers,
				Loop:                   loop,
				Workdir:                workdir,
				BinName:                "anvil",
				PolicyPaths:            policyPaths,
				StorePath:              storePath,
				InvalidationReportPath: reportPath,
			}
			if global.Workdir == "" {
				global.Workdir = filepath.Join(rootDir, ".anvil.d")
			}
			for _, name := range []string{"quiet", "fail_fast", "explain", "kill_workers", "workdir"} {
				flagName := strings.ReplaceAll(name, "_", "-")
				if cmd.Flags().Changed(flagName) {
					global.SetRank(name, options.RankFlag)
				}
			}
			if v, ok := os.LookupEnv("ANVIL_QUIET"); ok && global.GetRank("quiet") < options.RankEnvironment {
				global.Quiet = v == "1" || v == "true"
				global.SetRank("quiet", options.RankEnvironment)
			}

			cfg, err := options.LoadWorkspaceConfig(filepath.Join(rootDir, configPath))
			if err != nil {
				return err
			}
			cfg.ApplyTo(&global)

			opts := options.New(global, goals, specArgs, registry.Names(), cfg.V2Goals)

			return executeRun(cmd.Context(), logger, registry, opts, rootDir, cfg)
		},
	}

	cmd.Flags().StringVar(&workdir, "workdir", "", "scratch directory (must end in "+runner.WorkdirSuffix+")")
	cmd.Flags().StringVar(&storePath, "store", "", "sqlite run-history database path")
	cmd.Flags().StringVar(&reportPath, "invalidation-report", "", "write the invalidation report to this YAML file")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "rego policy files or directories")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress informational reporting")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort on the first resolution error or task failure")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the computed schedule without executing")
	cmd.Flags().BoolVar(&killWorkers, "kill-workers", false, "tear down the worker pool after every run")
	cmd.Flags().BoolVar(&loop, "loop", false, "re-run the goals whenever a BUILD file changes")

	return cmd
}

// executeRun wires up the run collaborators and drives one run, or a loop
// of runs when --loop is set.
func executeRun(ctx context.Context, logger zerolog.Logger, registry *engine.Registry, opts *options.Options, rootDir string, cfg *options.WorkspaceConfig) error {
	global := opts.ForGlobalScope()

	tcfg := telemetry.DefaultConfig()
	metrics, err := telemetry.NewMetrics(tcfg.Metrics)
	if err != nil {
		return err
	}
	tracer, err := telemetry.NewTracer(tcfg.Tracing, tcfg.ServiceName, tcfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Tracer shutdown failed")
		}
	}()

	var store *stores.SQLiteStore
	if global.StorePath != "" {
		store, err = stores.NewSQLiteStore(global.StorePath)
		if err != nil {
			return err
		}
		if err := store.Init(ctx); err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	var policies *policy.Engine
	if len(global.PolicyPaths) > 0 {
		policies, err = policy.NewEngine(logger)
		if err != nil {
			return err
		}
		if err := policies.LoadPolicies(ctx, global.PolicyPaths); err != nil {
			return err
		}
	}

	pool := workers.NewPool(&workers.Config{Logger: logger})
	workspace := buildfiles.NewWorkspace(rootDir, nil, logger)
	workspace.SetBuildFileName(cfg.BuildFileName)

	runOnce := func(ctx context.Context) (int, error) {
		params := runtracker.Params{
			Logger:  logger,
			Metrics: metrics,
			Tracer:  tracer,
		}
		if store != nil {
			params.Store = store
		}
		tracker := runtracker.New(params)
		ctx = tracker.Start(ctx, opts.Goals)

		factory, err := runner.NewFactory(runner.FactoryParams{
			Registry:  registry,
			Options:   opts,
			RootDir:   rootDir,
			Session:   workspace,
			Tracker:   tracker,
			Reporting: reporting.New(logger),
			Policies:  policies,
			Pool:      pool,
			Logger:    telemetry.RunLogger(logger, tracker.RunID()),
		})
		if err != nil {
			tracker.SetRootOutcome(runtracker.OutcomeFailure)
			_ = tracker.End(ctx)
			return 1, err
		}

		goalRunner, err := factory.Create(ctx)
		if err != nil {
			tracker.SetRootOutcome(runtracker.OutcomeFailure)
			_ = tracker.End(ctx)
			return 1, err
		}

		return goalRunner.Run(ctx)
	}

	var exitCode int
	if global.Loop {
		lr := runner.NewLoopRunner(rootDir, logger, runOnce)
		lr.SetBuildFileName(cfg.BuildFileName)
		exitCode, err = lr.Run(ctx)
	} else {
		exitCode, err = runOnce(ctx)
	}
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return fmt.Errorf("goals failed (exit code %d)", exitCode)
	}
	return nil
}

// splitArgs separates goal names from target specs. Anything that looks
// like an address or path is a spec; plain words are goal names and are
// resolved (or rejected) against the registry later.
func splitArgs(args []string) (goals, specs []string) {
	for _, arg := range args {
		if strings.ContainsAny(arg, "/:*.") {
			specs = append(specs, arg)
		} else {
			goals = append(goals, arg)
		}
	}
	return goals, specs
}
