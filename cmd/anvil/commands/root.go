package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "anvil",
		Short: "Anvil - Goal-oriented build orchestrator",
		Long: `Anvil executes named build goals against targets declared in BUILD files.

Goals are composed of tasks ordered by the products they produce and
consume: a task never runs before the producers of its required products
have completed. Targets are addressed as path:name and resolved with their
full transitive dependency closure before any task runs.

Features:
  - Product-dependency task scheduling across requested goals
  - Starlark BUILD files, CUE workspace config
  - Rego policy checks over the resolved target graph
  - Run history persisted to SQLite
  - Watch mode re-running goals on BUILD file changes`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "anvil.cue", "workspace config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newGoalsCommand())
	rootCmd.AddCommand(newRunsCommand())

	return rootCmd
}
