package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/anvilbuild/anvil/pkg/stores"
)

func newRunsCommand() *cobra.Command {
	var (
		storePath string
		limit     int
		runID     string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show run history from the run store",
		Example: `  # Show the last 20 runs
  anvil runs --store .anvil.d/runs.db

  # Show the workunits of one run
  anvil runs --store .anvil.d/runs.db --run 0f3c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := stores.NewSQLiteStore(storePath)
			if err != nil {
				return err
			}
			if err := store.Init(ctx); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if runID != "" {
				return printWorkUnits(cmd, store, runID)
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				completed := "-"
				if r.CompletedAt != nil {
					completed = r.CompletedAt.Format(time.RFC3339)
				}
				fmt.Printf("%s  %-8s  %s  %s\n", r.ID, r.Outcome, r.Goals, completed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "", "sqlite run-history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the workunits of this run")
	_ = cmd.MarkFlagRequired("store")

	return cmd
}

func printWorkUnits(cmd *cobra.Command, store *stores.SQLiteStore, runID string) error {
	units, err := store.WorkUnitsForRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	for _, wu := range units {
		fmt.Printf("%-30s  %-8s  %6dms  %s\n", wu.Name, wu.Outcome, wu.DurationMS, wu.Labels)
	}
	return nil
}
