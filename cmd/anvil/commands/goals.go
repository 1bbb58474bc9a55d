package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGoalsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "goals",
		Short: "List the registered goals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := newRegistry()
			if err != nil {
				return err
			}
			for _, name := range registry.Names() {
				g, err := registry.ByName(name)
				if err != nil {
					return err
				}
				fmt.Printf("%-14s %s\n", g.Name, g.Description)
			}
			return nil
		},
	}
}
