package main

import (
	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var pairs []string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the last run summary of the selected pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(cmd.Context(), cmd, syncRole)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Status(cmd.Context(), pairs)
		},
	}

	cmd.Flags().StringArrayVarP(&pairs, "pair", "p", nil, "Pair to report (repeatable, default all)")

	return cmd
}
