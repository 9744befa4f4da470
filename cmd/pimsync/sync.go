package main

import (
	"github.com/spf13/cobra"
)

const (
	syncRole   = "sync"
	daemonRole = "daemon"
)

func newSyncCommand() *cobra.Command {
	var (
		pairs  []string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run the selected pairs once",
		Long: `Run every configured pair, or the pairs selected with --pair, once and
print the run summaries as JSON. With --dry-run nothing is written and the
computed plans are printed instead.

Example:
  pimsync sync -c pimsync.yaml
  pimsync sync -c pimsync.yaml --pair calendar --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(cmd.Context(), cmd, syncRole)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Sync(cmd.Context(), pairs, dryRun)
		},
	}

	cmd.Flags().StringArrayVarP(&pairs, "pair", "p", nil, "Pair to run (repeatable, default all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plans without applying them")

	return cmd
}
