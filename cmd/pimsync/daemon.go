package main

import (
	"github.com/spf13/cobra"
)

func newDaemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Keep every pair in sync until interrupted",
		Long: `Run every pair on the sync interval until SIGINT or SIGTERM. With
sync.watch set, a change in a filesystem collection runs its pair right
away. With server.address set, the status API and Prometheus metrics are
served on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := loadApp(cmd.Context(), cmd, daemonRole)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Err(err).Msg("error closing status store")
				}
			}()

			return a.Daemon(cmd.Context())
		},
	}
}
