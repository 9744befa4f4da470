package main

import (
	"context"
	"fmt"

	"github.com/MKhiriev/go-pim-sync/internal/app"
	"github.com/MKhiriev/go-pim-sync/internal/config"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pimsync",
		Short: "Two-way synchronization of calendars and address books",
		Long: `pimsync keeps pairs of calendar or contact collections in sync.

A collection is a local directory of .ics/.vcf files or a CalDAV/CardDAV
collection. Pairs are defined in the config file; the status of every pair
is kept in the status store between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newSyncCommand())
	cmd.AddCommand(newDaemonCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newDiscoverCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// loadApp reads the configuration from every source and wires the app.
// The daemon logs to the configured log file, other commands to stderr.
func loadApp(ctx context.Context, cmd *cobra.Command, role string) (*app.App, *logger.Logger, error) {
	cfg, err := config.GetStructuredConfig(cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("error getting configs: %w", err)
	}

	log := logger.NewLogger(role)
	if role == daemonRole {
		log = logger.NewFileLogger(role, cfg.App.LogFile)
	}
	if err = logger.SetLevel(cfg.App.LogLevel); err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	a, err := app.NewApp(ctx, cfg, buildInfo(), cmd.OutOrStdout(), log)
	if err != nil {
		log.Err(err).Msg("error creating app")
		return nil, nil, err
	}
	return a, log, nil
}

func buildInfo() models.AppBuildInfo {
	return models.NewAppBuildInfo(orNA(buildVersion), orNA(buildDate), orNA(buildCommit))
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
