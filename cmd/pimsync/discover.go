package main

import (
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
	"github.com/MKhiriev/go-pim-sync/internal/app"
	"github.com/MKhiriev/go-pim-sync/internal/config"
	"github.com/spf13/cobra"
)

func newDiscoverCommand() *cobra.Command {
	var (
		kind string
		opts adapter.DAVOptions
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the calendars or address books of a DAV account",
		Long: `Find the calendars (--type caldav) or address books (--type carddav)
of the account at --url and print them as JSON. The printed URLs can be used
as the url of a pair side.

Example:
  pimsync discover --type caldav --url https://dav.example.com --username alice --password secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Discover(cmd.Context(), kind, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&kind, "type", config.StorageCalDAV, "Collection type: caldav or carddav")
	cmd.Flags().StringVar(&opts.URL, "url", "", "DAV server URL (required)")
	cmd.Flags().StringVar(&opts.Username, "username", "", "Basic auth user name")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Basic auth password")
	cmd.Flags().DurationVar(&opts.RequestTimeout, "timeout", 30*time.Second, "Request timeout")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}
