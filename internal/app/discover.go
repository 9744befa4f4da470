package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/MKhiriev/go-pim-sync/internal/adapter"
)

// Discover lists the calendars (kind "caldav") or address books (kind
// "carddav") of the DAV account described by opts and prints them as JSON.
// It needs neither a status store nor configured pairs.
func Discover(ctx context.Context, kind string, opts adapter.DAVOptions, out io.Writer) error {
	collections, err := adapter.Discover(ctx, kind, opts)
	if err != nil {
		return fmt.Errorf("discover %s collections: %w", kind, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(collections)
}
