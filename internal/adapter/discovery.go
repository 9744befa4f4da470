package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/MKhiriev/go-pim-sync/internal/utils"
	"github.com/emersion/go-webdav/caldav"
	"github.com/emersion/go-webdav/carddav"
)

// Collection is a calendar or address book found by [Discover].
type Collection struct {
	URL         string `json:"url"`
	Path        string `json:"path"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Discover walks current-user-principal, then the calendar or address book
// home set, and lists the collections in it. kind is "caldav" or
// "carddav"; opts.URL is the server's DAV endpoint.
func Discover(ctx context.Context, kind string, opts DAVOptions) ([]Collection, error) {
	endpoint := strings.TrimSpace(opts.URL)
	if endpoint != "" && !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	origin, _, err := splitCollectionURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	client := utils.NewHTTPClient().WithTimeout(opts.RequestTimeout)
	httpClient := davHTTPClient(client, opts.Username, opts.Password)

	switch kind {
	case "caldav":
		c, err := caldav.NewClient(httpClient, endpoint)
		if err != nil {
			return nil, fmt.Errorf("create caldav client: %w", err)
		}
		return discoverCalendars(ctx, c, origin)
	case "carddav":
		c, err := carddav.NewClient(httpClient, endpoint)
		if err != nil {
			return nil, fmt.Errorf("create carddav client: %w", err)
		}
		return discoverAddressBooks(ctx, c, origin)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStorage, kind)
	}
}

func discoverCalendars(ctx context.Context, c *caldav.Client, origin string) ([]Collection, error) {
	principal, err := c.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, transportError("find current user principal", err)
	}

	home, err := c.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, transportError("find calendar home set", err)
	}

	calendars, err := c.FindCalendars(ctx, home)
	if err != nil {
		return nil, transportError("find calendars", err)
	}

	collections := make([]Collection, 0, len(calendars))
	for _, cal := range calendars {
		collections = append(collections, Collection{
			URL:         origin + cal.Path,
			Path:        cal.Path,
			Name:        cal.Name,
			Description: cal.Description,
		})
	}
	return collections, nil
}

func discoverAddressBooks(ctx context.Context, c *carddav.Client, origin string) ([]Collection, error) {
	principal, err := c.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, transportError("find current user principal", err)
	}

	home, err := c.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return nil, transportError("find address book home set", err)
	}

	books, err := c.FindAddressBooks(ctx, home)
	if err != nil {
		return nil, transportError("find address books", err)
	}

	collections := make([]Collection, 0, len(books))
	for _, book := range books {
		collections = append(collections, Collection{
			URL:         origin + book.Path,
			Path:        book.Path,
			Name:        book.Name,
			Description: book.Description,
		})
	}
	return collections, nil
}
