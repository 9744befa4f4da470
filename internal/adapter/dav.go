package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/MKhiriev/go-pim-sync/internal/item"
	"github.com/MKhiriev/go-pim-sync/internal/logger"
	"github.com/MKhiriev/go-pim-sync/internal/utils"
	"github.com/MKhiriev/go-pim-sync/models"
	"github.com/emersion/go-webdav"
)

// Content types and file extensions of the two DAV flavours.
const (
	CalendarContentType = "text/calendar; charset=utf-8"
	CalendarExtension   = ".ics"
	VCardContentType    = "text/vcard; charset=utf-8"
	VCardExtension      = ".vcf"
)

// DAVOptions describes one CalDAV or CardDAV collection.
type DAVOptions struct {
	// URL is the collection URL, e.g. https://dav.example.com/calendars/alice/home/.
	URL            string
	Username       string
	Password       string
	RequestTimeout time.Duration
	// ContentType is sent with every PUT.
	ContentType string
	// Extension is appended to the resource names of created items.
	Extension string
}

// davStorage talks to a single CalDAV/CardDAV collection. Listings use
// PROPFIND through go-webdav, item reads and conditional writes go through
// resty so that entity tags and status codes stay under our control.
type davStorage struct {
	client *utils.HTTPClient
	dav    *webdav.Client

	collection  string
	contentType string
	ext         string

	logger *logger.Logger
}

// NewDAVStorage constructs a [Storage] for the collection at opts.URL.
//
// Returns an error if the URL is empty or cannot be parsed.
func NewDAVStorage(opts DAVOptions, log *logger.Logger) (Storage, error) {
	origin, collection, err := splitCollectionURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid collection url: %w", err)
	}

	client := utils.NewHTTPClient().
		WithBasicAuth(opts.Username, opts.Password).
		WithTimeout(opts.RequestTimeout)
	client.SetBaseURL(origin)

	davClient, err := webdav.NewClient(davHTTPClient(client, opts.Username, opts.Password), origin)
	if err != nil {
		return nil, fmt.Errorf("create webdav client: %w", err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = CalendarContentType
	}
	ext := opts.Extension
	if ext == "" {
		ext = CalendarExtension
	}

	return &davStorage{
		client:      client,
		dav:         davClient,
		collection:  collection,
		contentType: contentType,
		ext:         ext,
		logger:      log,
	}, nil
}

// davHTTPClient shares resty's connection pool and timeout with go-webdav.
func davHTTPClient(client *utils.HTTPClient, username, password string) webdav.HTTPClient {
	var c webdav.HTTPClient = client.GetClient()
	if username != "" {
		c = webdav.HTTPClientWithBasicAuth(c, username, password)
	}
	return c
}

// splitCollectionURL returns the scheme://host part of raw and the
// collection path with a trailing slash.
func splitCollectionURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty address")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("address must include host and scheme")
	}

	collection := u.Path
	if !strings.HasSuffix(collection, "/") {
		collection += "/"
	}

	return u.Scheme + "://" + u.Host, collection, nil
}

// List implements [Storage] with a Depth: 1 PROPFIND on the collection.
func (s *davStorage) List(ctx context.Context) ([]models.ItemRef, error) {
	infos, err := s.dav.ReadDir(ctx, s.collection, false)
	if err != nil {
		s.logger.Err(err).Str("func", "*davStorage.List").Str("collection", s.collection).Msg("error listing collection")
		return nil, transportError("list collection", err)
	}

	refs := make([]models.ItemRef, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir || path.Clean(fi.Path) == path.Clean(s.collection) {
			continue
		}

		identity := path.Base(fi.Path)
		fingerprint := unquoteETag(fi.ETag)
		if fingerprint == "" {
			// no getetag: fall back to a content hash of the resource
			it, err := s.Fetch(ctx, identity)
			if err != nil {
				return nil, err
			}
			fingerprint = it.Fingerprint
		}
		refs = append(refs, models.ItemRef{Identity: identity, Fingerprint: fingerprint})
	}

	return refs, nil
}

// Fetch implements [Storage].
func (s *davStorage) Fetch(ctx context.Context, identity string) (models.Item, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.itemPath(identity))
	if err != nil {
		return models.Item{}, transportError("fetch "+identity, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.Item{}, fmt.Errorf("fetch %s: %w", identity, err)
	}

	content := resp.Body()
	fingerprint := unquoteETag(resp.Header().Get("ETag"))
	if fingerprint == "" {
		fingerprint = utils.ContentHash(content)
	}

	return models.Item{Identity: identity, Fingerprint: fingerprint, Content: content}, nil
}

// Create implements [Storage] with a PUT guarded by If-None-Match: *.
func (s *davStorage) Create(ctx context.Context, content []byte) (models.ItemRef, error) {
	identity := item.FileName(item.Ident(content), s.ext)

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", s.contentType).
		SetHeader("If-None-Match", "*").
		SetBody(content).
		Put(s.itemPath(identity))
	if err != nil {
		return models.ItemRef{}, transportError("create "+identity, err)
	}
	if resp.StatusCode() == http.StatusPreconditionFailed {
		return models.ItemRef{}, fmt.Errorf("%w: %s", ErrAlreadyExists, identity)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.ItemRef{}, fmt.Errorf("create %s: %w", identity, err)
	}

	fingerprint, err := s.writtenFingerprint(ctx, identity, resp.Header())
	if err != nil {
		return models.ItemRef{}, err
	}

	return models.ItemRef{Identity: identity, Fingerprint: fingerprint}, nil
}

// Update implements [Storage] with a PUT guarded by If-Match.
func (s *davStorage) Update(ctx context.Context, identity string, content []byte, expected string) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", s.contentType).
		SetHeader("If-Match", quoteETag(expected)).
		SetBody(content).
		Put(s.itemPath(identity))
	if err != nil {
		return "", transportError("update "+identity, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return "", fmt.Errorf("update %s: %w", identity, err)
	}

	return s.writtenFingerprint(ctx, identity, resp.Header())
}

// Delete implements [Storage] with a DELETE guarded by If-Match.
func (s *davStorage) Delete(ctx context.Context, identity string, expected string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("If-Match", quoteETag(expected)).
		Delete(s.itemPath(identity))
	if err != nil {
		return transportError("delete "+identity, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return fmt.Errorf("delete %s: %w", identity, err)
	}

	return nil
}

// writtenFingerprint returns the ETag of a PUT response, or re-reads the
// resource when the server did not send one (servers that rewrite the
// payload often omit it).
func (s *davStorage) writtenFingerprint(ctx context.Context, identity string, header http.Header) (string, error) {
	if etag := unquoteETag(header.Get("ETag")); etag != "" {
		return etag, nil
	}

	it, err := s.Fetch(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("read back %s: %w", identity, err)
	}
	return it.Fingerprint, nil
}

func (s *davStorage) itemPath(identity string) string {
	return s.collection + url.PathEscape(identity)
}

// unquoteETag strips the quotes of a strong entity tag. Weak tags are kept
// verbatim.
func unquoteETag(etag string) string {
	etag = strings.TrimSpace(etag)
	if len(etag) >= 2 && strings.HasPrefix(etag, `"`) && strings.HasSuffix(etag, `"`) {
		return etag[1 : len(etag)-1]
	}
	return etag
}

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, "W/") || strings.HasPrefix(etag, `"`) {
		return etag
	}
	return `"` + etag + `"`
}
