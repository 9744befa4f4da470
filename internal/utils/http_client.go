package utils

import (
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "pimsync"

// HTTPClient is a wrapper around the resty.Client HTTP client.
// It embeds *resty.Client to expose all of its methods directly,
// while allowing extension with additional application-specific behavior.
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient creates an HTTPClient with the pimsync user agent and no
// automatic retries; the sync engine decides what to do with failures.
//
// Each call returns an independent client instance with its own
// configuration, connection pool, and state.
//
// Example usage:
//
//	client := utils.NewHTTPClient().WithBasicAuth("user", "secret")
//	resp, err := client.R().Get("https://dav.example.com/calendars/home/")
func NewHTTPClient() *HTTPClient {
	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetRetryCount(0)

	return &HTTPClient{Client: client}
}

// WithBasicAuth sets HTTP basic credentials when username is not empty.
func (c *HTTPClient) WithBasicAuth(username, password string) *HTTPClient {
	if username != "" {
		c.SetBasicAuth(username, password)
	}
	return c
}

// WithTimeout sets the per-request timeout when timeout is positive.
func (c *HTTPClient) WithTimeout(timeout time.Duration) *HTTPClient {
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}
