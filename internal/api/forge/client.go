package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/version"
)

const (
	// DefaultTimeout bounds a metadata call. Listings are small, so they must fail fast.
	DefaultTimeout = 5 * time.Second

	// maxListingBytes caps how much of a listing response is decoded.
	maxListingBytes = 8 << 20
)

// Client fetches JSON listings from forge APIs.
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient creates a metadata client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// List GETs url and decodes a JSON array, keeping every entry undecoded.
func (c *Client) List(ctx context.Context, url string) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %w", release.ErrNetwork, url, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	logger.DebugKV(ctx, "Fetching upstream listing", "url", url)

	response, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", release.ErrNetwork, url, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: get %s: unexpected status %s", release.ErrNetwork, url, response.Status)
	}

	var entries []json.RawMessage
	if err = json.NewDecoder(io.LimitReader(response.Body, maxListingBytes)).Decode(&entries); err != nil {
		// A deadline hit while reading the body is still a network failure.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: read %s: %w", release.ErrNetwork, url, ctx.Err())
		}

		return nil, fmt.Errorf("%w: decode %s: %w", release.ErrParse, url, err)
	}

	return entries, nil
}
