package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oshokin/release-watcher/internal/domain/release"
	"github.com/oshokin/release-watcher/internal/logger"
	"github.com/oshokin/release-watcher/internal/version"
)

const (
	// ChunkSize is the number of bytes read from the stream at a time.
	ChunkSize = 4096

	// DefaultTimeout bounds a whole download, including reading the body.
	DefaultTimeout = 10 * time.Minute

	// Algorithm is the digest program name recorded in source descriptors.
	Algorithm = "sha256sum"
)

// Computer downloads a URL and hashes it on the fly.
type Computer struct {
	client    *http.Client
	timeout   time.Duration
	chunkSize int
}

// Option configures a Computer.
type Option func(*Computer)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Computer) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout sets the download timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Computer) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithChunkSize sets the read buffer size.
func WithChunkSize(size int) Option {
	return func(c *Computer) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// New creates a Computer with the default client, timeout and chunk size.
func New(opts ...Option) *Computer {
	c := &Computer{
		client:    http.DefaultClient,
		timeout:   DefaultTimeout,
		chunkSize: ChunkSize,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SHA256 downloads url and returns the lowercase hex digest of its body.
// Any failure, including one in the middle of the stream, discards the digest.
func (c *Computer) SHA256(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: build request for %s: %w", release.ErrNetwork, url, err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: download %s: %w", release.ErrNetwork, url, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: download %s: unexpected status %s", release.ErrNetwork, url, response.Status)
	}

	sum, size, err := c.Sum(response.Body)
	if err != nil {
		return "", fmt.Errorf("%w: download %s: %w", release.ErrNetwork, url, err)
	}

	logger.DebugKV(ctx, "Computed checksum", "url", url, "bytes", size, "sha256", sum)

	return sum, nil
}

// Sum hashes r through a single chunk-sized buffer and returns the hex digest
// and the number of bytes read.
func (c *Computer) Sum(r io.Reader) (string, int64, error) {
	hasher := sha256.New()
	buffer := make([]byte, c.chunkSize)

	// Hide any WriterTo on r, otherwise io.CopyBuffer bypasses the buffer.
	size, err := io.CopyBuffer(hasher, struct{ io.Reader }{r}, buffer)
	if err != nil {
		return "", size, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}
