// Package artifact retrieves CI artifacts such as reproducer scripts from
// HTTP(S) URLs or local paths.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"squadutils/internal/logging"
)

// ErrNotFound is returned when the artifact does not exist at the location.
var ErrNotFound = errors.New("artifact not found")

// maxSize bounds how much of a response body is read.
const maxSize = 64 << 20

// Fetcher reads an artifact by location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Retriever fetches http:// and https:// locations over HTTP and reads
// anything else from the local filesystem.
type Retriever struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithHTTPClient sets the HTTP client used for URL locations.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Retriever) { r.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New returns a Retriever.
func New(opts ...Option) *Retriever {
	r := &Retriever{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logging.Discard(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// IsURL reports whether location is fetched over HTTP.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Join appends name to a base URL or directory.
func Join(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}

// Fetch returns the content at location.
func (r *Retriever) Fetch(ctx context.Context, location string) ([]byte, error) {
	r.logger.DebugContext(ctx, "fetching artifact", "location", location)
	if !IsURL(location) {
		data, err := os.ReadFile(location)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", location, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", location, err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("fetch %s: %w", location, ErrNotFound)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", location, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", location, err)
	}
	r.logger.DebugContext(ctx, "fetched artifact", "location", location, "bytes", len(data))
	return data, nil
}

// Save writes data to path, creating parent directories.
func Save(path string, data []byte, perm os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
