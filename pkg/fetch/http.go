package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marmos91/tunecache/internal/logger"
)

// HTTPConfig configures the HTTP fetcher.
type HTTPConfig struct {
	// Timeout bounds a whole request, body included. Default: 5 minutes.
	Timeout time.Duration `mapstructure:"timeout"`

	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`

	// MaxBytes rejects assets larger than this. 0 means unlimited.
	MaxBytes int64 `mapstructure:"max_bytes"`

	// Client overrides the HTTP client (tests).
	Client *http.Client `mapstructure:"-"`
}

// HTTPFetcher fetches assets with plain GET requests.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(cfg HTTPConfig) *HTTPFetcher {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 5 * time.Minute
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPFetcher{client: client, userAgent: cfg.UserAgent, maxBytes: cfg.MaxBytes}
}

// Fetch downloads url. Any status outside 2xx yields a *StatusError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Asset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %v: %w", url, err, ErrNetworkFetch)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fetch %s: %v: %w", url, err, ErrNetworkFetch)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: %d bytes exceeds limit of %d: %w", url, resp.ContentLength, f.maxBytes, ErrNetworkFetch)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch %s: body timed out: %w", url, ErrNetworkFetch)
		}
		return nil, fmt.Errorf("fetch %s: reading body: %v: %w", url, err, ErrNetworkFetch)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: body exceeds limit of %d: %w", url, f.maxBytes, ErrNetworkFetch)
	}

	logger.Debug("Fetched %s: %d bytes, type=%q in %s", url, len(data), resp.Header.Get("Content-Type"), time.Since(start))

	return &Asset{
		URL:         url,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
