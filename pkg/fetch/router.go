package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Router dispatches a fetch to the fetcher registered for the URL scheme.
type Router struct {
	fetchers map[string]Fetcher
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{fetchers: make(map[string]Fetcher)}
}

// Handle registers f for scheme (case-insensitive).
func (r *Router) Handle(scheme string, f Fetcher) *Router {
	r.fetchers[strings.ToLower(scheme)] = f
	return r
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, rawURL string) (*Asset, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %v: %w", rawURL, err, ErrNetworkFetch)
	}

	f, ok := r.fetchers[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("%q: %w: %w", rawURL, ErrUnsupportedScheme, ErrNetworkFetch)
	}
	return f.Fetch(ctx, rawURL)
}
