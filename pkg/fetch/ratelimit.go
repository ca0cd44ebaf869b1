package fetch

import (
	"context"
	"fmt"

	"github.com/marmos91/tunecache/internal/logger"
	"github.com/marmos91/tunecache/internal/ratelimiter"
)

// RateLimited throttles the requests of the wrapped fetcher.
type RateLimited struct {
	next    Fetcher
	limiter *ratelimiter.RateLimiter
}

// NewRateLimited wraps next so that at most requestsPerSecond fetches start
// per second, with bursts of up to burst. A zero rate returns next unchanged.
func NewRateLimited(next Fetcher, requestsPerSecond float64, burst int) Fetcher {
	limiter := ratelimiter.New(requestsPerSecond, burst)
	if limiter.Unlimited() {
		return next
	}
	return &RateLimited{next: next, limiter: limiter}
}

// Fetch waits for a token, then fetches. A wait that cannot finish before
// the deadline is a network failure; a cancelled one returns ctx.Err().
func (f *RateLimited) Fetch(ctx context.Context, url string) (*Asset, error) {
	if f.limiter.Allow() {
		return f.next.Fetch(ctx, url)
	}

	logger.Debug("Provider rate limit reached (%.2f tokens), waiting: %s", f.limiter.Tokens(), url)
	if err := f.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("fetch %s: rate limit wait: %v: %w", url, err, ErrNetworkFetch)
	}
	return f.next.Fetch(ctx, url)
}
