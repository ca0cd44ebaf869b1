// Package ratelimiter throttles requests to the remote content provider with
// a token bucket.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket shared by every fetch of a process.
//
// Tokens are added at a constant rate and each provider request consumes
// one. Up to burst requests start immediately after an idle period; past
// that, requests are spaced at the configured rate.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter refilled at requestsPerSecond that holds at most
// burst tokens.
//
// Parameters:
//   - requestsPerSecond: Sustained rate. Fractional values are allowed
//     (0.5 is one request every two seconds).
//   - burst: Bucket capacity in tokens.
//
// Special cases:
//   - requestsPerSecond <= 0: No rate limiting (Unlimited reports true)
//   - burst < 1 with a positive rate: raised to 1, otherwise Wait could
//     never succeed
//
// Example:
//
//	// One request every 500ms, up to 4 at once after an idle period
//	limiter := New(2, 4)
//
// Returns a configured RateLimiter.
func New(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// Unlimited reports whether the limiter never blocks.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available, without waiting.
//
// Returns:
//   - true if a token was consumed
//   - false if the bucket is empty (nothing consumed)
//
// Thread safety:
// Safe to call concurrently.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
//
// Parameters:
//   - ctx: Bounds the wait. A deadline shorter than the time until the next
//     token fails immediately instead of sleeping.
//
// Returns:
//   - nil if a token was acquired
//   - an error if ctx was cancelled or its deadline cannot be met
//
// Thread safety:
// Safe to call concurrently.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the tokens currently in the bucket. The value may be
// fractional or negative while reservations are pending, and may change
// right after the call.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
