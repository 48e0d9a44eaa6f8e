// Package ratelimit implements sliding-window request limiting with two
// interchangeable backends: a Redis-backed window shared across processes,
// and an in-process fallback used when no Redis is configured. The fallback
// is best-effort under multi-process deployments; the Redis backend is the
// authoritative one.
package ratelimit

import (
	"context"
	"time"
)

// Config parameterizes one limiter: at most Limit requests per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one Allow check.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest counted request leaves the window. Only
	// meaningful when Allowed is false.
	ResetAt time.Time
}

// RetryAfter returns the whole seconds a rejected caller should wait,
// never less than 1 so a Retry-After header is always usable.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Limiter answers whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
