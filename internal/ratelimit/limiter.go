package ratelimit

import "context"

// RateLimiter throttles calls per key within a fixed one-second window.
// Keys are caller-defined, e.g. an actor id for API traffic or "webhook".
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}
