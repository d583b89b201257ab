package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/labelflow/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultLimitPerSec int64 = 20
	window                   = time.Second
	minWait                  = 5 * time.Millisecond
	maxWait                  = 50 * time.Millisecond
)

// fixedWindowScript counts a hit and returns the count so far in the window.
// The key expires a little after its window so late readers never see a
// recycled counter.
var fixedWindowScript = goredis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return hits
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter shares a fixed one-second window per key across every
// labelflow process. Counters live under ratelimit:<scope>:<key>:<unix second>.
type RedisRateLimiter struct {
	client *goredis.Client
	scope  string
	limit  int64
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, scope string, limitPerSec int) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, scope, int64(limitPerSec), time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	scope string,
	limit int64,
	now func() time.Time,
	sleep func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	scope = strings.ToLower(strings.TrimSpace(scope))
	if scope == "" {
		return nil, fmt.Errorf("rate limiter scope is required")
	}
	if limit <= 0 {
		limit = defaultLimitPerSec
	}
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = sleepWithContext
	}

	return &RedisRateLimiter{
		client: client,
		scope:  scope,
		limit:  limit,
		now:    now,
		sleep:  sleep,
	}, nil
}

// Allow records a hit for key and reports whether it fits in the current window.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	hits, err := r.hit(ctx, key, r.now())
	if err != nil {
		return false, err
	}
	return hits <= r.limit, nil
}

// Wait blocks until key gets a slot, sleeping toward the next window boundary.
func (r *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		now := r.now()
		hits, err := r.hit(ctx, key, now)
		if err != nil {
			return err
		}
		if hits <= r.limit {
			return nil
		}

		if err := r.sleep(ctx, untilNextWindow(now)); err != nil {
			return err
		}
	}
}

func (r *RedisRateLimiter) hit(ctx context.Context, key string, at time.Time) (int64, error) {
	if r == nil || r.client == nil {
		return 0, fmt.Errorf("rate limiter is not initialized")
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return 0, fmt.Errorf("rate limit key is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	windowKey := fmt.Sprintf("ratelimit:%s:%s:%d", r.scope, key, at.UTC().Unix())
	hits, err := fixedWindowScript.Run(ctx, r.client, []string{windowKey}, (2 * window).Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate rate limit for %s/%s: %w", r.scope, key, err)
	}
	return hits, nil
}

// untilNextWindow is the time left in the window containing now, kept
// between minWait and maxWait so waiters re-check regularly.
func untilNextWindow(now time.Time) time.Duration {
	remaining := now.Truncate(window).Add(window).Sub(now)
	return min(max(remaining, minWait), maxWait)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
