// Package ratelimit provides per-tenant request rate limiting for the
// intake gateway, so one tenant's burst cannot starve the rest.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scrublog-systems/scrublog/internal/metrics"
)

type RateLimiter interface {
	Allow(ctx context.Context, tenantID string) (bool, error)
	Close() error
}

type redisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

// NewRedisRateLimiter connects to Redis and returns a sliding-window
// limiter of limit requests per window per tenant.
func NewRedisRateLimiter(redisURL string, limit int, window time.Duration) (RateLimiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &redisRateLimiter{
		client: client,
		limit:  int64(limit),
		window: window,
	}, nil
}

// Allow implements sliding window rate limiting using Redis.
func (r *redisRateLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - r.window.Nanoseconds()

	// Lua script keeps the window check and insert atomic across
	// concurrent gateway instances.
	script := `
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local limit = tonumber(ARGV[3])

		redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

		local current = redis.call('ZCARD', key)

		if current < limit then
			redis.call('ZADD', key, now, now)
			redis.call('EXPIRE', key, 60)
			return 1
		else
			return 0
		end
	`

	result, err := r.client.Eval(ctx, script, []string{"ratelimit:tenant:" + tenantID}, now, windowStart, r.limit).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result == 1
	if !allowed {
		metrics.RateLimitHits.WithLabelValues(tenantID).Inc()
	}

	return allowed, nil
}

func (r *redisRateLimiter) Close() error {
	return r.client.Close()
}

// NoOpRateLimiter always allows requests (for tests or when disabled).
type NoOpRateLimiter struct{}

func (n *NoOpRateLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	return true, nil
}

func (n *NoOpRateLimiter) Close() error {
	return nil
}
