// redis.go -- go-redis client for rate limit counters.
//
// Every counter operation maps onto a single atomic Redis command; there is no
// read-modify-write in Go. Failures are wrapped with ErrCacheUnavailable so the
// limiter can apply its fail-open policy with errors.Is.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL, connects, and pings before returning.
// The returned client is shared by every Redis-backed component (one connection pool).
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisCounter implements the counter cache used by the rate limiter.
type RedisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter wraps an existing client. Does not take ownership -- caller closes rdb.
func NewRedisCounter(rdb *redis.Client) *RedisCounter {
	return &RedisCounter{rdb: rdb}
}

// CheckHealth pings Redis.
func (c *RedisCounter) CheckHealth(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %w", ErrCacheUnavailable, err)
	}
	return nil
}

// Get returns the counter value and true, or 0 and false if the key is absent.
func (c *RedisCounter) Get(ctx context.Context, key string) (int64, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: get %s: %w", ErrCacheUnavailable, key, err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("counter %s holds non-integer value: %w", key, err)
	}
	return n, true, nil
}

// Incr atomically increments key and returns the new value.
// An absent key is created at 1 with no TTL.
func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: incr %s: %w", ErrCacheUnavailable, key, err)
	}
	return n, nil
}

// Decr atomically decrements key and returns the new value.
func (c *RedisCounter) Decr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: decr %s: %w", ErrCacheUnavailable, key, err)
	}
	return n, nil
}

// Expire attaches ttl to key only if it has none (EXPIRE ... NX, Redis >= 7).
// A running window is never extended. Returns true if a TTL was set by this call.
func (c *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.ExpireNX(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: expire %s: %w", ErrCacheUnavailable, key, err)
	}
	return ok, nil
}

// TTL returns the remaining time to live of key.
// Negative when the key is missing or carries no TTL (Redis -2 / -1).
func (c *RedisCounter) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: ttl %s: %w", ErrCacheUnavailable, key, err)
	}
	return d, nil
}
