// limiter.go -- Per-user fixed-window rate limiter on a shared counter cache.
//
// One counter per user. The first admitted action creates it (INCR) and attaches
// the window TTL (EXPIRE NX); the window ends when the key expires. A rejected
// action is rolled back with DECR so the counter never exceeds the limit for long.
// All arithmetic happens in the cache; there is no read-modify-write here.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Counter is the cache surface the limiter needs.
// Satisfied by *store.RedisCounter -- defined here (at consumer) per Go convention.
type Counter interface {
	// Get returns the value and true, or false when the key is absent.
	Get(ctx context.Context, key string) (int64, bool, error)

	// Incr atomically increments key, creating it at 1 with no TTL.
	Incr(ctx context.Context, key string) (int64, error)

	// Decr atomically decrements key.
	Decr(ctx context.Context, key string) (int64, error)

	// Expire sets ttl only if key has none.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// TTL returns remaining time to live; negative when missing or unset.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Policy is the quota: Limit admitted actions per Window.
type Policy struct {
	Limit  int64
	Window time.Duration
}

// DefaultPolicy is 5 actions per 24h.
var DefaultPolicy = Policy{Limit: 5, Window: 24 * time.Hour}

// Decision is the outcome of Allow or Status.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// Reset is the time until the window ends; Window when no window is running.
	Reset   time.Duration
	ResetAt time.Time
}

// ResetSeconds rounds Reset up to whole seconds.
func (d Decision) ResetSeconds() int64 {
	return int64(math.Ceil(d.Reset.Seconds()))
}

// Limiter applies a Policy to per-user counters.
type Limiter struct {
	counter Counter
	policy  Policy
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMetrics records every middleware decision on m.
func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// WithClock overrides time.Now for ResetAt and header computation.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a Limiter. Non-positive policy fields fall back to DefaultPolicy.
func New(counter Counter, policy Policy, opts ...Option) *Limiter {
	if policy.Limit <= 0 {
		policy.Limit = DefaultPolicy.Limit
	}
	if policy.Window <= 0 {
		policy.Window = DefaultPolicy.Window
	}
	l := &Limiter{counter: counter, policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the effective policy.
func (l *Limiter) Policy() Policy { return l.policy }

// Key returns the counter key for userID.
func Key(userID uuid.UUID) string {
	return "ratelimit:user:" + userID.String()
}

// Allow records one action for userID and reports whether it fits the quota.
// count == Limit is admitted. Any cache error is returned; callers decide the policy.
func (l *Limiter) Allow(ctx context.Context, userID uuid.UUID) (Decision, error) {
	key := Key(userID)

	count, err := l.counter.Incr(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("counting action: %w", err)
	}
	// NX: attaches the window on first use, never extends a running one.
	if _, err := l.counter.Expire(ctx, key, l.policy.Window); err != nil {
		return Decision{}, fmt.Errorf("setting window: %w", err)
	}

	allowed := count <= l.policy.Limit
	if !allowed {
		// A failed rollback fails open like any cache error; the counter stays one over Limit.
		if _, err := l.counter.Decr(ctx, key); err != nil {
			return Decision{}, fmt.Errorf("rolling back rejected action: %w", err)
		}
	}

	reset, err := l.reset(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	remaining := max(l.policy.Limit-count, 0)
	return l.decision(allowed, remaining, reset), nil
}

// Status reports the quota for userID without recording an action.
func (l *Limiter) Status(ctx context.Context, userID uuid.UUID) (Decision, error) {
	key := Key(userID)

	count, ok, err := l.counter.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("reading counter: %w", err)
	}
	ttl, err := l.counter.TTL(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("reading window: %w", err)
	}
	// A counter without TTL is treated as expired.
	if !ok || ttl < 0 {
		return l.decision(true, l.policy.Limit, l.policy.Window), nil
	}

	remaining := max(l.policy.Limit-count, 0)
	return l.decision(remaining > 0, remaining, ttl), nil
}

// reset returns the TTL of key, falling back to Window when none is set.
func (l *Limiter) reset(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.counter.TTL(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("reading window: %w", err)
	}
	if ttl < 0 {
		return l.policy.Window, nil
	}
	return ttl, nil
}

func (l *Limiter) decision(allowed bool, remaining int64, reset time.Duration) Decision {
	return Decision{
		Allowed:   allowed,
		Limit:     l.policy.Limit,
		Remaining: remaining,
		Reset:     reset,
		ResetAt:   l.now().Add(reset),
	}
}
