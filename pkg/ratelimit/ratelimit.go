// Package ratelimit bounds how often a caller may hit an expensive endpoint.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"mindboard/pkg/clock"
)

// Limiter decides whether one more request for key fits its budget.
// Implementations that cannot reach their backing store fail open: they
// return true together with the error.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RetryAfter(key string) time.Duration
	Reset(ctx context.Context, key string) error
}

// SlidingWindowLimiter admits at most limit requests per key within any
// window-long interval. State is process-local.
type SlidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	limit   int
	window  time.Duration
	clock   clock.Clock
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(limit int, window time.Duration, clk clock.Clock) *SlidingWindowLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	return &SlidingWindowLimiter{
		windows: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		clock:   clk,
	}
}

// Allow checks if a request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	recent := l.prune(key, now)

	if len(recent) >= l.limit {
		return false, nil
	}
	l.windows[key] = append(recent, now)
	return true, nil
}

// RetryAfter returns how long key must wait before its next request fits
func (l *SlidingWindowLimiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	recent := l.prune(key, now)
	if len(recent) < l.limit {
		return 0
	}
	return recent[len(recent)-l.limit].Add(l.window).Sub(now)
}

// Reset resets the rate limit for a key
func (l *SlidingWindowLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.windows, key)
	return nil
}

// prune drops requests that left the window. Keys with no recent requests
// are forgotten so idle sessions do not accumulate.
func (l *SlidingWindowLimiter) prune(key string, now time.Time) []time.Time {
	start := now.Add(-l.window)
	requests := l.windows[key]

	i := 0
	for i < len(requests) && !requests[i].After(start) {
		i++
	}
	recent := requests[i:]
	if len(recent) == 0 {
		delete(l.windows, key)
		return nil
	}
	l.windows[key] = recent
	return recent
}
