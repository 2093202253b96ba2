// ratelimit.go -- In-process token bucket rate limiter.
//
// Used when Redis is not configured. Limits are per process.
package store

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter     *rate.Limiter
	lockedUntil time.Time
	lastSeen    time.Time
}

// MemoryRateLimiter keeps one token bucket per key. Safe for concurrent use.
type MemoryRateLimiter struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*limiterEntry
}

// NewMemoryRateLimiter returns an empty limiter.
func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		now:     time.Now,
		entries: make(map[string]*limiterEntry),
	}
}

// Allow takes one token for key. The bucket refills MaxAttempts per Window with
// burst MaxAttempts; an empty bucket locks the key out for LockoutTTL.
func (l *MemoryRateLimiter) Allow(_ context.Context, key string, policy RateLimit) error {
	if policy.MaxAttempts <= 0 || policy.Window <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	e, ok := l.entries[key]
	if !ok {
		every := policy.Window / time.Duration(policy.MaxAttempts)
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(every), policy.MaxAttempts)}
		l.entries[key] = e
	}
	e.lastSeen = now

	if now.Before(e.lockedUntil) {
		return ErrRateLimitExceeded
	}
	if !e.limiter.AllowN(now, 1) {
		e.lockedUntil = now.Add(policy.LockoutTTL)
		return ErrRateLimitExceeded
	}
	return nil
}

// Sweep drops keys idle for longer than idle and not locked out. Returns how many.
func (l *MemoryRateLimiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > idle && !now.Before(e.lockedUntil) {
			delete(l.entries, k)
			n++
		}
	}
	return n
}

// CheckHealth always reports ErrDisabled: no external backend is in use.
func (l *MemoryRateLimiter) CheckHealth(context.Context) error {
	return ErrDisabled
}
