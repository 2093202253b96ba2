package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- MemoryRateLimiter ---

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	policy := RateLimit{MaxAttempts: 3, Window: time.Minute, LockoutTTL: 5 * time.Minute}

	t.Run("allows burst then locks out", func(t *testing.T) {
		clock := newFakeClock()
		l := NewMemoryRateLimiter()
		l.now = clock.Now

		for i := range 3 {
			if err := l.Allow(ctx, "ip:1", policy); err != nil {
				t.Fatalf("attempt %d: expected allowed, got %v", i+1, err)
			}
		}
		if err := l.Allow(ctx, "ip:1", policy); !errors.Is(err, ErrRateLimitExceeded) {
			t.Fatalf("attempt 4: expected ErrRateLimitExceeded, got %v", err)
		}

		// Bucket refills after a minute but lockout still applies.
		clock.Advance(time.Minute)
		if err := l.Allow(ctx, "ip:1", policy); !errors.Is(err, ErrRateLimitExceeded) {
			t.Errorf("during lockout: expected ErrRateLimitExceeded, got %v", err)
		}

		clock.Advance(5 * time.Minute)
		if err := l.Allow(ctx, "ip:1", policy); err != nil {
			t.Errorf("after lockout: expected allowed, got %v", err)
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		l := NewMemoryRateLimiter()
		for range 3 {
			l.Allow(ctx, "ip:a", policy)
		}
		l.Allow(ctx, "ip:a", policy)

		if err := l.Allow(ctx, "ip:b", policy); err != nil {
			t.Errorf("other key: expected allowed, got %v", err)
		}
	})

	t.Run("zero policy disables limiting", func(t *testing.T) {
		l := NewMemoryRateLimiter()
		for range 100 {
			if err := l.Allow(ctx, "k", RateLimit{}); err != nil {
				t.Fatalf("expected allowed, got %v", err)
			}
		}
	})

	t.Run("Sweep drops idle unlocked keys", func(t *testing.T) {
		clock := newFakeClock()
		l := NewMemoryRateLimiter()
		l.now = clock.Now

		l.Allow(ctx, "idle", policy)
		for range 4 {
			l.Allow(ctx, "locked", policy)
		}

		clock.Advance(2 * time.Minute)
		if n := l.Sweep(time.Minute); n != 1 {
			t.Errorf("Sweep: expected 1 removed, got %d", n)
		}
	})

	t.Run("CheckHealth reports disabled", func(t *testing.T) {
		l := NewMemoryRateLimiter()
		if err := l.CheckHealth(ctx); !errors.Is(err, ErrDisabled) {
			t.Errorf("expected ErrDisabled, got %v", err)
		}
	})
}
