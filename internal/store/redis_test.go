package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- RedisRateLimiter ---

func TestRedisRateLimiter(t *testing.T) {
	requireRedis(t)
	ctx := context.Background()
	l := NewRedisRateLimiter(testRedis)

	cleanup := func(t *testing.T, key string) {
		t.Helper()
		t.Cleanup(func() {
			testRedis.Del(ctx, "ratelimit:"+key, "ratelimit:lock:"+key)
		})
	}

	t.Run("allows up to max then locks out", func(t *testing.T) {
		key := "test:lockout"
		cleanup(t, key)
		policy := RateLimit{MaxAttempts: 2, Window: time.Minute, LockoutTTL: time.Minute}

		for i := range 2 {
			if err := l.Allow(ctx, key, policy); err != nil {
				t.Fatalf("attempt %d: expected allowed, got %v", i+1, err)
			}
		}
		if err := l.Allow(ctx, key, policy); !errors.Is(err, ErrRateLimitExceeded) {
			t.Fatalf("attempt 3: expected ErrRateLimitExceeded, got %v", err)
		}

		ttl, err := testRedis.PTTL(ctx, "ratelimit:lock:"+key).Result()
		if err != nil {
			t.Fatalf("PTTL: %v", err)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("lock TTL: expected (0, 1m], got %v", ttl)
		}
		if err := l.Allow(ctx, key, policy); !errors.Is(err, ErrRateLimitExceeded) {
			t.Errorf("while locked: expected ErrRateLimitExceeded, got %v", err)
		}
	})

	t.Run("counter window expires", func(t *testing.T) {
		key := "test:window"
		cleanup(t, key)
		policy := RateLimit{MaxAttempts: 1, Window: 100 * time.Millisecond}

		if err := l.Allow(ctx, key, policy); err != nil {
			t.Fatalf("first attempt: %v", err)
		}
		if err := l.Allow(ctx, key, policy); !errors.Is(err, ErrRateLimitExceeded) {
			t.Fatalf("second attempt: expected ErrRateLimitExceeded, got %v", err)
		}
		time.Sleep(150 * time.Millisecond)
		if err := l.Allow(ctx, key, policy); err != nil {
			t.Errorf("after window: expected allowed, got %v", err)
		}
	})

	t.Run("CheckHealth pings", func(t *testing.T) {
		if err := l.CheckHealth(ctx); err != nil {
			t.Errorf("expected healthy, got %v", err)
		}
	})
}
