// redis.go -- go-redis client and Redis-backed rate limiter.
//
// Redis is optional. When configured, rate limit counters are shared by every
// instance behind the same Redis; sessions never go here.
package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL, connects, and pings.
// Call once at startup from main.go; the returned client is safe for concurrent use.
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

// RedisRateLimiter implements fixed-window rate limiting with lockout in Redis.
type RedisRateLimiter struct {
	rdb *redis.Client
}

// NewRedisRateLimiter wraps a shared Redis client.
func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb}
}

// allowScript counts one attempt and applies lockout atomically.
// Returns 1 if allowed, 0 if locked out.
// KEYS[1] = counter key, KEYS[2] = lock key.
// ARGV[1] = max attempts, ARGV[2] = window ms, ARGV[3] = lockout ms (0 = no lock key).
var allowScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
    return 0
end
local n = redis.call('INCR', KEYS[1])
if n == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
if n > tonumber(ARGV[1]) then
    if tonumber(ARGV[3]) > 0 then
        redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
        redis.call('DEL', KEYS[1])
    end
    return 0
end
return 1
`)

// Allow records an attempt for key under policy.
// Returns ErrRateLimitExceeded when locked out, or a wrapped Redis error.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, policy RateLimit) error {
	if policy.MaxAttempts <= 0 {
		return nil
	}
	ok, err := allowScript.Run(ctx, l.rdb,
		[]string{"ratelimit:" + key, "ratelimit:lock:" + key},
		policy.MaxAttempts, policy.Window.Milliseconds(), policy.LockoutTTL.Milliseconds(),
	).Int()
	if err != nil {
		return fmt.Errorf("running rate limit script: %w", err)
	}
	if ok == 0 {
		return ErrRateLimitExceeded
	}
	return nil
}

// CheckHealth pings Redis.
func (l *RedisRateLimiter) CheckHealth(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}
