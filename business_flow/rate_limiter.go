package businessflow

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/config"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces the per-user outbound message quota. Every attempted
// send consumes quota regardless of delivery outcome.
type RateLimiter interface {
	// Allow consumes one unit of quota for the user and returns
	// ErrRateLimitExceeded when the window is exhausted.
	Allow(ctx context.Context, user *models.User) error
}

// RedisRateLimiter counts sends in fixed redis windows. Unavailable redis
// denies the send rather than letting traffic through uncounted.
type RedisRateLimiter struct {
	rc          *redis.Client
	cacheConfig *config.CacheConfig
	limitConfig *config.RateLimitConfig
}

// NewRedisRateLimiter creates a redis-backed rate limiter
func NewRedisRateLimiter(rc *redis.Client, cacheCfg *config.CacheConfig, limitCfg *config.RateLimitConfig) *RedisRateLimiter {
	return &RedisRateLimiter{
		rc:          rc,
		cacheConfig: cacheCfg,
		limitConfig: limitCfg,
	}
}

// Allow consumes one unit of quota for the user
func (r *RedisRateLimiter) Allow(ctx context.Context, user *models.User) error {
	if user != nil && slices.Contains(r.limitConfig.ExemptRoles, user.Role) {
		return nil
	}
	if user == nil {
		return NewBusinessError("RATE_LIMIT_NO_USER", "Cannot rate limit without a user", ErrUserNotFound)
	}
	if r.rc == nil {
		return NewBusinessError("RATE_LIMIT_UNAVAILABLE", "Rate limit backend unavailable", ErrRateLimitExceeded)
	}

	window := r.limitConfig.Window
	windowStart := time.Now().UTC().Truncate(window).Unix()
	key := fmt.Sprintf("%s:rate_limit:user:%d:%d", r.cacheConfig.KeyPrefix, user.ID, windowStart)

	count, err := r.rc.Incr(ctx, key).Result()
	if err != nil {
		// Fail closed: an uncountable send is a denied send.
		return NewBusinessError("RATE_LIMIT_UNAVAILABLE", "Rate limit backend unavailable", err)
	}
	if count == 1 {
		if err := r.rc.Expire(ctx, key, window).Err(); err != nil {
			return NewBusinessError("RATE_LIMIT_UNAVAILABLE", "Rate limit backend unavailable", err)
		}
	}
	if count > r.limitConfig.MaxPerWindow {
		return NewBusinessError("RATE_LIMIT_EXCEEDED", "Message rate limit exceeded", ErrRateLimitExceeded)
	}
	return nil
}

// MockRateLimiter implements RateLimiter for testing
type MockRateLimiter struct {
	Calls  int
	Limit  int
	Exempt []string
}

// Allow counts calls and denies once Limit is crossed (0 means unlimited)
func (m *MockRateLimiter) Allow(_ context.Context, user *models.User) error {
	if user != nil && slices.Contains(m.Exempt, user.Role) {
		return nil
	}
	m.Calls++
	if m.Limit > 0 && m.Calls > m.Limit {
		return NewBusinessError("RATE_LIMIT_EXCEEDED", "Message rate limit exceeded", ErrRateLimitExceeded)
	}
	return nil
}
