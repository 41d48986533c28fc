package redis

import (
	"context"
	"fmt"

	"lms-ai-backend/internal/domain/model"
)

// RateLimiter counts job submissions per scope key within a trailing window.
// The check is a single INCR (check-and-increment), so concurrent submits
// for the same scope can never over-admit.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow reports whether one more submission fits the policy. An unlimited
// policy (zero quota or zero window) admits without touching the counter, so
// clearing a limit takes effect immediately and never retroactively denies
// acquisitions already counted.
func (r *RateLimiter) Allow(ctx context.Context, scopeKey string, policy model.RateLimitPolicy) (bool, error) {
	if policy.Unlimited() {
		return true, nil
	}

	count, err := r.client.Incr(ctx, scopeKey)
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, scopeKey, policy.Window()); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	return count <= int64(policy.Requests), nil
}

// Reset clears the counter for a scope (administrative override).
func (r *RateLimiter) Reset(ctx context.Context, scopeKey string) error {
	return r.client.Del(ctx, scopeKey)
}
