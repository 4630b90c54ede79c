package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/datahub-healthcheck/pkg/database"
	"github.com/redis/go-redis/v9"
)

// RateLimiter limits how often runs can be triggered, using a sliding window log in Redis
type RateLimiter struct {
	redis  *database.Redis
	limit  int
	window time.Duration
}

// Decision is the outcome of a rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// NewRateLimiter creates a new rate limiter allowing limit requests per window
func NewRateLimiter(redis *database.Redis, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redis, limit: limit, window: window}
}

// Allow records a request for key if it fits in the window
func (r *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	windowStart := now.Add(-r.window)
	redisKey := fmt.Sprintf("healthcheck:ratelimit:%s", key)

	if err := r.redis.Client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", windowStart.UnixNano())).Err(); err != nil {
		return Decision{}, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := r.redis.Client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count entries: %w", err)
	}

	decision := Decision{Limit: r.limit}

	if count >= int64(r.limit) {
		oldest, err := r.redis.Client.ZRangeWithScores(ctx, redisKey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.Unix(0, int64(oldest[0].Score))
			decision.RetryAfter = (r.window - now.Sub(oldestTime)).Round(time.Second)
		}
		return decision, nil
	}

	err = r.redis.Client.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	}).Err()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to add entry: %w", err)
	}

	// expiry is housekeeping only
	_ = r.redis.Client.Expire(ctx, redisKey, r.window+time.Minute).Err()

	decision.Allowed = true
	decision.Remaining = r.limit - int(count) - 1
	return decision, nil
}
