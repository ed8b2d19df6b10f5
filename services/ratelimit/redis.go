package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "rl:"

// RedisLimiter implements the sliding window on a Redis sorted set so the
// budget is shared across gateway instances. Scores are unix nanoseconds;
// members carry a nanosecond timestamp to stay unique under bursts.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed sliding-window limiter.
func NewRedisLimiter(client *redis.Client, cfg Config, logger *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// IsRateLimited trims expired entries, counts the survivors, and records the
// current call when under budget. A Redis failure admits the call and logs
// the degraded state.
func (l *RedisLimiter) IsRateLimited(ctx context.Context, key string) bool {
	redisKey := redisKeyPrefix + key
	now := l.now()
	cutoff := now.Add(-l.cfg.Window).UnixNano()

	if err := l.client.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%d", cutoff)).Err(); err != nil {
		l.logger.Warn("rate limiter degraded, admitting request", zap.Error(err))
		return false
	}

	count, err := l.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("rate limiter degraded, admitting request", zap.Error(err))
		return false
	}
	if count >= int64(l.cfg.Requests) {
		return true
	}

	member := fmt.Sprintf("%d", now.UnixNano())
	if err := l.client.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member}).Err(); err != nil {
		l.logger.Warn("rate limiter degraded, admitting request", zap.Error(err))
		return false
	}

	// Keep the set from lingering after a client goes quiet.
	if err := l.client.Expire(ctx, redisKey, l.cfg.Window+5*time.Second).Err(); err != nil {
		l.logger.Warn("failed to set rate limit key TTL", zap.Error(err))
	}

	return false
}
