package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "relaygate:ratelimit"

// RedisRateLimiter keeps one sorted set per key and window, scored by request time.
type RedisRateLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.UniversalClient) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		now:    time.Now,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string, rules ...Rule) (bool, error) {
	now := l.now()

	for _, rule := range rules {
		if rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}

		allowed, err := l.checkWindow(ctx, key, rule, now)
		if err != nil {
			return false, err
		}

		if !allowed {
			return false, nil
		}
	}

	return true, nil
}

// checkWindow counts the request even when it is denied, so a client that
// keeps hammering stays throttled.
func (l *RedisRateLimiter) checkWindow(ctx context.Context, key string, rule Rule, now time.Time) (bool, error) {
	redisKey := l.getKey(key, rule.Window)
	windowStart := now.Add(-rule.Window).UnixNano()
	nowNano := now.UnixNano()

	pipe := l.client.TxPipeline()

	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	zcard := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(nowNano), Member: uuid.NewString()})
	pipe.Expire(ctx, redisKey, rule.Window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	return zcard.Val() < int64(rule.Limit), nil
}

func (l *RedisRateLimiter) Used(ctx context.Context, key string, window time.Duration) (int64, error) {
	redisKey := l.getKey(key, window)
	windowStart := l.now().Add(-window).UnixNano()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	zcard := pipe.ZCard(ctx, redisKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to count requests: %w", err)
	}

	return zcard.Val(), nil
}

func (l *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, key)

	iter := l.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := l.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	return nil
}

func (l *RedisRateLimiter) getKey(identifier string, window time.Duration) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, identifier, window.String())
}
