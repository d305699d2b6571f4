package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisRateLimiter, *miniredis.Miniredis, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRedisRateLimiter(client)
	limiter.now = func() time.Time { return now }
	return limiter, mr, &now
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		allowed int
	}{
		{"per minute", []Rule{{Limit: 5, Window: time.Minute}}, 5},
		{"tightest rule wins", []Rule{{Limit: 10, Window: time.Minute}, {Limit: 3, Window: time.Hour}}, 3},
		{"disabled rule ignored", []Rule{{Limit: 0, Window: time.Minute}, {Limit: 2, Window: time.Minute}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, _, _ := setupTestRedis(t)
			ctx := context.Background()

			for i := 0; i < tt.allowed; i++ {
				ok, err := limiter.Allow(ctx, "ip:10.0.0.1", tt.rules...)
				require.NoError(t, err)
				assert.True(t, ok, "request %d should be allowed", i+1)
			}

			ok, err := limiter.Allow(ctx, "ip:10.0.0.1", tt.rules...)
			require.NoError(t, err)
			assert.False(t, ok, "request %d should be denied", tt.allowed+1)

			ok, err = limiter.Allow(ctx, "ip:10.0.0.2", tt.rules...)
			require.NoError(t, err)
			assert.True(t, ok, "other keys are unaffected")
		})
	}
}

func TestRedisRateLimiter_NoRulesAlwaysAllows(t *testing.T) {
	limiter, _, _ := setupTestRedis(t)
	for i := 0; i < 20; i++ {
		ok, err := limiter.Allow(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestRedisRateLimiter_WindowSlides(t *testing.T) {
	limiter, _, now := setupTestRedis(t)
	ctx := context.Background()
	rule := Rule{Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "k", rule)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	// Same timestamp must still count as distinct requests.
	used, err := limiter.Used(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, used)

	*now = now.Add(30 * time.Second)
	ok, err := limiter.Allow(ctx, "k", rule)
	require.NoError(t, err)
	assert.False(t, ok)

	*now = now.Add(31 * time.Second)
	used, err = limiter.Used(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, used, "only the denied request is still inside the window")

	ok, err = limiter.Allow(ctx, "k", rule)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	limiter, mr, _ := setupTestRedis(t)
	ctx := context.Background()
	rule := Rule{Limit: 1, Window: time.Minute}

	_, err := limiter.Allow(ctx, "k", rule, Rule{Limit: 5, Window: time.Hour})
	require.NoError(t, err)
	_, err = limiter.Allow(ctx, "other", rule)
	require.NoError(t, err)

	require.NoError(t, limiter.Reset(ctx, "k"))
	assert.False(t, mr.Exists(keyPrefix+":k:1m0s"))
	assert.False(t, mr.Exists(keyPrefix+":k:1h0m0s"))
	assert.True(t, mr.Exists(keyPrefix+":other:1m0s"))

	ok, err := limiter.Allow(ctx, "k", rule)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRateLimiter_RedisDown(t *testing.T) {
	limiter, mr, _ := setupTestRedis(t)
	mr.Close()

	_, err := limiter.Allow(context.Background(), "k", Rule{Limit: 1, Window: time.Minute})
	assert.Error(t, err)
}
