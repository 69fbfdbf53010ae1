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

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisRateLimiter_AllowsWithinLimit(t *testing.T) {
	client := setupRedis(t)
	defer client.Close()

	limiter := NewRedisRateLimiter(client, "test:")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "user-a", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i)
	}

	allowed, err := limiter.Allow(ctx, "user-a", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed, "6th request should be rejected")
}

func TestRedisRateLimiter_IsolatesKeys(t *testing.T) {
	client := setupRedis(t)
	defer client.Close()

	limiter := NewRedisRateLimiter(client, "test:")
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "user-a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "user-a", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = limiter.Allow(ctx, "user-b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "different key has its own bucket")
}

func TestRedisRateLimiter_AllowWithInfo(t *testing.T) {
	client := setupRedis(t)
	defer client.Close()

	limiter := NewRedisRateLimiter(client, "test:")
	ctx := context.Background()

	allowed, info, err := limiter.AllowWithInfo(ctx, "user-a", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	require.NotNil(t, info)
	assert.Equal(t, 10, info.Limit)
	assert.Equal(t, 9, info.Remaining)
	assert.False(t, info.ResetTime.IsZero())
}

func TestRedisRateLimiter_Reset(t *testing.T) {
	client := setupRedis(t)
	defer client.Close()

	limiter := NewRedisRateLimiter(client, "test:")
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "user-a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, limiter.Reset(ctx, "user-a"))

	allowed, err = limiter.Allow(ctx, "user-a", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed, "reset should refill the bucket")
}
