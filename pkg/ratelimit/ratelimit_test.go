package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_ConsumesUpToCapacity(t *testing.T) {
	bucket := NewTokenBucket(3, 1)

	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.True(t, bucket.Allow())
	assert.False(t, bucket.Allow(), "bucket should be empty")
}

func TestTokenBucket_Refills(t *testing.T) {
	bucket := NewTokenBucket(2, 2)

	assert.True(t, bucket.AllowN(2))
	assert.False(t, bucket.Allow())

	time.Sleep(1100 * time.Millisecond)

	// 1초 경과 후 2개 리필
	assert.True(t, bucket.AllowN(2))
}

func TestTokenBucket_CapsAtCapacity(t *testing.T) {
	bucket := NewTokenBucket(2, 100)

	time.Sleep(1100 * time.Millisecond)

	assert.True(t, bucket.AllowN(2))
	assert.False(t, bucket.Allow(), "refill must not exceed capacity")
}

func TestRateLimiter_IsolatesKeys(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	assert.True(t, limiter.Allow("user-a"))
	assert.False(t, limiter.Allow("user-a"))

	// 다른 키는 독립적인 버킷
	assert.True(t, limiter.Allow("user-b"))
}

func TestRateLimiter_Reset(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	assert.True(t, limiter.Allow("user-a"))
	assert.False(t, limiter.Allow("user-a"))

	limiter.Reset("user-a")
	assert.True(t, limiter.Allow("user-a"))
}
