package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalLimiter(maxTokens, refillRate int) *TokenBucketLimiter {
	return NewTokenBucketLimiter(nil, Config{
		MaxTokens:      maxTokens,
		RefillRate:     refillRate,
		RefillInterval: time.Second,
	})
}

func TestLocalLimiterAllowsWithinBudget(t *testing.T) {
	limiter := newLocalLimiter(5, 1)

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(context.Background(), "client-a")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 4-i, result.Remaining)
	}
}

func TestLocalLimiterDeniesWhenExhausted(t *testing.T) {
	limiter := newLocalLimiter(2, 1)

	for i := 0; i < 2; i++ {
		result, err := limiter.Allow(context.Background(), "client-a")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Greater(t, result.RetryAfter, time.Duration(0))
}

func TestLocalLimiterIsolatesClients(t *testing.T) {
	limiter := newLocalLimiter(1, 1)

	result, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	result, err = limiter.Allow(context.Background(), "client-b")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestLocalLimiterRefills(t *testing.T) {
	limiter := NewTokenBucketLimiter(nil, Config{
		MaxTokens:      1,
		RefillRate:     100,
		RefillInterval: time.Millisecond,
	})

	result, err := limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(50 * time.Millisecond)

	result, err = limiter.Allow(context.Background(), "client-a")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestConfigDefaults(t *testing.T) {
	limiter := NewTokenBucketLimiter(nil, Config{})
	assert.Equal(t, DefaultConfig().MaxTokens, limiter.MaxTokens())
}
