package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNew_DisabledWhenLimitIsZero(t *testing.T) {
	limiter, closeFn, err := New(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	require.Nil(t, limiter)
	require.NoError(t, closeFn())
}

func TestNew_InProcessWithoutRedis(t *testing.T) {
	limiter, closeFn, err := New(Config{Limit: 5})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	local, ok := limiter.(*rate.Limiter)
	require.True(t, ok)
	require.Equal(t, 5, local.Burst())
	require.InDelta(t, 5, float64(local.Limit()), 0.001)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Wait(ctx))
	}
}

func TestNewRedisLimiter_Validation(t *testing.T) {
	_, err := NewRedisLimiter(Config{Limit: 1})
	require.EqualError(t, err, "redis address is required")

	_, err = NewRedisLimiter(Config{Addr: "127.0.0.1:6379"})
	require.EqualError(t, err, "rate limit must be positive")
}

func TestWindowKey(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.Equal(t, "p:1704164645000", windowKey("p", start))
}
