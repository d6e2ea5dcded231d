package service

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedis connects to DB 15 of a local Redis and skips when none is running.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	opts, err := redis.ParseURL("redis://localhost:6379/15")
	require.NoError(t, err)

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available for testing")
	}
	client.FlushDB(context.Background())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRateLimiter_Basic(t *testing.T) {
	limiter := NewRateLimiter(newTestRedis(t))
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		key := issueLimitKey(42)
		limit := 3
		window := 10 * time.Second

		for i := 0; i < limit; i++ {
			allowed, _, _ := limiter.CheckLimit(ctx, key, limit, window)
			assert.True(t, allowed, "Request %d should be allowed", i+1)
		}

		allowed, resetAt, err := limiter.CheckLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed, "Request should be rate limited")
		assert.True(t, resetAt.After(time.Now()), "Reset time should be in future")
	})

	t.Run("sliding window behavior", func(t *testing.T) {
		key := staffLoginLimitKey("192.0.2.1")
		limit := 2
		window := 2 * time.Second

		allowed, _, _ := limiter.CheckLimit(ctx, key, limit, window)
		assert.True(t, allowed)
		allowed, _, _ = limiter.CheckLimit(ctx, key, limit, window)
		assert.True(t, allowed)

		allowed, _, _ = limiter.CheckLimit(ctx, key, limit, window)
		assert.False(t, allowed)

		time.Sleep(2100 * time.Millisecond)

		allowed, _, _ = limiter.CheckLimit(ctx, key, limit, window)
		assert.True(t, allowed)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		limit := 1
		window := 10 * time.Second

		allowed, _, _ := limiter.CheckLimit(ctx, issueLimitKey(1), limit, window)
		assert.True(t, allowed)
		allowed, _, _ = limiter.CheckLimit(ctx, issueLimitKey(1), limit, window)
		assert.False(t, allowed)

		allowed, _, _ = limiter.CheckLimit(ctx, issueLimitKey(2), limit, window)
		assert.True(t, allowed)
	})
}

func TestRateLimiter_FailsClosed(t *testing.T) {
	invalidClient := redis.NewClient(&redis.Options{
		Addr:        "localhost:9999",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer invalidClient.Close()

	limiter := NewRateLimiter(invalidClient)

	allowed, _, err := limiter.CheckLimit(context.Background(), "test:key", 1, time.Minute)
	require.Error(t, err, "Should report the Redis failure")
	require.False(t, allowed, "Should deny request on Redis failure")
}

func TestLimitKeys(t *testing.T) {
	assert.Equal(t, "link_issue:42", issueLimitKey(42))
	assert.Equal(t, "staff_login:203.0.113.9", staffLoginLimitKey("203.0.113.9"))
}
