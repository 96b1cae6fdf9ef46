//go:build integration

package cohort_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"kanon/internal/cohort"
)

// Run with: go test -tags=integration -timeout 120s ./internal/cohort/...
func TestRedisCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(connStr)
	require.NoError(t, err)
	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	cache := cohort.NewRedisCache(client)
	now := time.Now().UTC()

	t.Run("miss on unknown hash", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, "unknown", now)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		result := cohort.CheckResult{
			CriteriaHash:   "abc123",
			CohortSize:     120,
			KMinThreshold:  50,
			MeetsThreshold: true,
			ComputedAt:     now,
			ExpiresAt:      now.Add(time.Hour),
		}
		require.NoError(t, cache.Set(ctx, result))

		got, ok, err := cache.Get(ctx, "abc123", now)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, result.CohortSize, got.CohortSize)
		require.True(t, got.MeetsThreshold)
	})

	t.Run("expired entry is not served", func(t *testing.T) {
		result := cohort.CheckResult{
			CriteriaHash:  "short-lived",
			CohortSize:    80,
			KMinThreshold: 50,
			ComputedAt:    now,
			ExpiresAt:     now.Add(time.Hour),
		}
		require.NoError(t, cache.Set(ctx, result))

		// A reader whose clock sits past ExpiresAt must see a miss even
		// while the Redis key is still alive.
		_, ok, err := cache.Get(ctx, "short-lived", now.Add(2*time.Hour))
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("set with past expiry is a no-op", func(t *testing.T) {
		result := cohort.CheckResult{
			CriteriaHash: "already-expired",
			CohortSize:   10,
			ExpiresAt:    now.Add(-time.Minute),
		}
		require.NoError(t, cache.Set(ctx, result))

		_, ok, err := cache.Get(ctx, "already-expired", now)
		require.NoError(t, err)
		require.False(t, ok)
	})
}
