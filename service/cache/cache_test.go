package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "stats:today:2025-01-15", map[string]int{"total_tests": 3}, time.Minute))
	require.NoError(t, c.Set(ctx, "stats:week:2025-01-13", map[string]int{"total_tests": 9}, 0))
	require.NoError(t, c.Set(ctx, "other", "x", 0))

	var got map[string]int
	hit, err := c.Get(ctx, "stats:today:2025-01-15", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, got["total_tests"])

	now = now.Add(2 * time.Minute)
	hit, err = c.Get(ctx, "stats:today:2025-01-15", &got)
	require.NoError(t, err)
	assert.False(t, hit, "过期后未命中")

	require.NoError(t, c.DeletePrefix(ctx, "stats:"))
	assert.Equal(t, 1, c.Len())
}

func TestNopCache(t *testing.T) {
	var c Cache = NopCache{}
	require.NoError(t, c.Set(context.Background(), "k", 1, time.Minute))
	hit, err := c.Get(context.Background(), "k", new(int))
	require.NoError(t, err)
	assert.False(t, hit)
}
