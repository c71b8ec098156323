package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisClient)(nil)
)

func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()

	seen, err := c.IsProcessed(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, c.MarkProcessed(ctx, "abc", time.Hour))
	seen, err = c.IsProcessed(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, seen)

	miss, err := c.GetSummary(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, c.SetSummary(ctx, "k", Summary{Summary: "s", KeyPoints: []string{"a"}, Model: "m"}, time.Hour))
	hit, err := c.GetSummary(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "s", hit.Summary)
	assert.Equal(t, []string{"a"}, hit.KeyPoints)

	require.NoError(t, c.ClearProcessed(ctx))
	seen, err = c.IsProcessed(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, seen)

	// summaries survive clearing seen markers
	hit, err = c.GetSummary(ctx, "k")
	require.NoError(t, err)
	assert.NotNil(t, hit)
}

func TestMemoryCache(t *testing.T) {
	exerciseCache(t, NewMemoryCache())
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.MarkProcessed(ctx, "x", time.Minute))
	seen, _ := c.IsProcessed(ctx, "x")
	assert.True(t, seen)

	now = now.Add(2 * time.Minute)
	seen, _ = c.IsProcessed(ctx, "x")
	assert.False(t, seen)
}

func TestRedisClient(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	c, err := NewRedisClient(context.Background(), url, "newsauto-test:")
	require.NoError(t, err)
	defer c.Close()

	exerciseCache(t, c)
}
