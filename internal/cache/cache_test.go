package cache

import (
	"context"
	"testing"
	"time"

	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := c.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, c.Clear(ctx))
	_, err = c.Get(ctx, "gen")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	type view struct {
		Total int `json:"total"`
	}
	require.NoError(t, SetJSON(ctx, c, "view", view{Total: 3}, 0))

	var got view
	require.NoError(t, GetJSON(ctx, c, "view", &got))
	assert.Equal(t, 3, got.Total)
}

func TestNew_FallsBackToMemory(t *testing.T) {
	c := New(context.Background(), &config.CacheConfig{Mode: "memory"}, zap.NewNop())
	_, ok := c.(*InMemoryCache)
	assert.True(t, ok)
}
