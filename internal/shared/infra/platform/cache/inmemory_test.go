package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type entry struct {
	Name string `json:"name"`
}

func TestInMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()

	var got entry
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", entry{Name: "ada"}, 0))
	hit, err = c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "ada", got.Name)

	require.NoError(t, c.Delete(ctx, "k"))
	hit, _ = c.Get(ctx, "k", &got)
	assert.False(t, hit)
}

func TestInMemoryCache_ExpiredIsMiss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(time.Millisecond, time.Hour)
	defer c.Stop()

	require.NoError(t, c.Set(ctx, "k", entry{Name: "ada"}, 0))
	time.Sleep(5 * time.Millisecond)

	var got entry
	hit, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestAsyncCacheSet_NilCacheIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		AsyncCacheSet(context.Background(), nil, "k", entry{}, 1, zap.NewNop())
		AsyncCacheDelete(context.Background(), nil, "k", zap.NewNop())
	})
}

func TestAsyncCacheSet_EventuallyStored(t *testing.T) {
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()

	AsyncCacheSet(context.Background(), c, "k", entry{Name: "ada"}, 0, zap.NewNop())

	assert.Eventually(t, func() bool {
		var got entry
		hit, _ := c.Get(context.Background(), "k", &got)
		return hit && got.Name == "ada"
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncCacheSet_SurvivesCancelledRequest(t *testing.T) {
	c := NewInMemoryCache(time.Minute, time.Minute)
	defer c.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	AsyncCacheSet(ctx, c, "k", entry{Name: "ada"}, 0, zap.NewNop())

	assert.Eventually(t, func() bool {
		var got entry
		hit, _ := c.Get(context.Background(), "k", &got)
		return hit
	}, time.Second, 5*time.Millisecond)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ledger:audit:abc", Key("ledger", "audit", "abc"))
}
