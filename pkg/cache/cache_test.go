package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quote struct {
	Currency string  `json:"currency"`
	USD      float64 `json:"usd"`
}

func TestMemoryCache_CopySemantics(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	q := quote{Currency: "BTC", USD: 60000}
	require.NoError(t, c.Set(ctx, "k", q, time.Minute))
	q.USD = 1

	var got quote
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 60000.0, got.USD)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrMiss)
}

func TestMultiLevelCache_BackfillsL1(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	remote := NewRedisCache(rdb, "test:")
	local := NewMemoryCache(time.Minute, time.Minute)
	ml := NewMultiLevelCache(local, remote)

	// 只写入 L2，模拟另一个实例刷新的价格
	require.NoError(t, remote.Set(ctx, "price:ETH", quote{"ETH", 3000}, time.Minute))
	assert.True(t, mr.Exists("test:price:ETH"))

	var got quote
	require.NoError(t, ml.Get(ctx, "price:ETH", &got))
	assert.Equal(t, 3000.0, got.USD)

	// 删除 L2 后 L1 仍然命中
	mr.Del("test:price:ETH")
	got = quote{}
	require.NoError(t, ml.Get(ctx, "price:ETH", &got))
	assert.Equal(t, 3000.0, got.USD)

	assert.ErrorIs(t, ml.Get(ctx, "price:BTC", &got), ErrMiss)
}

func TestMultiLevelCache_LocalOnly(t *testing.T) {
	ctx := context.Background()
	ml := NewMultiLevelCache(NewMemoryCache(time.Minute, time.Minute), nil)

	require.NoError(t, ml.Set(ctx, "k", quote{"BTC", 1}, time.Minute))
	var got quote
	require.NoError(t, ml.Get(ctx, "k", &got))
	assert.Equal(t, "BTC", got.Currency)
}
