package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLock_Exclusive(t *testing.T) {
	ctx := context.Background()
	_, rdb := newClient(t)

	a, b := NewRedisLock(rdb), NewRedisLock(rdb)

	ok, err := a.Acquire(ctx, "task:scanner", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "task:scanner", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "第二个实例不应拿到锁")

	// b 不能释放 a 的锁
	assert.ErrorIs(t, b.Release(ctx, "task:scanner"), ErrNotHeld)

	require.NoError(t, a.Release(ctx, "task:scanner"))
	ok, err = b.Acquire(ctx, "task:scanner", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_Expiry(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newClient(t)
	a, b := NewRedisLock(rdb), NewRedisLock(rdb)

	ok, _ := a.Acquire(ctx, "k", time.Second)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err := b.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWithLock(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newClient(t)
	l := NewRedisLock(rdb)

	ran, err := WithLock(ctx, l, "job", time.Minute, func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:job"))
		return errors.New("boom")
	})
	assert.True(t, ran)
	assert.EqualError(t, err, "boom")
	assert.False(t, mr.Exists("lock:job"), "执行完应释放")

	other := NewRedisLock(rdb)
	ok, _ := other.Acquire(ctx, "job", time.Minute)
	require.True(t, ok)

	ran, err = WithLock(ctx, l, "job", time.Minute, func(ctx context.Context) error {
		t.Fatal("不应执行")
		return nil
	})
	assert.False(t, ran)
	assert.NoError(t, err)
}
