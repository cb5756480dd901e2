package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotHeld 锁已过期或被其他实例持有
var ErrNotHeld = errors.New("lock: not held")

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// Acquire 尝试获取锁，返回 (是否成功, error)
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release 只释放自己持有的锁
	Release(ctx context.Context, key string) error
}

// 值等于自己的 token 时才删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock 基于 SET NX + Lua 校验归属的实现
// 每个实例一个 token，多进程之间互不误删
type RedisLock struct {
	client redis.UniversalClient
	token  string
}

func NewRedisLock(client redis.UniversalClient) *RedisLock {
	return &RedisLock{client: client, token: uuid.NewString()}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, "lock:"+key, l.token, ttl).Result()
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{"lock:" + key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// WithLock 拿到锁才执行 fn，拿不到返回 (false, nil)
func WithLock(ctx context.Context, l DistributedLock, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	ok, err := l.Acquire(ctx, key, ttl)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		// 用独立 context，避免调用方 ctx 取消后锁残留到 TTL
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = l.Release(releaseCtx, key)
	}()
	return true, fn(ctx)
}
