package cache

import (
	"context"
	"errors"
	"time"

	"custody-core/pkg/logger"

	"go.uber.org/zap"
)

// MultiLevelCache 多级缓存 (L1: Memory, L2: Redis)
// L2 为空时退化为纯内存缓存
type MultiLevelCache struct {
	local  Cache
	remote Cache
}

func NewMultiLevelCache(local, remote Cache) *MultiLevelCache {
	return &MultiLevelCache{
		local:  local,
		remote: remote,
	}
}

// Set 同时写入 L1 和 L2，L1 的 TTL 取一半
func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := m.local.Set(ctx, key, value, ttl/2); err != nil {
		logger.Warn("[Cache] 写入 L1 失败", zap.String("key", key), zap.Error(err))
	}
	if m.remote == nil {
		return nil
	}
	return m.remote.Set(ctx, key, value, ttl)
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	// 1. 查 L1
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}
	if m.remote == nil {
		return ErrMiss
	}

	// 2. 查 L2，命中后回写 L1 (短 TTL)
	err := m.remote.Get(ctx, key, target)
	if err == nil {
		_ = m.local.Set(ctx, key, target, time.Minute)
		return nil
	}
	if !errors.Is(err, ErrMiss) {
		logger.Warn("[Cache] 读取 L2 失败", zap.String("key", key), zap.Error(err))
	}
	return ErrMiss
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	if m.remote == nil {
		return nil
	}
	return m.remote.Delete(ctx, key)
}
