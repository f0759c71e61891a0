package kv

import (
	"context"
	"sync"
	"time"

	"github.com/yeisme/dropvault/pkg/configs"
)

// MemoryKV 基于 sync.Map 的内存 KV 实现，单进程部署的默认缓存.
type MemoryKV struct {
	data sync.Map
	now  func() time.Time
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(_ context.Context, _ configs.KVConfig) (KVStore, error) {
	return &MemoryKV{now: time.Now}, nil
}

// Get 获取键的值，过期键被惰性删除.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	value, exists := m.data.Load(key)
	if !exists {
		return nil, notFound(key)
	}

	data, expired, err := decodeWithTTL(value.([]byte), m.now())
	if err != nil {
		return nil, err
	}

	if expired {
		m.data.CompareAndDelete(key, value)

		return nil, notFound(key)
	}

	return cloneBytes(data), nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := encodeWithTTL(cloneBytes(value), ttl, m.now())
	if err != nil {
		return err
	}

	m.data.Store(key, data)

	return nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.data.Delete(key)

	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.Get(ctx, key)

	return err == nil, nil
}

// Keys 获取匹配的键.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)
	now := m.now()

	m.data.Range(func(key, value any) bool {
		k, ok := key.(string)
		if !ok || !matchKey(pattern, k) {
			return true
		}

		if _, expired, err := decodeWithTTL(value.([]byte), now); err == nil && !expired {
			keys = append(keys, k)
		}

		return true
	})

	return keys, nil
}

// Close 关闭存储（内存实现无需操作）.
func (m *MemoryKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
