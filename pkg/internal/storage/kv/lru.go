package kv

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yeisme/dropvault/pkg/configs"
)

// LRUKV 容量受限的进程内 KV，超出容量时淘汰最久未使用的键.
// expirable.LRU 只有全局 TTL，逐键 TTL 借助值包装实现.
type LRUKV struct {
	cache *expirable.LRU[string, []byte]
}

// NewLRUKV 创建 LRU KV 实例.
func NewLRUKV(_ context.Context, cfg configs.KVConfig) (KVStore, error) {
	size := cfg.LRU.Size
	if size <= 0 {
		size = 1
	}

	ttl := time.Duration(cfg.LRU.DefaultTTL) * time.Second

	return &LRUKV{cache: expirable.NewLRU[string, []byte](size, nil, ttl)}, nil
}

// Get 获取键的值.
func (l *LRUKV) Get(_ context.Context, key string) ([]byte, error) {
	raw, ok := l.cache.Get(key)
	if !ok {
		return nil, notFound(key)
	}

	data, expired, err := decodeWithTTL(raw, time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		l.cache.Remove(key)

		return nil, notFound(key)
	}

	return cloneBytes(data), nil
}

// Set 设置键的值.
func (l *LRUKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := encodeWithTTL(cloneBytes(value), ttl, time.Now())
	if err != nil {
		return err
	}

	l.cache.Add(key, data)

	return nil
}

// Delete 删除键.
func (l *LRUKV) Delete(_ context.Context, key string) error {
	l.cache.Remove(key)

	return nil
}

// Exists 检查键是否存在.
func (l *LRUKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := l.Get(ctx, key)

	return err == nil, nil
}

// Keys 获取匹配的键，按从旧到新排列.
func (l *LRUKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	for _, k := range l.cache.Keys() {
		if matchKey(pattern, k) {
			keys = append(keys, k)
		}
	}

	return keys, nil
}

// Len 返回当前缓存的键数量.
func (l *LRUKV) Len() int {
	return l.cache.Len()
}

// Close 清空缓存.
func (l *LRUKV) Close() error {
	l.cache.Purge()

	return nil
}

func init() {
	RegisterKVFactory(KVTypeLRU, NewLRUKV)
}
