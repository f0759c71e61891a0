// Package cache 提供基于键值存储的泛型缓存实现.
//
// 值使用 sonic 序列化，键统一加上命名空间前缀，GetOrSet 对同一键的并发回源只执行一次.
//
// 基本用法:
//
//	c := cache.NewCache(store, "dv.loc.")
//
//	rec, err := cache.GetOrSet(ctx, c, name, func() (Entry, error) {
//	    return loadFromDB(name)
//	}, 5*time.Minute)
//
// 缓存未命中返回 ErrMiss，可用 errors.Is 判断.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/dropvault/pkg/internal/storage/kv"
)

// ErrMiss 缓存未命中.
var ErrMiss = errors.New("cache: miss")

// Cache 基于KV存储的缓存实现.
type Cache struct {
	kvStore kv.KVStore
	prefix  string
	group   singleflight.Group
}

// NewCache 创建一个新的缓存实例，prefix 作为全部键的命名空间.
func NewCache(kvStore kv.KVStore, prefix string) *Cache {
	return &Cache{kvStore: kvStore, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get 泛型获取缓存值.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var zero T

	data, err := c.kvStore.Get(ctx, c.key(key))
	if err != nil {
		if errors.Is(err, kv.ErrKeyNotFound) {
			return zero, ErrMiss
		}

		return zero, err
	}

	var value T
	if err := sonic.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return value, nil
}

// Set 泛型设置缓存值.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return c.kvStore.Set(ctx, c.key(key), data, ttl)
}

// Delete 删除缓存键.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.kvStore.Delete(ctx, c.key(key))
}

// Exists 检查缓存键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.kvStore.Exists(ctx, c.key(key))
}

// GetOrSet 获取缓存值，未命中时调用 getter 回源并写回缓存.
// 写回失败不影响返回值；getter 的错误原样返回且不会被缓存.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, getter func() (T, error), ttl time.Duration) (T, error) {
	if value, err := Get[T](ctx, c, key); err == nil {
		return value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		value, err := getter()
		if err != nil {
			return value, err
		}

		_ = Set(ctx, c, key, value, ttl)

		return value, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	return v.(T), nil
}

// Clear 删除当前命名空间下的全部键.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.kvStore.Keys(ctx, c.prefix+"*")
	if err != nil {
		return err
	}

	for _, key := range keys {
		if delErr := c.kvStore.Delete(ctx, key); delErr != nil {
			return delErr
		}
	}

	return nil
}
