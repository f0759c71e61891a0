package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/dropvault/pkg/configs"
)

// GroupcacheKV 基于 Groupcache 的 KV 实现.
// groupcache 不支持删除，Get 先查本地 map，已删除的键不会从 group 的热缓存中返回.
type GroupcacheKV struct {
	cache *groupcache.Group
	peers *groupcache.HTTPPool
	data  map[string][]byte
	mu    sync.RWMutex
}

// groupcacheGetter 实现 groupcache.Getter 接口.
type groupcacheGetter struct {
	kv *GroupcacheKV
}

func (g *groupcacheGetter) Get(_ context.Context, key string, dest groupcache.Sink) error {
	g.kv.mu.RLock()
	value, exists := g.kv.data[key]
	g.kv.mu.RUnlock()

	if !exists {
		return notFound(key)
	}

	if err := dest.SetBytes(value); err != nil {
		return fmt.Errorf("failed to set bytes to sink: %w", err)
	}

	return nil
}

// NewGroupcacheKV 创建 Groupcache KV 实例，同名 group 在进程内只能创建一次.
func NewGroupcacheKV(_ context.Context, cfg configs.KVConfig) (KVStore, error) {
	gc := cfg.Groupcache

	if groupcache.GetGroup(gc.Name) != nil {
		return nil, fmt.Errorf("groupcache group %q already registered", gc.Name)
	}

	kv := &GroupcacheKV{data: make(map[string][]byte)}
	kv.cache = groupcache.NewGroup(gc.Name, gc.CacheBytes, &groupcacheGetter{kv: kv})

	// 如果有对等节点，设置 HTTP 池
	if len(gc.Peers) > 0 {
		kv.peers = groupcache.NewHTTPPoolOpts(gc.Self, &groupcache.HTTPPoolOptions{})
		kv.peers.Set(gc.Peers...)
	}

	return kv, nil
}

// Get 获取键的值.
func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	g.mu.RLock()
	_, local := g.data[key]
	g.mu.RUnlock()

	if !local {
		return nil, notFound(key)
	}

	var raw []byte
	if err := g.cache.Get(ctx, key, groupcache.AllocatingByteSliceSink(&raw)); err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	data, expired, err := decodeWithTTL(raw, time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		_ = g.Delete(ctx, key)

		return nil, notFound(key)
	}

	return cloneBytes(data), nil
}

// Set 设置键的值；groupcache 热缓存中的旧值不会被替换，因此同一键应只写入不可变的值.
func (g *GroupcacheKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := encodeWithTTL(cloneBytes(value), ttl, time.Now())
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.data[key] = data
	g.mu.Unlock()

	return nil
}

// Delete 删除键.
func (g *GroupcacheKV) Delete(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.data, key)
	g.mu.Unlock()

	return nil
}

// Exists 检查键是否存在.
func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.Get(ctx, key)

	return err == nil, nil
}

// Keys 获取匹配的键.
func (g *GroupcacheKV) Keys(_ context.Context, pattern string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	keys := make([]string, 0, len(g.data))
	for key := range g.data {
		if matchKey(pattern, key) {
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// Close 关闭缓存.
func (g *GroupcacheKV) Close() error {
	// Groupcache 没有显式的关闭方法
	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}
