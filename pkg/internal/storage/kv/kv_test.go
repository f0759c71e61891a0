package kv_test

import (
	"context"
	crand "crypto/rand"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/storage/kv"
)

var groupSeq atomic.Int64

func kvConfig() configs.KVConfig {
	return configs.KVConfig{
		LRU: configs.LRUKVConfig{Size: 128},
		Groupcache: configs.GroupcacheKVConfig{
			Name:       fmt.Sprintf("test-groupcache-%d", groupSeq.Add(1)),
			CacheBytes: 1 << 20,
		},
		Redis: configs.RedisKVConfig{Addr: envOr("REDIS_ADDR", "127.0.0.1:6379")},
		NATS:  configs.NATSKVConfig{URL: envOr("NATS_URL", "nats://127.0.0.1:4222"), Bucket: "dropvault-test-kv"},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func openStore(t testing.TB, typ kv.KVType) kv.KVStore {
	t.Helper()

	switch typ {
	case kv.KVTypeRedis:
		if os.Getenv("ENABLE_REDIS_TEST") == "" {
			t.Skip("set ENABLE_REDIS_TEST=1 to enable")
		}
	case kv.KVTypeNATS:
		if os.Getenv("ENABLE_NATS_TEST") == "" {
			t.Skip("set ENABLE_NATS_TEST=1 to enable")
		}
	}

	store, err := kv.NewKVStore(context.Background(), typ, kvConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStores(t *testing.T) {
	for _, typ := range []kv.KVType{kv.KVTypeMemory, kv.KVTypeLRU, kv.KVTypeGroupcache, kv.KVTypeRedis, kv.KVTypeNATS} {
		t.Run(string(typ), func(t *testing.T) {
			store := openStore(t, typ)
			exerciseStore(t, store)
		})
	}
}

func exerciseStore(t *testing.T, store kv.KVStore) {
	t.Helper()

	ctx := context.Background()
	key := fmt.Sprintf("dv.loc.%d.bin", time.Now().UnixNano())

	_, err := store.Get(ctx, key)
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, key, []byte("value"), 0))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := store.Keys(ctx, "dv.loc.*")
	require.NoError(t, err)
	assert.Contains(t, keys, key)

	require.NoError(t, store.Delete(ctx, key))
	// 删除不存在的键不报错
	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Get(ctx, key)
	require.ErrorIs(t, err, kv.ErrKeyNotFound)

	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTTLExpiry(t *testing.T) {
	for _, typ := range []kv.KVType{kv.KVTypeMemory, kv.KVTypeLRU, kv.KVTypeGroupcache} {
		t.Run(string(typ), func(t *testing.T) {
			ctx := context.Background()
			store := openStore(t, typ)

			require.NoError(t, store.Set(ctx, "short", []byte("v"), 20*time.Millisecond))
			require.NoError(t, store.Set(ctx, "forever", []byte("v"), 0))

			_, err := store.Get(ctx, "short")
			require.NoError(t, err)

			time.Sleep(40 * time.Millisecond)

			_, err = store.Get(ctx, "short")
			require.ErrorIs(t, err, kv.ErrKeyNotFound)

			_, err = store.Get(ctx, "forever")
			require.NoError(t, err)
		})
	}
}

func TestLRUEvicts(t *testing.T) {
	ctx := context.Background()
	cfg := kvConfig()
	cfg.LRU.Size = 2

	store, err := kv.NewKVStore(ctx, kv.KVTypeLRU, cfg)
	require.NoError(t, err)

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, store.Set(ctx, k, []byte(k), 0))
	}

	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)

	keys, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, keys)
}

func TestGroupcacheDuplicateName(t *testing.T) {
	cfg := kvConfig()

	_, err := kv.NewKVStore(context.Background(), kv.KVTypeGroupcache, cfg)
	require.NoError(t, err)

	_, err = kv.NewKVStore(context.Background(), kv.KVTypeGroupcache, cfg)
	assert.Error(t, err)
}

func TestUnsupportedType(t *testing.T) {
	_, err := kv.Open(context.Background(), configs.KVConfig{Type: "memcached"})
	assert.Error(t, err)

	assert.Contains(t, kv.GetRegisteredKVTypes(), kv.KVTypeLRU)
}

func BenchmarkMemoryKV(b *testing.B) {
	benchKV(b, "memory", openStore(b, kv.KVTypeMemory))
}

func BenchmarkLRUKV(b *testing.B) {
	benchKV(b, "lru", openStore(b, kv.KVTypeLRU))
}

func BenchmarkGroupcacheKV(b *testing.B) {
	benchKV(b, "groupcache", openStore(b, kv.KVTypeGroupcache))
}

// benchKV 执行 Set/Get/Delete 基准测试.
func benchKV(b *testing.B, name string, store kv.KVStore) {
	ctx := context.Background()
	payload := make([]byte, 1024)
	_, _ = crand.Read(payload)

	for _, ttl := range []time.Duration{0, 5 * time.Second} {
		b.Run(fmt.Sprintf("%s/ttl=%s", name, ttl), func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; b.Loop(); i++ {
				// 使用连字符以兼容 NATS KV 的键规则
				key := fmt.Sprintf("bench-%s-%d", name, i)
				if err := store.Set(ctx, key, payload, ttl); err != nil {
					b.Fatalf("set failed: %v", err)
				}

				if _, err := store.Get(ctx, key); err != nil {
					b.Fatalf("get failed: %v", err)
				}

				if err := store.Delete(ctx, key); err != nil {
					b.Fatalf("delete failed: %v", err)
				}
			}
		})
	}
}
