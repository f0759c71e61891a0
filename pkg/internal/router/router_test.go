package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/cache"
	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/handle"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/router"
	"github.com/yeisme/dropvault/pkg/internal/service"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
	"github.com/yeisme/dropvault/pkg/internal/storage/db"
	"github.com/yeisme/dropvault/pkg/internal/storage/kv"
	"github.com/yeisme/dropvault/pkg/middleware"
)

type fixture struct {
	r      *gin.Engine
	client *db.Client
	local  *blob.Local
}

func newRouter(t *testing.T, mutate func(*configs.AppConfig)) *gin.Engine {
	t.Helper()

	return newFixture(t, mutate).r
}

func newFixture(t *testing.T, mutate func(*configs.AppConfig)) *fixture {
	t.Helper()

	gin.SetMode(gin.TestMode)

	ctx := context.Background()

	cfg := &configs.AppConfig{}
	cfg.Storage = configs.StorageConfig{
		Type:      configs.StorageLocal,
		APIPrefix: configs.DefaultAPIPrefix,
		Local: configs.LocalStorageConfig{
			Root:         t.TempDir(),
			PublicPrefix: configs.DefaultPublicPrefix,
		},
	}
	cfg.Lifecycle.TTLSeconds = 60

	if mutate != nil {
		mutate(cfg)
	}

	client, err := db.New(ctx, configs.DBConfig{
		Type:     configs.SQLite,
		DSN:      "file:" + filepath.Join(t.TempDir(), "files.db"),
		Database: "files",
		LogLevel: "silent",
	}, db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	repo := repository.NewFileRepository(client.GetDB())
	require.NoError(t, repo.Migrate(ctx))

	local, err := blob.NewLocal(cfg.Storage)
	require.NoError(t, err)

	store, err := kv.NewMemoryKV(ctx, configs.KVConfig{})
	require.NoError(t, err)

	lc := service.NewFileLifecycle(repo, local, service.ConfigFrom(cfg))

	r := gin.New()
	router.Register(r, handle.New(lc, handle.Options{}), cfg, router.Options{
		StatsCache:    cache.NewCache(store, middleware.ResponseCachePrefix),
		StatsCacheTTL: time.Minute,
	})

	return &fixture{r: r, client: client, local: local}
}

func TestRoutesRegistered(t *testing.T) {
	r := newRouter(t, nil)

	want := map[string]bool{
		"POST /api/upload":                     false,
		"GET /api/files/:token":                false,
		"GET /api/files/:token/download":       false,
		"DELETE /api/files/:token":             false,
		"GET /api/cleanup":                     false,
		"POST /api/cleanup":                    false,
		"POST /api/cleanup/purge":              false,
		"POST /api/cleanup/reconcile":          false,
		"GET /api/stats":                       false,
		"GET /api/file/:name":                  false,
		"GET /uploads/:name":                   false,
		"GET /health/db":                       false,
		"GET /health/blob":                     false,
		"GET /health/mq":                       false,
		"GET /scheduler/jobs":                  false,
		"POST /scheduler/jobs/:name/run":       false,
		"DELETE /scheduler/jobs/:name":         false,
		"GET /scheduler/queue/waiting":         false,
	}

	for _, ri := range r.Routes() {
		key := ri.Method + " " + ri.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}

		assert.NotEqual(t, "/swagger/*any", ri.Path, "swagger only in debug mode")
	}

	for route, found := range want {
		assert.True(t, found, route)
	}
}

func TestStatsResponseCache(t *testing.T) {
	r := newRouter(t, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w2.Code)
	assert.Equal(t, "HIT", w2.Header().Get("X-Cache"))
	assert.Equal(t, w.Body.String(), w2.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("If-None-Match", etag)

	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req)
	assert.Equal(t, http.StatusNotModified, w3.Code)
}

func TestUploadRateLimit(t *testing.T) {
	r := newRouter(t, func(cfg *configs.AppConfig) {
		cfg.RateLimit = configs.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 1, Key: "ip"}
	})

	// 第一个请求消耗令牌，因为不是 multipart 所以返回 400
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/upload", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/upload", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// 其它路由不受上传限流影响
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cleanup", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLocatorRouteBehindBreaker(t *testing.T) {
	f := newFixture(t, func(cfg *configs.AppConfig) {
		cfg.CircuitBreaker = configs.CircuitBreakerConfig{
			Enabled:           true,
			FailureRate:       0.5,
			MinRequests:       2,
			IntervalSeconds:   60,
			TimeoutSeconds:    60,
			MaxRequestsInHalf: 1,
		}
	})

	loc, err := f.local.Save(context.Background(), strings.NewReader("data"), 4, "x.bin")
	require.NoError(t, err)

	name, err := blob.NameFromLocator(loc)
	require.NoError(t, err)

	// 元数据库不可用时 locator 路由返回 500
	require.NoError(t, f.client.Close())

	get := func(path string) int {
		w := httptest.NewRecorder()
		f.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		return w.Code
	}

	for range 2 {
		assert.Equal(t, http.StatusInternalServerError, get(configs.DefaultAPIPrefix+"/"+name))
	}

	assert.Equal(t, http.StatusServiceUnavailable, get(configs.DefaultAPIPrefix+"/"+name))

	// 公共前缀不在 /api 分组下
	assert.Equal(t, http.StatusInternalServerError, get(configs.DefaultPublicPrefix+"/"+name))
}
