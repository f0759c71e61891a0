package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/cache"
	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/storage/kv"
	"github.com/yeisme/dropvault/pkg/metrics"
	"github.com/yeisme/dropvault/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORSMiddleware(configs.ServerConfig{Timeout: 30}))
	r.GET("/api/files/:token", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/files/abc", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)

	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/files/abc", nil)
	req.Header.Set("Origin", "https://example.com")

	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32

	r := gin.New()
	r.Use(middleware.CircuitBreakerMiddleware("test", configs.CircuitBreakerConfig{
		Enabled:           true,
		FailureRate:       0.5,
		MinRequests:       2,
		IntervalSeconds:   60,
		TimeoutSeconds:    60,
		MaxRequestsInHalf: 1,
	}))
	r.GET("/fail", func(c *gin.Context) {
		calls.Add(1)
		c.Status(http.StatusInternalServerError)
	})

	for range 2 {
		assert.Equal(t, http.StatusInternalServerError, serve(r, httptest.NewRequest(http.MethodGet, "/fail", nil)).Code)
	}

	w := serve(r, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.EqualValues(t, 2, calls.Load())
}

func TestCircuitBreakerDisabled(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CircuitBreakerMiddleware("test", configs.CircuitBreakerConfig{}))
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for range 5 {
		assert.Equal(t, http.StatusInternalServerError, serve(r, httptest.NewRequest(http.MethodGet, "/fail", nil)).Code)
	}
}

func TestPrometheusLabels(t *testing.T) {
	r := gin.New()
	r.Use(middleware.PrometheusMiddleware())
	r.GET("/api/files/:token", func(c *gin.Context) { c.Status(http.StatusOK) })

	matched := metrics.RequestCounter.WithLabelValues(http.MethodGet, "/api/files/:token", "200")
	unmatched := metrics.RequestCounter.WithLabelValues(http.MethodGet, "unmatched", "404")

	before, beforeMiss := testutil.ToFloat64(matched), testutil.ToFloat64(unmatched)

	serve(r, httptest.NewRequest(http.MethodGet, "/api/files/abc", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/api/files/def", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.InDelta(t, 2, testutil.ToFloat64(matched)-before, 0)
	assert.InDelta(t, 1, testutil.ToFloat64(unmatched)-beforeMiss, 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ActiveConnections), 0)
}

func TestGzipSkipsDownloads(t *testing.T) {
	r := gin.New()
	r.Use(middleware.GzipMiddleware(configs.DefaultAPIPrefix+"/", configs.DefaultPublicPrefix+"/"))

	payload := func(c *gin.Context) { c.String(http.StatusOK, "%0512d", 0) }
	r.GET("/api/stats", payload)
	r.GET("/api/files/:token/download", payload)
	r.GET("/uploads/:name", payload)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")

		return serve(r, req)
	}

	assert.Equal(t, "gzip", get("/api/stats").Header().Get("Content-Encoding"))
	assert.Empty(t, get("/api/files/abc/download").Header().Get("Content-Encoding"))
	assert.Empty(t, get("/uploads/x.bin").Header().Get("Content-Encoding"))
}

func TestResponseCacheBypass(t *testing.T) {
	store, err := kv.NewMemoryKV(context.Background(), configs.KVConfig{})
	require.NoError(t, err)

	var calls atomic.Int32

	r := gin.New()
	r.Use(middleware.ResponseCache(cache.NewCache(store, middleware.ResponseCachePrefix), time.Minute))
	r.GET("/api/stats", func(c *gin.Context) {
		calls.Add(1)
		c.JSON(http.StatusOK, gin.H{"active": 1})
	})
	r.POST("/api/stats", func(c *gin.Context) {
		calls.Add(1)
		c.JSON(http.StatusOK, gin.H{"active": 1})
	})

	serve(r, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.EqualValues(t, 1, calls.Load())

	// 不同 query 使用不同的键
	serve(r, httptest.NewRequest(http.MethodGet, "/api/stats?x=1", nil))
	assert.EqualValues(t, 2, calls.Load())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Cache-Bypass", "1")

	w := serve(r, req)
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.EqualValues(t, 3, calls.Load())

	serve(r, httptest.NewRequest(http.MethodPost, "/api/stats", nil))
	assert.EqualValues(t, 4, calls.Load())
}
