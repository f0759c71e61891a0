package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/dropvault/pkg/cache"
)

const (
	// ResponseCachePrefix 响应缓存键的命名空间.
	ResponseCachePrefix = "dv.resp."
	// DefaultMaxBodyBytes 超过该大小的响应不缓存.
	DefaultMaxBodyBytes   = 1 << 20
	defaultKeyBuilderGrow = 64
	bypassHeader          = "X-Cache-Bypass"
)

// responseCacheEntry 序列化存储结构.
type responseCacheEntry struct {
	Status      int    `json:"s"`
	ContentType string `json:"c,omitempty"`
	Body        []byte `json:"b,omitempty"`
	ETag        string `json:"e,omitempty"`
	StoredAt    int64  `json:"t"` // unix nano, 用于 Age
}

// ResponseCache 在 ttl 内缓存 GET 请求的 200 响应，用于代价较高的统计接口.
// 带 X-Cache-Bypass 请求头时跳过缓存；缓存读写失败不影响主流程.
func ResponseCache(c *appcache.Cache, ttl time.Duration) gin.HandlerFunc {
	if c == nil || ttl <= 0 {
		return skip
	}

	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodGet || ctx.GetHeader(bypassHeader) != "" {
			ctx.Next()
			return
		}

		key := cacheKey(ctx)

		if entry, err := appcache.Get[responseCacheEntry](ctx.Request.Context(), c, key); err == nil {
			writeEntry(ctx, entry, "HIT")
			return
		}

		bw := &bufferedWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = bw

		ctx.Next()

		ctx.Writer = bw.ResponseWriter

		status := bw.Status()
		body := bw.buf.Bytes()

		entry := responseCacheEntry{
			Status:      status,
			ContentType: bw.Header().Get("Content-Type"),
			Body:        body,
			ETag:        fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body)),
			StoredAt:    time.Now().UnixNano(),
		}

		if status == http.StatusOK && len(body) <= DefaultMaxBodyBytes {
			_ = appcache.Set(ctx.Request.Context(), c, key, entry, ttl)
		}

		writeEntry(ctx, entry, "MISS")
	}
}

// cacheKey 方法 + 路由 + 排序后的 query 的哈希.
func cacheKey(c *gin.Context) string {
	var b strings.Builder
	b.Grow(defaultKeyBuilderGrow)

	b.WriteString(c.Request.Method)
	b.WriteByte(':')

	full := c.FullPath()
	if full == "" {
		full = c.Request.URL.Path
	}

	b.WriteString(full)

	if q := c.Request.URL.Query(); len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}

		sort.Strings(keys)
		b.WriteByte('?')

		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}

			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(strings.Join(q[k], ","))
		}
	}

	return fmt.Sprintf("%x", xxhash.Sum64String(b.String()))
}

// writeEntry 输出缓存条目，If-None-Match 命中时返回 304.
func writeEntry(c *gin.Context, e responseCacheEntry, state string) {
	h := c.Writer.Header()
	h.Set("X-Cache", state)

	if e.Status == http.StatusOK && e.ETag != "" {
		h.Set("ETag", e.ETag)
	}

	if state == "HIT" {
		h.Set("Age", fmt.Sprintf("%.0f", time.Since(time.Unix(0, e.StoredAt)).Seconds()))
	}

	if e.Status == http.StatusOK && e.ETag != "" && c.GetHeader("If-None-Match") == e.ETag {
		c.AbortWithStatus(http.StatusNotModified)
		return
	}

	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}

	c.Status(e.Status)
	_, _ = c.Writer.Write(e.Body)
	c.Abort()
}

// bufferedWriter 暂存响应体，由中间件决定最终输出.
type bufferedWriter struct {
	gin.ResponseWriter

	buf bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.buf.WriteString(s)
}
