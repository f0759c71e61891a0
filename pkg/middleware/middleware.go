// Package middleware 提供 gin 中间件：日志、指标、追踪、跨域、压缩、限流、熔断与响应缓存.
package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// downloadPathRegex 按 token 下载的路径.
const downloadPathRegex = `^/api/files/[^/]+/download$`

func skip(c *gin.Context) { c.Next() }

// GzipMiddleware 压缩 JSON 响应；下载路径与 rawPrefixes 下的文件原样输出.
func GzipMiddleware(rawPrefixes ...string) gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths(rawPrefixes),
		gzip.WithExcludedPathsRegexs([]string{downloadPathRegex}),
	)
}
