// Package router 管理路由配置，把 handle 包的处理器绑定到 gin 引擎.
package router

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/cache"
	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/handle"
	"github.com/yeisme/dropvault/pkg/middleware"
)

// defaultStatsCacheTTL 统计接口的缓存时间.
const defaultStatsCacheTTL = 10 * time.Second

// Options 路由注册的可选依赖.
type Options struct {
	// StatsCache 非空时缓存 /api/stats 的响应
	StatsCache    *cache.Cache
	StatsCacheTTL time.Duration
}

// Register 绑定全部路由.
//
//	POST   /api/upload
//	GET    /api/files/:token
//	GET    /api/files/:token/download
//	DELETE /api/files/:token
//	GET    /api/file/:name, /uploads/:name
//	GET    /api/stats
//	*      /api/cleanup...
//	GET    /health/{db,blob,mq}
//	*      /scheduler/...
func Register(r *gin.Engine, h *handle.Handler, cfg *configs.AppConfig, opts Options) {
	if opts.StatsCacheTTL <= 0 {
		opts.StatsCacheTTL = defaultStatsCacheTTL
	}

	api := r.Group("/api", middleware.CircuitBreakerMiddleware("api", cfg.CircuitBreaker))

	RegisterFileRoutes(api, h, cfg.RateLimit)
	RegisterCleanupRoutes(api, h)
	RegisterStatsRoutes(api, h, opts.StatsCache, opts.StatsCacheTTL)
	RegisterLocatorRoutes(r, api, h, cfg.Storage)
	RegisterHealthCheckRoute(r.Group(""), h)
	RegisterSchedulerRoutes(r.Group(""), h)
	RegisterSwaggerRoute(r, cfg.Server)
}

// RegisterFileRoutes 注册上传与按 token 访问的路由.
func RegisterFileRoutes(g *gin.RouterGroup, h *handle.Handler, rl configs.RateLimitConfig) {
	g.POST("/upload", middleware.UploadRateLimitMiddleware(rl), h.Upload)

	filesRoutes := g.Group("/files/:token")
	{
		filesRoutes.GET("", h.Info)
		filesRoutes.GET("/download", h.Download)
		filesRoutes.DELETE("", h.Remove)
	}
}

// RegisterCleanupRoutes 注册维护路由，cleanup 同时接受 GET 便于外部 cron 调用.
func RegisterCleanupRoutes(g *gin.RouterGroup, h *handle.Handler) {
	cleanup := g.Group("/cleanup")
	{
		cleanup.GET("", h.Cleanup)
		cleanup.POST("", h.Cleanup)
		cleanup.POST("/purge", h.Purge)
		cleanup.POST("/reconcile", h.Reconcile)
	}
}

// RegisterLocatorRoutes 按定位符前缀注册直接访问路由，前缀相同时只注册一次.
// 位于 api 分组下的前缀挂在分组上，共享分组的熔断器.
func RegisterLocatorRoutes(r *gin.Engine, api *gin.RouterGroup, h *handle.Handler, cfg configs.StorageConfig) {
	seen := make(map[string]struct{}, 2)
	base := strings.TrimRight(api.BasePath(), "/")

	for _, prefix := range []string{cfg.APIPrefix, cfg.Local.PublicPrefix} {
		prefix = strings.TrimRight(prefix, "/")
		if prefix == "" {
			continue
		}

		if _, ok := seen[prefix]; ok {
			continue
		}

		seen[prefix] = struct{}{}

		if rel, ok := strings.CutPrefix(prefix, base+"/"); ok {
			api.GET("/"+rel+"/:name", h.ServeLocator)
			continue
		}

		r.GET(prefix+"/:name", h.ServeLocator)
	}
}
