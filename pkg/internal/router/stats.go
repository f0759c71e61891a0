package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/cache"
	"github.com/yeisme/dropvault/pkg/internal/handle"
	"github.com/yeisme/dropvault/pkg/middleware"
)

// RegisterStatsRoutes 注册统计路由，c 为空时不缓存.
func RegisterStatsRoutes(g *gin.RouterGroup, h *handle.Handler, c *cache.Cache, ttl time.Duration) {
	g.GET("/stats", middleware.ResponseCache(c, ttl), h.Stats)
}
