package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/internal/handle"
)

// RegisterHealthCheckRoute 注册健康检查路由.
func RegisterHealthCheckRoute(g *gin.RouterGroup, h *handle.Handler) {
	healthRoutes := g.Group("/health")
	{
		healthRoutes.GET("/db", h.Health("db"))
		healthRoutes.GET("/blob", h.Health("blob"))
		healthRoutes.GET("/mq", h.Health("mq"))
	}
}
