package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/internal/handle"
)

// RegisterSchedulerRoutes 注册调度器相关路由.
func RegisterSchedulerRoutes(g *gin.RouterGroup, h *handle.Handler) {
	sched := g.Group("/scheduler")
	{
		sched.GET("/jobs", h.SchedulerJobs)
		sched.POST("/jobs/:name/run", h.SchedulerRunJob)
		sched.DELETE("/jobs/:name", h.SchedulerRemoveJob)
		sched.GET("/queue/waiting", h.SchedulerQueueWaiting)
	}
}
