package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const timeout = 2 * time.Second

// Health 返回指定组件的健康检查处理器.
func (h *Handler) Health(component string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.opts.Health[component]
		if !ok || p == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "error": component + " not initialized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"component": component, "status": "ok"})
	}
}
