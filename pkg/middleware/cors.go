package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/configs"
)

// CORSMiddleware CORS中间件，下载相关的响应头对前端可见.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = append(config.AllowHeaders, "If-None-Match")
	config.ExposeHeaders = []string{"Content-Disposition", "Content-Length", "ETag"}
	config.MaxAge = cfg.GetTimeoutDuration() * 10

	return cors.New(config)
}
