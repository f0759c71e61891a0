// Package handle 提供 HTTP 请求处理器，把请求转换为生命周期操作并统一渲染错误.
package handle

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/dropvault/pkg/internal/service"
	"github.com/yeisme/dropvault/pkg/internal/types"
	"github.com/yeisme/dropvault/pkg/log"
	"github.com/yeisme/dropvault/pkg/scheduler"
)

// msgNotFound 删除、过期与不存在的文件使用同一条消息.
const msgNotFound = "file not found"

// Pinger 可做健康检查的依赖.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 把函数适配为 Pinger.
type PingFunc func(ctx context.Context) error

// Ping 实现 Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Options 处理器的可选依赖与参数.
type Options struct {
	Scheduler *scheduler.Scheduler
	// Health 组件名到检查器，例如 db、blob、mq
	Health map[string]Pinger
	// RetentionDays purge 未指定 days 时使用
	RetentionDays int
	// MaxUploadBytes 请求体上限，0 表示不限制
	MaxUploadBytes int64
	// MaxMultipartMemory multipart 表单的内存上限，超出部分落盘
	MaxMultipartMemory int64
}

// Handler 持有生命周期服务，所有路由处理器都是它的方法.
type Handler struct {
	lc   *service.FileLifecycle
	opts Options
}

// New 创建 Handler.
func New(lc *service.FileLifecycle, opts Options) *Handler {
	if opts.MaxMultipartMemory <= 0 {
		opts.MaxMultipartMemory = 32 << 20
	}

	return &Handler{lc: lc, opts: opts}
}

// writeError 把服务层错误映射为 HTTP 状态码.
func writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal server error"

	switch {
	case service.IsNotFound(err):
		status, msg = http.StatusNotFound, msgNotFound
	case errors.Is(err, service.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrStorageWrite):
		msg = "failed to store file"
	case errors.Is(err, service.ErrMetadataWrite):
		msg = "failed to save file metadata"
	}

	if status >= http.StatusInternalServerError {
		ev := log.Logger().Error().Err(err).Str("path", c.FullPath())
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			ev = ev.Str("trace_id", sc.TraceID().String())
		}

		ev.Msg("request failed")

		_ = c.Error(err)
	}

	c.AbortWithStatusJSON(status, types.ErrorResponse{Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, types.ErrorResponse{Error: msg})
}
