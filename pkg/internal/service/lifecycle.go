// Package service 实现文件生命周期：上传、按 token 下载、删除以及过期清理.
// 不处理 HTTP 细节，所有依赖通过构造函数注入.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/dropvault/pkg/cache"
	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/model"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
	nlog "github.com/yeisme/dropvault/pkg/log"
	"github.com/yeisme/dropvault/pkg/metrics"
	"github.com/yeisme/dropvault/pkg/queue"
	"github.com/yeisme/dropvault/pkg/tracing"
)

// LocatorCachePrefix locator 缓存键的命名空间，只含 NATS KV 允许的字符.
const LocatorCachePrefix = "dv.loc."

// 生命周期操作名，用作日志字段、指标标签与 span 名.
const (
	opUpload    = "upload"
	opResolve   = "resolve"
	opInfo      = "info"
	opServe     = "serve_locator"
	opRemove    = "remove"
	opExpire    = "expire"
	opSweep     = "sweep"
	opPurge     = "purge"
	opReconcile = "reconcile"
	opStats     = "stats"
)

// Config FileLifecycle 的运行参数.
type Config struct {
	TTL              time.Duration
	MaxUploadBytes   int64
	TokenLength      int
	TokenAttempts    int
	SweepConcurrency int
	OrphanGrace      time.Duration
	LocatorCacheTTL  time.Duration
	Naming           blob.Naming
}

// ConfigFrom 从应用配置提取生命周期参数.
func ConfigFrom(cfg *configs.AppConfig) Config {
	return Config{
		TTL:              cfg.Lifecycle.GetTTL(),
		MaxUploadBytes:   cfg.Lifecycle.GetMaxUploadBytes(),
		TokenLength:      cfg.Lifecycle.TokenLength,
		TokenAttempts:    cfg.Lifecycle.TokenAttempts,
		SweepConcurrency: cfg.Lifecycle.SweepConcurrency,
		OrphanGrace:      cfg.Lifecycle.GetOrphanGrace(),
		LocatorCacheTTL:  cfg.Lifecycle.GetLocatorCacheTTL(),
		Naming:           blob.NamingFrom(cfg.Storage),
	}
}

// FileLifecycle 协调 blob 存储与元数据库，只持有不可变的依赖，不加锁.
type FileLifecycle struct {
	blobs  blob.Store
	repo   *repository.FileRepository
	cfg    Config
	cache  *cache.Cache
	events *queue.Emitter
	now    func() time.Time
	token  TokenSource
	logger zerolog.Logger
}

// Option 配置 FileLifecycle.
type Option func(*FileLifecycle)

// WithCache 启用 locator 缓存.
func WithCache(c *cache.Cache) Option {
	return func(l *FileLifecycle) { l.cache = c }
}

// WithEmitter 设置事件发布器.
func WithEmitter(e *queue.Emitter) Option {
	return func(l *FileLifecycle) { l.events = e }
}

// WithClock 替换时间来源，应与 repository 使用同一个时钟.
func WithClock(now func() time.Time) Option {
	return func(l *FileLifecycle) { l.now = now }
}

// WithTokenSource 替换 token 生成器.
func WithTokenSource(t TokenSource) Option {
	return func(l *FileLifecycle) { l.token = t }
}

// WithLogger 替换日志器.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *FileLifecycle) { l.logger = logger }
}

// NewFileLifecycle 创建 FileLifecycle.
func NewFileLifecycle(repo *repository.FileRepository, blobs blob.Store, cfg Config, opts ...Option) *FileLifecycle {
	if cfg.TokenLength <= 0 {
		cfg.TokenLength = configs.DefaultTokenLength
	}

	if cfg.TokenAttempts <= 0 {
		cfg.TokenAttempts = configs.DefaultTokenAttempts
	}

	if cfg.SweepConcurrency <= 0 {
		cfg.SweepConcurrency = configs.DefaultSweepConcurrency
	}

	l := &FileLifecycle{
		blobs:  blobs,
		repo:   repo,
		cfg:    cfg,
		now:    time.Now,
		token:  RandomToken,
		logger: nlog.Component("lifecycle"),
	}

	for _, o := range opts {
		o(l)
	}

	return l
}

func (l *FileLifecycle) clock() time.Time {
	return model.Normalize(l.now())
}

// begin 开启 span 并返回结束函数，结束时记录指标.
func (l *FileLifecycle) begin(ctx context.Context, op string) (context.Context, func(err error)) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "lifecycle."+op)

	return ctx, func(err error) {
		metrics.ObserveOp(op, start, metrics.Result(err, IsNotFound))

		if IsNotFound(err) {
			span.End()
			return
		}

		tracing.EndSpan(span, err)
	}
}

// bestEffort 记录被忽略的失败.
func (l *FileLifecycle) bestEffort(ctx context.Context, op string, err error, fields map[string]any) {
	metrics.BestEffort(op)

	ev := l.logger.Warn().Err(err).Str("op", op)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		ev = ev.Str("trace_id", sc.TraceID().String())
	}

	ev.Fields(fields).Msg("best-effort step failed")
}

// publish 发布事件，失败只记录日志.
func (l *FileLifecycle) publish(ctx context.Context, topic string, send func(context.Context) error) {
	if !l.events.Enabled(topic) {
		return
	}

	if err := send(ctx); err != nil {
		l.bestEffort(ctx, "publish", err, map[string]any{"topic": topic})
	}
}

// lookup 按 token 查询记录，统一 not found 错误.
func (l *FileLifecycle) lookup(ctx context.Context, token string) (*model.FileRecord, error) {
	rec, err := l.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return rec, nil
}

// available 检查记录是否可用，过期时执行惰性清理并返回 ErrNotFound.
func (l *FileLifecycle) available(ctx context.Context, rec *model.FileRecord) error {
	if rec.IsExpired(l.clock()) {
		l.expire(ctx, rec)
		return ErrNotFound
	}

	return nil
}

// expire 清理一条过期记录：删除 blob、软删除、失效缓存、发布事件.
// 每一步都是 best-effort，可重复调用.
func (l *FileLifecycle) expire(ctx context.Context, rec *model.FileRecord) {
	// 客户端断开不应中断清理
	ctx = context.WithoutCancel(ctx)

	fields := map[string]any{"token": rec.ShareToken, "locator": rec.BlobLocator}

	blobDeleted := true
	if err := l.blobs.Delete(ctx, rec.BlobLocator); err != nil {
		blobDeleted = false

		l.bestEffort(ctx, "expire_blob_delete", err, fields)
	}

	if _, err := l.repo.SoftDelete(ctx, rec.ShareToken); err != nil {
		l.bestEffort(ctx, "expire_soft_delete", err, fields)
	}

	l.invalidate(ctx, rec.BlobLocator)

	metrics.LifecycleOps.WithLabelValues(opExpire, "ok").Inc()
	l.logger.Debug().Fields(fields).Msg("expired file cleaned lazily")

	l.publish(ctx, queue.TopicFileExpired, func(ctx context.Context) error {
		return l.events.FileExpired(ctx, queue.FileExpiredPayload{File: fileRef(rec), BlobDeleted: blobDeleted})
	})
}

// fileRef 转换为事件快照.
func fileRef(rec *model.FileRecord) queue.FileRef {
	return queue.FileRef{
		ID:          rec.ID,
		Token:       rec.ShareToken,
		Filename:    rec.Filename,
		Size:        rec.FileSize,
		ContentType: rec.ContentTypeOr(""),
		Locator:     rec.BlobLocator,
		ExpiresAt:   rec.ExpiresAt,
	}
}
