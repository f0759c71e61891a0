// Package app 组装应用：配置、日志、追踪、指标、存储、生命周期服务、调度器与 HTTP 服务.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/yeisme/dropvault/pkg/cache"
	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/handle"
	"github.com/yeisme/dropvault/pkg/internal/jobs"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/router"
	"github.com/yeisme/dropvault/pkg/internal/service"
	"github.com/yeisme/dropvault/pkg/internal/storage"
	"github.com/yeisme/dropvault/pkg/log"
	"github.com/yeisme/dropvault/pkg/metrics"
	"github.com/yeisme/dropvault/pkg/middleware"
	"github.com/yeisme/dropvault/pkg/queue"
	"github.com/yeisme/dropvault/pkg/scheduler"
	"github.com/yeisme/dropvault/pkg/tracing"
)

// Init 加载配置并初始化日志、追踪与指标，所有子命令共用.
func Init(configPath string) (*configs.AppConfig, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	cfg := configs.GetConfig()

	log.Init(cfg.Log, cfg.Server.Debug)

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return cfg, nil
}

// CoreOptions 创建 Core 的可选项.
type CoreOptions struct {
	// SkipMQ 一次性维护命令可以不连接消息队列
	SkipMQ bool
}

// Core 持有存储与生命周期服务，serve 与维护命令共用.
type Core struct {
	Config    *configs.AppConfig
	Storage   *storage.Manager
	Repo      *repository.FileRepository
	Lifecycle *service.FileLifecycle
}

// NewCore 打开存储、迁移表结构并创建 FileLifecycle.
func NewCore(ctx context.Context, cfg *configs.AppConfig, opts CoreOptions) (*Core, error) {
	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = metrics.GetRegistry()
	}

	mgr, err := storage.Open(ctx, cfg, storage.Options{Registerer: reg, SkipMQ: opts.SkipMQ})
	if err != nil {
		return nil, err
	}

	repo := repository.NewFileRepository(mgr.DB.GetDB())
	if err := repo.Migrate(ctx); err != nil {
		_ = mgr.Close()
		return nil, err
	}

	lcOpts := []service.Option{
		service.WithCache(cache.NewCache(mgr.KV, service.LocatorCachePrefix)),
	}

	if mgr.MQ != nil {
		lcOpts = append(lcOpts, service.WithEmitter(queue.NewEmitter(mgr.MQ, cfg.Events, configs.AppName)))
	}

	return &Core{
		Config:    cfg,
		Storage:   mgr,
		Repo:      repo,
		Lifecycle: service.NewFileLifecycle(repo, mgr.Blob, service.ConfigFrom(cfg), lcOpts...),
	}, nil
}

// Close 关闭存储并刷新追踪数据.
func (c *Core) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return errors.Join(c.Storage.Close(), tracing.ShutdownTracer(ctx))
}

// Server HTTP 服务，附带调度器与事件审计.
type Server struct {
	*Core

	Engine    *gin.Engine
	Scheduler *scheduler.Scheduler

	httpServer *http.Server
	logger     zerolog.Logger

	auditCancel context.CancelFunc
	auditWG     sync.WaitGroup
}

// NewServer 创建 HTTP 服务并注册路由.
func NewServer(ctx context.Context, cfg *configs.AppConfig) (*Server, error) {
	core, err := NewCore(ctx, cfg, CoreOptions{})
	if err != nil {
		return nil, err
	}

	s := &Server{Core: core, logger: log.Component("server")}

	if cfg.Lifecycle.SchedulerEnabled {
		if s.Scheduler, err = scheduler.NewScheduler(); err != nil {
			_ = core.Close()
			return nil, fmt.Errorf("create scheduler: %w", err)
		}

		if err := jobs.RegisterCronJobs(ctx, s.Scheduler, core.Lifecycle, cfg.Lifecycle); err != nil {
			_ = s.Scheduler.Shutdown()
			_ = core.Close()

			return nil, fmt.Errorf("register cron jobs: %w", err)
		}
	}

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	s.Engine = newEngine(cfg)

	h := handle.New(core.Lifecycle, handle.Options{
		Scheduler: s.Scheduler,
		Health: map[string]handle.Pinger{
			"db":   core.Storage.DB,
			"blob": core.Storage.Blob,
			"mq":   core.Storage.MQ,
		},
		RetentionDays:      cfg.Lifecycle.RetentionDays,
		MaxUploadBytes:     cfg.Lifecycle.GetMaxUploadBytes(),
		MaxMultipartMemory: cfg.Server.MaxMultipartMB << 20,
	})

	router.Register(s.Engine, h, cfg, router.Options{
		StatsCache: cache.NewCache(core.Storage.KV, middleware.ResponseCachePrefix),
	})

	if err := metrics.StartMetricsServer(cfg.Metrics, s.Engine); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Engine,
		ReadHeaderTimeout: cfg.Server.GetTimeoutDuration(),
		IdleTimeout:       cfg.Server.GetTimeoutDuration() * 2,
	}

	return s, nil
}

// newEngine 创建 gin 引擎并挂载全局中间件.
func newEngine(cfg *configs.AppConfig) *gin.Engine {
	engine := gin.New()
	engine.MaxMultipartMemory = cfg.Server.MaxMultipartMB << 20

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(cfg.Server),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.GzipMiddleware(cfg.Storage.APIPrefix+"/", cfg.Storage.Local.PublicPrefix+"/"),
	)

	return engine
}

// Run 启动调度器、事件审计与 HTTP 服务，ctx 取消后优雅关闭.
func (s *Server) Run(ctx context.Context) error {
	if s.Scheduler != nil {
		s.Scheduler.Start()
	}

	s.startAudit()

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var runErr error

	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	grace := s.Config.Server.GetShutdownGrace()
	s.logger.Info().Dur("grace", grace).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("http shutdown: %w", err))
	}

	return errors.Join(runErr, s.Close())
}

// startAudit 启用 events.audit 时订阅全部主题并写日志.
func (s *Server) startAudit() {
	if !s.Config.Events.Audit || s.Storage.MQ == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.auditCancel = cancel

	s.auditWG.Add(1)

	go func() {
		defer s.auditWG.Done()

		if err := queue.Audit(ctx, s.Storage.MQ, queue.AllTopics(), log.Component("audit")); err != nil {
			s.logger.Error().Err(err).Msg("event audit stopped")
		}
	}()
}

// Close 依次停止调度器、事件审计与存储.
func (s *Server) Close() error {
	var errs []error

	if s.Scheduler != nil {
		errs = append(errs, s.Scheduler.Shutdown())
	}

	if s.auditCancel != nil {
		s.auditCancel()
		s.auditWG.Wait()
	}

	errs = append(errs, s.Core.Close())

	return errors.Join(errs...)
}
