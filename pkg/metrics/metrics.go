// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集 HTTP、文件生命周期与运行时指标.
//
// Example:
//
//	import "github.com/yeisme/dropvault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RequestCounter.WithLabelValues("GET", "/api/files/:token", "200").Inc()
//	metrics.ObserveOp("upload", start, err)
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/dropvault/pkg/configs"
)

const namespace = "dropvault"

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 正在处理的请求数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// LifecycleOps 生命周期操作次数，result 为 ok / not_found / error.
	LifecycleOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_operations_total",
			Help:      "Total number of file lifecycle operations",
		},
		[]string{"op", "result"},
	)

	// LifecycleDuration 生命周期操作耗时.
	LifecycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lifecycle_operation_duration_seconds",
			Help:      "File lifecycle operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// BestEffortFailures 被忽略的失败（blob 删除、计数器、事件发布等）.
	BestEffortFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "best_effort_failures_total",
			Help:      "Failures that were logged and ignored",
		},
		[]string{"op"},
	)

	// MaintenanceItems 维护任务处理的条目数，job 为 sweep / purge / reconcile.
	MaintenanceItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_items_total",
			Help:      "Rows or blobs processed by maintenance jobs",
		},
		[]string{"job"},
	)

	// UploadedBytes 成功上传的字节数.
	UploadedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Total bytes of successfully stored uploads",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	initOnce sync.Once
)

// InitMetrics 初始化Metrics，重复调用只注册一次.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(config.Labels, registry)

		// 注册标准收集器
		if config.RuntimeMetrics {
			if err = reg.Register(collectors.NewGoCollector()); err != nil {
				return
			}

			if err = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
				return
			}
		}

		for _, c := range []prometheus.Collector{
			RequestCounter, RequestDuration, ActiveConnections,
			LifecycleOps, LifecycleDuration, BestEffortFailures, MaintenanceItems, UploadedBytes,
		} {
			if err = reg.Register(c); err != nil {
				return
			}
		}
	})

	return err
}

// StartMetricsServer 在 engine 上挂载 metrics 与可选的 pprof 端点.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	path := config.Path
	if path == "" {
		path = "/metrics"
	}

	engine.GET(path, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// 如果启用pprof，注册pprof端点
	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Result 把错误归类为指标标签.
func Result(err error, notFound func(error) bool) string {
	switch {
	case err == nil:
		return "ok"
	case notFound != nil && notFound(err):
		return "not_found"
	default:
		return "error"
	}
}

// ObserveOp 记录一次生命周期操作的结果与耗时.
func ObserveOp(op string, start time.Time, result string) {
	LifecycleOps.WithLabelValues(op, result).Inc()
	LifecycleDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// BestEffort 记录一次被忽略的失败.
func BestEffort(op string) {
	BestEffortFailures.WithLabelValues(op).Inc()
}
