// Package configs 管理应用程序配置，包括Metrics的配置信息.
// Metrics 通过 Prometheus 暴露，同时覆盖 HTTP、生命周期操作、数据库连接池与消息队列.
//
// Example:
//
//	config := configs.GetConfig()
//	if config.Metrics.Enabled {
//		_ = metrics.InitMetrics(config.Metrics)
//	}
package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MetricsConfig Metrics相关配置.
type MetricsConfig struct {
	Enabled         bool              `mapstructure:"enabled"`          // 是否启用Metrics
	Path            string            `mapstructure:"path"`             // 暴露路径
	Pprof           bool              `mapstructure:"pprof"`            // 是否同时暴露 /debug/pprof
	RuntimeMetrics  bool              `mapstructure:"runtime_metrics"`  // 是否收集 Go 运行时与进程指标
	DBStats         bool              `mapstructure:"db_stats"`         // 是否启用 gorm prometheus 插件
	CollectInterval time.Duration     `mapstructure:"collect_interval"` // 数据库指标刷新间隔
	Labels          map[string]string `mapstructure:"labels"`           // 默认常量标签
}

// GetRefreshSeconds 返回 gorm 插件使用的刷新间隔（秒），至少为1.
func (c *MetricsConfig) GetRefreshSeconds() uint32 {
	sec := uint32(c.CollectInterval / time.Second)
	if sec == 0 {
		return 1
	}

	return sec
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.db_stats", true)
	v.SetDefault("metrics.collect_interval", "15s")
	v.SetDefault("metrics.labels", map[string]string{
		"service": AppName,
	})
}
