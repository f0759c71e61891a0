package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultTTLSeconds         = 86400 // 文件默认有效期 24 小时
	DefaultRetentionDays      = 30    // 软删除记录保留天数
	DefaultTokenLength        = 8     // 分享 token 长度
	DefaultTokenAttempts      = 5     // token 冲突时的最大尝试次数
	DefaultMaxUploadMB        = 100   // 单文件上传上限（MB）
	DefaultSweepConcurrency   = 8     // 清理时并发删除文件的数量
	DefaultOrphanGraceMinutes = 60    // 孤儿文件判定的最小存在时间
	DefaultLocatorCacheTTL    = 300   // locator 到记录映射的缓存时间（秒）
	DefaultSchedulerEnabled   = true

	DefaultSweepCron     = "*/10 * * * *" // 每 10 分钟清理过期文件
	DefaultPurgeCron     = "30 3 * * *"   // 每天 03:30 清除过期的软删除记录
	DefaultReconcileCron = "15 * * * *"   // 每小时第 15 分钟回收孤儿文件
)

// LifecycleConfig 文件生命周期配置.
type LifecycleConfig struct {
	TTLSeconds         int64  `mapstructure:"ttl_seconds"          rule:"min=1"`
	RetentionDays      int    `mapstructure:"retention_days"       rule:"min=0"`
	TokenLength        int    `mapstructure:"token_length"         rule:"min=6,max=64"`
	TokenAttempts      int    `mapstructure:"token_attempts"       rule:"min=1,max=20"`
	MaxUploadMB        int64  `mapstructure:"max_upload_mb"        rule:"min=1"`
	SweepConcurrency   int    `mapstructure:"sweep_concurrency"    rule:"min=1,max=256"`
	OrphanGraceMinutes int    `mapstructure:"orphan_grace_minutes" rule:"min=0"`
	LocatorCacheTTL    int    `mapstructure:"locator_cache_ttl"    rule:"min=0"`
	SchedulerEnabled   bool   `mapstructure:"scheduler_enabled"`
	SweepCron          string `mapstructure:"sweep_cron"           rule:"required"`
	PurgeCron          string `mapstructure:"purge_cron"           rule:"required"`
	ReconcileCron      string `mapstructure:"reconcile_cron"`
}

// GetTTL 返回文件有效期.
func (c *LifecycleConfig) GetTTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// GetMaxUploadBytes 返回单文件上传上限（字节）.
func (c *LifecycleConfig) GetMaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// GetOrphanGrace 返回孤儿文件判定的最小存在时间.
func (c *LifecycleConfig) GetOrphanGrace() time.Duration {
	return time.Duration(c.OrphanGraceMinutes) * time.Minute
}

// GetLocatorCacheTTL 返回 locator 缓存时间.
func (c *LifecycleConfig) GetLocatorCacheTTL() time.Duration {
	return time.Duration(c.LocatorCacheTTL) * time.Second
}

// setDefaults 设置生命周期配置的默认值.
func (c *LifecycleConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("lifecycle.ttl_seconds", DefaultTTLSeconds)
	v.SetDefault("lifecycle.retention_days", DefaultRetentionDays)
	v.SetDefault("lifecycle.token_length", DefaultTokenLength)
	v.SetDefault("lifecycle.token_attempts", DefaultTokenAttempts)
	v.SetDefault("lifecycle.max_upload_mb", DefaultMaxUploadMB)
	v.SetDefault("lifecycle.sweep_concurrency", DefaultSweepConcurrency)
	v.SetDefault("lifecycle.orphan_grace_minutes", DefaultOrphanGraceMinutes)
	v.SetDefault("lifecycle.locator_cache_ttl", DefaultLocatorCacheTTL)
	v.SetDefault("lifecycle.scheduler_enabled", DefaultSchedulerEnabled)
	v.SetDefault("lifecycle.sweep_cron", DefaultSweepCron)
	v.SetDefault("lifecycle.purge_cron", DefaultPurgeCron)
	v.SetDefault("lifecycle.reconcile_cron", DefaultReconcileCron)
}
