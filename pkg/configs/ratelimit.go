package configs

import "github.com/spf13/viper"

const (
	// 默认速率限制配置.
	DefaultRateLimitEnabled = false
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultRateLimitKey     = "ip"
	DefaultUploadRPS        = 5.0
	DefaultUploadBurst      = 10
)

// RateLimitConfig 速率限制配置.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"   rule:"min=0"` // 每秒允许的请求数
	Burst   int     `mapstructure:"burst" rule:"min=0"` // 突发容量
	// Key 选择限流维度：global（全局）、ip（按客户端IP）、header:Header-Name（按请求头）
	Key string `mapstructure:"key"`
	// UploadRPS/UploadBurst 单独约束上传接口，0 表示沿用全局值
	UploadRPS   float64 `mapstructure:"upload_rps"   rule:"min=0"`
	UploadBurst int     `mapstructure:"upload_burst" rule:"min=0"`
}

// ForUpload 返回上传接口使用的速率与突发容量.
func (c *RateLimitConfig) ForUpload() (float64, int) {
	rps, burst := c.RPS, c.Burst
	if c.UploadRPS > 0 {
		rps = c.UploadRPS
	}

	if c.UploadBurst > 0 {
		burst = c.UploadBurst
	}

	return rps, burst
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", DefaultRateLimitEnabled)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.upload_rps", DefaultUploadRPS)
	v.SetDefault("rate_limit.upload_burst", DefaultUploadBurst)
}
