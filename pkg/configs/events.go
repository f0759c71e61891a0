package configs

import "github.com/spf13/viper"

// EventsConfig 控制生命周期事件发布的开关（全局与分主题）.
type EventsConfig struct {
	Enabled bool             `mapstructure:"enabled"` // 总开关
	Audit   bool             `mapstructure:"audit"`   // 是否启动审计订阅者，把事件写入日志
	File    FileEventsConfig `mapstructure:"file"`
}

// FileEventsConfig 文件生命周期领域的事件开关.
type FileEventsConfig struct {
	Uploaded    bool `mapstructure:"uploaded"`
	Downloaded  bool `mapstructure:"downloaded"`
	Removed     bool `mapstructure:"removed"`
	Expired     bool `mapstructure:"expired"`
	Maintenance bool `mapstructure:"maintenance"` // sweep、purge、reconcile 完成事件
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("events.enabled", true)
	v.SetDefault("events.audit", true)

	v.SetDefault("events.file.uploaded", true)
	v.SetDefault("events.file.removed", true)
	v.SetDefault("events.file.expired", true)
	v.SetDefault("events.file.maintenance", true)
	// 下载事件量可能很大，默认关闭
	v.SetDefault("events.file.downloaded", false)
}
