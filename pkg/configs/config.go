// Package configs 管理应用程序配置，包括数据库、文件存储、生命周期、缓存和队列的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	import "path/to/configs"
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing lifecycle config:
//
//	config := configs.GetConfig()
//	ttl := config.Lifecycle.GetTTL()
//	fmt.Println("TTL:", ttl)
//
// Example accessing DB config:
//
//	config := configs.GetConfig()
//	dsn := config.DB.GetDSN()
//	fmt.Println("DSN:", dsn)
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/dropvault/pkg/rule"
)

// EnvPrefix 环境变量前缀，例如 DROPVAULT_SERVER_PORT.
const EnvPrefix = "DROPVAULT"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // ServerConfig 服务器配置，端口、调试模式等
		Log            LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		DB             DBConfig             `mapstructure:"db"`              // DBConfig 元数据库配置
		Storage        StorageConfig        `mapstructure:"storage"`         // StorageConfig 文件存储配置
		Lifecycle      LifecycleConfig      `mapstructure:"lifecycle"`       // LifecycleConfig 文件生命周期配置
		KV             KVConfig             `mapstructure:"kv"`              // KVConfig 缓存配置
		MQ             MQConfig             `mapstructure:"mq"`              // MQConfig 消息队列配置
		Events         EventsConfig         `mapstructure:"events"`          // EventsConfig 事件发布开关
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 监控配置
		Tracing        TracingConfig        `mapstructure:"tracing"`         // TracingConfig 追踪配置
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // RateLimitConfig 限流配置
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig 熔断配置
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
	// mu 保护热重载时的并发读写.
	mu sync.RWMutex
)

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// path 为空或者目录下没有配置文件时，只使用默认值与环境变量.
func InitConfig(path string) error {
	v, err := Load(path)
	if err != nil {
		return err
	}

	var cfg AppConfig
	if err := decode(v, &cfg); err != nil {
		return err
	}

	mu.Lock()
	appViper = v
	globalConfig = cfg
	mu.Unlock()

	reloadConfigs(v, cfg.Server.ReloadConfig)

	return nil
}

// Load 构建 viper 实例并读取配置文件，不修改全局配置.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	// 设置默认值
	setAllDefaults(v)

	if path == "" {
		path = "."
	}

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		v.SetConfigFile(path)
	} else {
		// 是目录，设置配置名和路径
		v.SetConfigName("config")
		v.AddConfigPath(path)
		v.AddConfigPath(filepath.Join(path, "configs"))

		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, ext := range exts {
			cfg := filepath.Join(path, "config."+ext)
			if _, err := os.Stat(cfg); err == nil {
				v.SetConfigFile(cfg)

				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// 读取配置
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return v, nil
}

// LoadConfig 读取并校验 path 指向的配置，不修改全局配置.
func LoadConfig(path string) (*AppConfig, error) {
	v, err := Load(path)
	if err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := decode(v, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// bindLegacyEnv 兼容旧部署中使用的环境变量名.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("lifecycle.ttl_seconds", EnvPrefix+"_LIFECYCLE_TTL_SECONDS", "FILE_EXPIRY_SECONDS")
	_ = v.BindEnv("storage.local.root", EnvPrefix+"_STORAGE_LOCAL_ROOT", "UPLOAD_DIR")
}

// decode 解析并校验配置.
func decode(v *viper.Viper, cfg *AppConfig) error {
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := rule.ValidateStruct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var cfg AppConfig

	cfg.Server.setDefaults(v)
	cfg.Log.setDefaults(v)
	cfg.DB.setDefaults(v)
	cfg.Storage.setDefaults(v)
	cfg.Lifecycle.setDefaults(v)
	cfg.KV.setDefaults(v)
	cfg.MQ.setDefaults(v)
	cfg.Events.setDefaults(v)
	cfg.Metrics.setDefaults(v)
	cfg.Tracing.setDefaults(v)
	cfg.RateLimit.setDefaults(v)
	cfg.CircuitBreaker.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		fmt.Println("Reloading configuration...")

		var cfg AppConfig
		if err := decode(v, &cfg); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)
			return
		}

		mu.Lock()
		globalConfig = cfg
		mu.Unlock()
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置的快照.
func GetConfig() *AppConfig {
	mu.RLock()
	defer mu.RUnlock()

	cfg := globalConfig

	return &cfg
}

// GetViper 返回全局 Viper 实例.
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()

	return appViper
}
