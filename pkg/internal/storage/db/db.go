// Package db 处理元数据库连接.
package db

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/dropvault/pkg/configs"
	nlog "github.com/yeisme/dropvault/pkg/log"
)

// DialectorFactory 定义创建 dialector 的函数类型.
type DialectorFactory func(dsn string) gorm.Dialector

// dialectorFactories 存储数据库类型到 dialector 工厂的映射.
var dialectorFactories = map[configs.DBType]DialectorFactory{}

// RegisterDialectorFactory 注册数据库 dialector 工厂函数.
func RegisterDialectorFactory(dbType configs.DBType, factory DialectorFactory) {
	dialectorFactories[dbType] = factory
}

// GetRegisteredDBTypes 返回已注册的数据库类型列表.
func GetRegisteredDBTypes() []configs.DBType {
	types := make([]configs.DBType, 0, len(dialectorFactories))
	for dbType := range dialectorFactories {
		types = append(types, dbType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 包装 GORM DB 客户端.
type Client struct {
	*gorm.DB
}

// Options 打开数据库时的附加选项.
type Options struct {
	// Metrics 非空且启用时注册 gorm prometheus 插件
	Metrics *configs.MetricsConfig
}

// New 按配置打开数据库连接并校验连通性.
func New(ctx context.Context, cfg configs.DBConfig, opts Options) (*Client, error) {
	dsn := cfg.GetDSN()
	if dsn == "" {
		return nil, fmt.Errorf("failed to generate DSN for database type: %s", cfg.Type)
	}

	factory, exists := dialectorFactories[cfg.Type]
	if !exists {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	gormLogger := nlog.NewGormLogger(*nlog.Logger(), cfg.LogLevel,
		time.Duration(cfg.SlowThreshold)*time.Millisecond)

	db, err := gorm.Open(factory(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
		// 唯一约束冲突统一翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层 SQL DB 以配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	// SQLite 只允许单写者，单连接可避免 database is locked
	if cfg.Type == configs.SQLite && maxOpen == 0 {
		maxOpen = 1
	}

	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	client := &Client{DB: db}

	if m := opts.Metrics; m != nil && m.Enabled && m.DBStats {
		if err := client.RegisterGORMMetrics(cfg.Database, m.GetRefreshSeconds()); err != nil {
			_ = client.Close()

			return nil, err
		}

		nlog.Logger().Info().Msg("GORM metrics 注册成功")
	}

	nlog.Logger().Info().
		Str("type", cfg.GetDBType()).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("数据库连接成功")

	return client, nil
}

// GetDB 返回 GORM DB 实例.
func (c *Client) GetDB() *gorm.DB {
	return c.DB
}

// Ping 检查数据库连通性.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.PingContext(ctx)
}

// Close 关闭底层连接池.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// RegisterGORMMetrics 注册GORM连接池指标.
func (c *Client) RegisterGORMMetrics(dbName string, refreshSeconds uint32) error {
	promConfig := gormPrometheus.Config{
		DBName:          dbName,
		RefreshInterval: refreshSeconds,
		StartServer:     false, // 指标由应用的 /metrics 暴露
	}

	if err := c.Use(gormPrometheus.New(promConfig)); err != nil {
		return fmt.Errorf("failed to register GORM prometheus plugin: %w", err)
	}

	return nil
}
