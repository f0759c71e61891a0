package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type (
	DBType string
)

const (
	// PostgreSQL 协议.
	PostgreSQL DBType = "postgresql"
	Postgres   DBType = "postgre"
	Pg         DBType = "pg"

	// MySQL 协议.
	MySQL   DBType = "mysql"
	MariaDB DBType = "mariadb"
	// SQLite 协议.
	SQLite DBType = "sqlite"
)

const (
	DefaultDatabaseType        = SQLite      // 默认使用内嵌 SQLite，便于单机部署
	DefaultDatabaseHost        = "localhost" // 默认数据库主机
	DefaultDatabasePort        = 5432        // 默认数据库端口
	DefaultDatabaseUser        = "postgres"  // 默认数据库用户
	DefaultDatabasePassword    = ""          // 默认数据库密码
	DefaultDatabaseName        = "dropvault" // 默认数据库名称
	DefaultDatabaseSSLMode     = "disable"   // 默认数据库SSL模式
	DefaultMaxOpenConns        = 0           // 默认不限制打开连接数
	DefaultMaxIdleConns        = 5           // 默认最大空闲连接数
	DefaultConnMaxLifetimeMins = 30          // 连接最大存活时间（分钟）
	DefaultDBLogLevel          = "warn"      // GORM 日志级别
	DefaultSlowThresholdMillis = 200         // 慢查询阈值（毫秒）
)

// DBConfig 数据库配置.
type DBConfig struct {
	Type            DBType `mapstructure:"type"              rule:"oneof=postgresql postgre pg mysql mariadb sqlite"`
	DSN             string `mapstructure:"dsn"` // 显式 DSN，非空时覆盖下方字段拼装的结果
	Host            string `mapstructure:"host"              rule:"omitempty,hostname_rfc1123"`
	Port            int    `mapstructure:"port"              rule:"min=0,max=65535"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"          rule:"required"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"    rule:"min=0"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"    rule:"min=0"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" rule:"min=0"` // 分钟
	LogLevel        string `mapstructure:"log_level"         rule:"omitempty,oneof=silent error warn info"`
	SlowThreshold   int    `mapstructure:"slow_threshold_ms" rule:"min=0"`
}

// GetDBType 返回数据库类型的字符串表示.
func (c *DBConfig) GetDBType() string {
	switch c.Type {
	case PostgreSQL, Postgres, Pg:
		return "PostgreSQL"
	case MySQL, MariaDB:
		return "MySQL"
	case SQLite:
		return "SQLite"
	default:
		return "Unknown"
	}
}

// GetDSN 获取数据库的连接字符串，根据不同的数据库类型返回不同格式的DSN
// 通过构建 dsnMap 映射表来简化代码结构和提高可维护性 (优先使用).
func (c *DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	dsnMap := map[DBType]func() string{
		PostgreSQL: c.getPgSQLDSN,
		Postgres:   c.getPgSQLDSN,
		Pg:         c.getPgSQLDSN,
		MySQL:      c.getMySQLDSN,
		MariaDB:    c.getMySQLDSN,
		SQLite:     c.getSQLiteDSN,
	}

	if fn, ok := dsnMap[c.Type]; ok {
		return fn()
	}

	return ""
}

// GetConnMaxLifetime 返回连接最大存活时间.
func (c *DBConfig) GetConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Minute
}

// getPgSQLDSN 获取PostgreSQL的DSN.
func (c *DBConfig) getPgSQLDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// getMySQLDSN 获取MySQL的DSN.
// 时间统一按 UTC 读写，避免过期判断受服务器时区影响.
func (c *DBConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// getSQLiteDSN 获取SQLite的DSN.
func (c *DBConfig) getSQLiteDSN() string {
	return fmt.Sprintf("file:%s.db", c.Database)
}

// setDefaults 设置数据库配置的默认值.
func (c *DBConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("db.type", DefaultDatabaseType)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.host", DefaultDatabaseHost)
	v.SetDefault("db.port", DefaultDatabasePort)
	v.SetDefault("db.user", DefaultDatabaseUser)
	v.SetDefault("db.password", DefaultDatabasePassword)
	v.SetDefault("db.database", DefaultDatabaseName)
	v.SetDefault("db.sslmode", DefaultDatabaseSSLMode)
	v.SetDefault("db.max_open_conns", DefaultMaxOpenConns)
	v.SetDefault("db.max_idle_conns", DefaultMaxIdleConns)
	v.SetDefault("db.conn_max_lifetime", DefaultConnMaxLifetimeMins)
	v.SetDefault("db.log_level", DefaultDBLogLevel)
	v.SetDefault("db.slow_threshold_ms", DefaultSlowThresholdMillis)
}
