//go:build !no_postgres

package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yeisme/dropvault/pkg/configs"
)

// createPostgresDialector 创建PostgreSQL dialector.
func createPostgresDialector(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}

// 注册PostgreSQL dialector工厂函数，三种写法均指向同一驱动.
func init() {
	for _, t := range []configs.DBType{configs.PostgreSQL, configs.Postgres, configs.Pg} {
		RegisterDialectorFactory(t, createPostgresDialector)
	}
}
