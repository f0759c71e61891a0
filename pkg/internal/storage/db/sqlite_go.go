//go:build !no_sqlite && !cgo

package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/dropvault/pkg/configs"
)

// createSQLiteDialector 创建SQLite dialector (纯 Go 版本).
func createSQLiteDialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

// 注册SQLite dialector工厂函数 (纯 Go 版本).
func init() {
	RegisterDialectorFactory(configs.SQLite, createSQLiteDialector)
}
