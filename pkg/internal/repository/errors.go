package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在或已删除.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateToken 分享 token 已被占用.
	ErrDuplicateToken = errors.New("repository: duplicate share token")
	// ErrMetadataWrite 元数据写入失败.
	ErrMetadataWrite = errors.New("repository: metadata write failed")
)

// duplicateMarkers 未开启错误翻译的驱动返回的唯一约束冲突文本.
var duplicateMarkers = []string{
	"unique constraint failed", // sqlite
	"duplicate entry",          // mysql
	"duplicate key value",      // postgres
	"sqlstate 23505",
}

// isDuplicate 判断 err 是否为唯一约束冲突.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range duplicateMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}

	return false
}
