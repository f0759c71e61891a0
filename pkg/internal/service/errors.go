package service

import (
	"errors"

	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
)

var (
	// ErrNotFound 记录不存在、已删除或已过期，三种情况对外不做区分.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidInput 上传参数校验失败或超过大小上限.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageWrite blob 写入失败.
	ErrStorageWrite = blob.ErrStorageWrite
	// ErrMetadataWrite 元数据写入失败.
	ErrMetadataWrite = repository.ErrMetadataWrite
	// ErrDuplicateToken token 冲突，只在内部重试，不会返回给调用方.
	ErrDuplicateToken = repository.ErrDuplicateToken
)

// IsNotFound 判断 err 是否表示文件不可用.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, blob.ErrNotFound)
}
