// Package types 定义 HTTP 接口的请求与响应结构.
package types

import (
	"time"

	"github.com/yeisme/dropvault/pkg/internal/model"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/service"
)

// FileInfo 文件信息，上传与查询接口共用.
type FileInfo struct {
	ID            string    `json:"id"`
	ShareID       string    `json:"shareId"`
	Filename      string    `json:"filename"`
	FileSize      int64     `json:"fileSize"`
	ContentType   *string   `json:"contentType"`
	BlobURL       string    `json:"blobUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	DownloadCount int       `json:"downloadCount"`
}

// NewFileInfo 由元数据记录构建响应.
func NewFileInfo(rec *model.FileRecord) FileInfo {
	return FileInfo{
		ID:            rec.ID,
		ShareID:       rec.ShareToken,
		Filename:      rec.Filename,
		FileSize:      rec.FileSize,
		ContentType:   rec.ContentType,
		BlobURL:       rec.BlobLocator,
		CreatedAt:     rec.CreatedAt,
		ExpiresAt:     rec.ExpiresAt,
		DownloadCount: rec.DownloadCount,
	}
}

// ErrorResponse 错误响应.
type ErrorResponse struct {
	Error string `json:"error" example:"file not found"`
}

// SuccessResponse 删除成功的响应.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// CleanupResponse 清理过期文件的结果.
type CleanupResponse struct {
	Success bool  `json:"success"`
	Cleaned int64 `json:"cleaned"`
}

// PurgeRequest 物理删除软删除记录的参数.
type PurgeRequest struct {
	// Days 保留天数，为空时使用 lifecycle.retention_days
	Days *int `form:"days" rule:"omitempty,min=0"`
}

// PurgeResponse 物理删除的结果.
type PurgeResponse struct {
	Success bool  `json:"success"`
	Purged  int64 `json:"purged"`
}

// ReconcileResponse 孤儿回收的结果.
type ReconcileResponse struct {
	Success bool `json:"success"`
	service.ReconcileResult
}

// StatsResponse 文件统计.
type StatsResponse struct {
	repository.Stats
	AsOf time.Time `json:"asOf"`
}
