// Package model 定义元数据库中的表结构.
package model

import (
	"time"
)

// TableFiles 文件元数据表名.
const TableFiles = "files"

// FileRecord 一次上传对应的元数据记录.
// IsDeleted 只会从 false 变为 true，DeletedAt 与 IsDeleted 同时设置且只设置一次.
type FileRecord struct {
	ID string `gorm:"type:char(36);primaryKey" json:"id"`
	// 分享 token，全表唯一
	ShareToken string `gorm:"column:share_id;size:255;not null;uniqueIndex:idx_files_share_id" json:"shareId"`
	Filename   string `gorm:"size:500;not null"                                                json:"filename"`
	FileSize   int64  `gorm:"not null"                                                         json:"fileSize"`
	// 声明或探测得到的 MIME 类型，可为空
	ContentType *string `gorm:"size:255" json:"contentType"`
	// blob 存储返回的不透明定位符
	BlobLocator   string     `gorm:"column:blob_url;type:text;not null"                         json:"blobUrl"`
	CreatedAt     time.Time  `gorm:"not null;autoCreateTime:false"                              json:"createdAt"`
	ExpiresAt     time.Time  `gorm:"not null;index:idx_files_expires_at"                        json:"expiresAt"`
	IsDeleted     bool       `gorm:"not null;default:false;index:idx_files_is_deleted"          json:"-"`
	DeletedAt     *time.Time `json:"-"`
	DownloadCount int        `gorm:"not null;default:0;index:idx_files_download_count"          json:"downloadCount"`
}

// TableName 指定表名.
func (FileRecord) TableName() string {
	return TableFiles
}

// IsAvailable 记录未删除且 now 早于 ExpiresAt.
func (f *FileRecord) IsAvailable(now time.Time) bool {
	return !f.IsDeleted && now.Before(f.ExpiresAt)
}

// IsExpired now 不早于 ExpiresAt 即视为过期（边界时刻算过期）.
func (f *FileRecord) IsExpired(now time.Time) bool {
	return !now.Before(f.ExpiresAt)
}

// ContentTypeOr 返回 ContentType，为空时返回 fallback.
func (f *FileRecord) ContentTypeOr(fallback string) string {
	if f.ContentType == nil || *f.ContentType == "" {
		return fallback
	}

	return *f.ContentType
}

// Normalize 把时间戳统一到 UTC 微秒精度，与各数据库的存储精度保持一致.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
