package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪 ID，来自当前 span.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 文件领域 --------------------------

// FileRef 事件中携带的文件快照.
type FileRef struct {
	ID          string    `json:"id"`
	Token       string    `json:"token"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Locator     string    `json:"locator"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// FileUploadedPayload 文件上传完成.
type FileUploadedPayload struct {
	File FileRef `json:"file"`
}

// 下载入口.
const (
	ViaToken   = "token"
	ViaLocator = "locator"
)

// FileDownloadedPayload 文件被下载.
type FileDownloadedPayload struct {
	File          FileRef `json:"file"`
	DownloadCount int64   `json:"download_count"`
	Via           string  `json:"via"`
}

// FileRemovedPayload 文件被主动删除.
type FileRemovedPayload struct {
	File FileRef `json:"file"`
}

// FileExpiredPayload 过期文件被惰性清理.
type FileExpiredPayload struct {
	File FileRef `json:"file"`
	// BlobDeleted blob 删除是否成功，失败时留给对账任务处理.
	BlobDeleted bool `json:"blob_deleted"`
}

// -------------------------- 维护任务领域 --------------------------

// SweepCompletedPayload 过期清扫结果.
type SweepCompletedPayload struct {
	AsOf         time.Time `json:"as_of"`
	Listed       int       `json:"listed"`
	Cleaned      int64     `json:"cleaned"`
	BlobFailures int       `json:"blob_failures"`
}

// PurgeCompletedPayload 永久清除结果.
type PurgeCompletedPayload struct {
	RetentionDays int   `json:"retention_days"`
	Purged        int64 `json:"purged"`
}

// ReconcileCompletedPayload 孤儿对账结果.
type ReconcileCompletedPayload struct {
	Scanned int `json:"scanned"`
	Orphans int `json:"orphans"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}
