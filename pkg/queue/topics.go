// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：dv.<域>.<动作>，尽量稳定且向后兼容.
// 域：file(单个文件的生命周期)、sweep/purge/reconcile(维护任务)

const (
	// 文件生命周期领域.
	TopicFileUploaded   = "dv.file.uploaded"   // 文件已写入存储并落库
	TopicFileDownloaded = "dv.file.downloaded" // 文件被下载（按 token 或按 locator）
	TopicFileRemoved    = "dv.file.removed"    // 文件被主动删除
	TopicFileExpired    = "dv.file.expired"    // 过期文件被惰性清理

	// 维护任务领域.
	TopicSweepCompleted     = "dv.sweep.completed"     // 过期清扫完成
	TopicPurgeCompleted     = "dv.purge.completed"     // 软删除记录永久清除完成
	TopicReconcileCompleted = "dv.reconcile.completed" // 孤儿 blob 对账完成
)

// 主题分组，用于批量订阅.
var (
	// 文件相关主题集合.
	FileTopics = []string{
		TopicFileUploaded, TopicFileDownloaded, TopicFileRemoved, TopicFileExpired,
	}

	// 维护任务相关主题集合.
	MaintenanceTopics = []string{
		TopicSweepCompleted, TopicPurgeCompleted, TopicReconcileCompleted,
	}
)

// AllTopics 返回全部主题.
func AllTopics() []string {
	all := make([]string, 0, len(FileTopics)+len(MaintenanceTopics))
	all = append(all, FileTopics...)

	return append(all, MaintenanceTopics...)
}
