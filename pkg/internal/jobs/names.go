package jobs

// 任务名称常量，也是 run-now 接口使用的名字.
const (
	JobSweep     = "lifecycle.sweep"
	JobPurge     = "lifecycle.purge"
	JobReconcile = "lifecycle.reconcile"
)
