package handle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/scheduler"
)

func (h *Handler) scheduler(c *gin.Context) *scheduler.Scheduler {
	if h.opts.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler disabled"})
	}

	return h.opts.Scheduler
}

func schedulerError(c *gin.Context, err error) {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// SchedulerJobs 返回所有调度器任务信息.
//
//	@Summary	定时任务列表
//	@Tags		调度
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Router		/scheduler/jobs [get]
func (h *Handler) SchedulerJobs(c *gin.Context) {
	sched := h.scheduler(c)
	if sched == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": sched.GetJobInfos()})
}

// SchedulerRunJob 立即执行一次指定任务.
//
//	@Summary	立即执行任务
//	@Tags		调度
//	@Produce	json
//	@Param		name	path		string	true	"任务名，例如 lifecycle.sweep"
//	@Success	202		{object}	map[string]string
//	@Failure	404		{object}	map[string]string
//	@Router		/scheduler/jobs/{name}/run [post]
func (h *Handler) SchedulerRunJob(c *gin.Context) {
	sched := h.scheduler(c)
	if sched == nil {
		return
	}

	if err := sched.RunNow(c.Param("name")); err != nil {
		schedulerError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "job triggered"})
}

// SchedulerRemoveJob 根据 id 或名称删除任务.
//
//	@Summary	删除任务
//	@Tags		调度
//	@Produce	json
//	@Param		name	path		string	true	"任务 ID 或名称"
//	@Success	200	{object}	map[string]string
//	@Failure	404	{object}	map[string]string
//	@Router		/scheduler/jobs/{name} [delete]
func (h *Handler) SchedulerRemoveJob(c *gin.Context) {
	sched := h.scheduler(c)
	if sched == nil {
		return
	}

	if err := sched.RemoveJob(c.Param("name")); err != nil {
		schedulerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job removed"})
}

// SchedulerQueueWaiting 返回队列中等待的任务数.
func (h *Handler) SchedulerQueueWaiting(c *gin.Context) {
	sched := h.scheduler(c)
	if sched == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{"waiting": sched.JobsWaitingInQueue()})
}
