package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/internal/types"
	"github.com/yeisme/dropvault/pkg/rule"
)

// Cleanup 清理所有过期文件，GET 与 POST 均可，便于外部 cron 调用.
//
//	@Summary	清理过期文件
//	@Tags		维护
//	@Produce	json
//	@Success	200	{object}	types.CleanupResponse
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/api/cleanup [get]
//	@Router		/api/cleanup [post]
func (h *Handler) Cleanup(c *gin.Context) {
	n, err := h.lc.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.CleanupResponse{Success: true, Cleaned: n})
}

// Purge 物理删除软删除超过 days 天的记录.
//
//	@Summary	清除软删除记录
//	@Tags		维护
//	@Produce	json
//	@Param		days	query		int	false	"保留天数，默认 lifecycle.retention_days"
//	@Success	200		{object}	types.PurgeResponse
//	@Failure	400		{object}	types.ErrorResponse
//	@Failure	500		{object}	types.ErrorResponse
//	@Router		/api/cleanup/purge [post]
func (h *Handler) Purge(c *gin.Context) {
	var req types.PurgeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "days must be an integer")
		return
	}

	if err := rule.ValidateStruct(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	days := h.opts.RetentionDays
	if req.Days != nil {
		days = *req.Days
	}

	n, err := h.lc.Purge(c.Request.Context(), days)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.PurgeResponse{Success: true, Purged: n})
}

// Reconcile 回收没有记录引用的孤儿 blob.
//
//	@Summary	回收孤儿文件
//	@Tags		维护
//	@Produce	json
//	@Success	200	{object}	types.ReconcileResponse
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/api/cleanup/reconcile [post]
func (h *Handler) Reconcile(c *gin.Context) {
	res, err := h.lc.Reconcile(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.ReconcileResponse{Success: res.Failed == 0, ReconcileResult: res})
}
