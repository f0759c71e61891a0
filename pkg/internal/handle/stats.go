package handle

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/internal/types"
)

// Stats 文件统计汇总.
//
//	@Summary	文件统计
//	@Tags		统计
//	@Produce	json
//	@Success	200	{object}	types.StatsResponse
//	@Failure	500	{object}	types.ErrorResponse
//	@Router		/api/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	s, err := h.lc.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.StatsResponse{Stats: s, AsOf: time.Now().UTC()})
}
