package handle

import (
	"github.com/gin-gonic/gin"
)

// ServeLocator 按对象名直接访问文件，/api/file/:name 与 /uploads/:name 共用.
//
//	@Summary		按对象名下载
//	@Description	记录存在时使用原始文件名并累加下载次数；从未登记过的对象按对象名返回
//	@Tags			文件
//	@Produce		application/octet-stream
//	@Param			name	path		string				true	"对象名"
//	@Success		200		{file}		file				"文件内容"
//	@Failure		404		{object}	types.ErrorResponse	"文件不存在或已过期"
//	@Router			/api/file/{name} [get]
func (h *Handler) ServeLocator(c *gin.Context) {
	lf, err := h.lc.ServeLocator(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}

	// 没有记录时长度未知，由 net/http 分块传输
	contentType, size := defaultContentType, int64(-1)
	if lf.Record != nil {
		contentType = lf.Record.ContentTypeOr(defaultContentType)
		size = lf.Record.FileSize
	}

	serveBody(c, lf.DisplayName, contentType, size, lf.Body)
}
