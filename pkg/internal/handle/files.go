package handle

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/dropvault/pkg/internal/service"
	"github.com/yeisme/dropvault/pkg/internal/types"
	"github.com/yeisme/dropvault/pkg/log"
)

const (
	formFile           = "file"
	defaultContentType = "application/octet-stream"
	// multipartSlack multipart 边界与表头占用的额外字节
	multipartSlack = 1 << 20
)

// Upload 上传文件并返回分享信息.
//
//	@Summary		上传文件
//	@Description	保存文件并生成分享 token，文件在 lifecycle.ttl_seconds 之后过期
//	@Tags			文件
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file				true	"要分享的文件"
//	@Success		200		{object}	types.FileInfo		"文件信息"
//	@Failure		400		{object}	types.ErrorResponse	"没有提供文件或文件过大"
//	@Failure		500		{object}	types.ErrorResponse	"保存失败"
//	@Router			/api/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes+multipartSlack)
	}

	if err := c.Request.ParseMultipartForm(h.opts.MaxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(c, fmt.Sprintf("file size exceeds limit of %d bytes", h.opts.MaxUploadBytes))
			return
		}

		badRequest(c, "no file provided")

		return
	}

	fh, err := c.FormFile(formFile)
	if err != nil {
		badRequest(c, "no file provided")
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, fmt.Errorf("%w: open upload: %w", service.ErrStorageWrite, err))
		return
	}
	defer f.Close()

	// 客户端普遍把未知类型声明为 octet-stream，交给服务端探测
	contentType := fh.Header.Get("Content-Type")
	if contentType == defaultContentType {
		contentType = ""
	}

	rec, err := h.lc.Upload(c.Request.Context(), service.UploadInput{
		Reader:      f,
		Size:        fh.Size,
		Filename:    fh.Filename,
		ContentType: contentType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NewFileInfo(rec))
}

// Info 查询文件信息，不计入下载次数.
//
//	@Summary		文件信息
//	@Tags			文件
//	@Produce		json
//	@Param			token			path		string				true	"分享 token"
//	@Param			If-None-Match	header		string				false	"上次返回的 ETag"
//	@Success		200				{object}	types.FileInfo		"文件信息"
//	@Success		304				"未修改"
//	@Failure		404				{object}	types.ErrorResponse	"文件不存在或已过期"
//	@Router			/api/files/{token} [get]
func (h *Handler) Info(c *gin.Context) {
	rec, err := h.lc.Info(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	body, err := sonic.Marshal(types.NewFileInfo(rec))
	if err != nil {
		writeError(c, err)
		return
	}

	etag := weakETag(body)
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")

	if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, etag) {
		c.Status(http.StatusNotModified)
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// Download 下载文件并累加下载次数.
//
//	@Summary	下载文件
//	@Tags		文件
//	@Produce	application/octet-stream
//	@Param		token	path		string				true	"分享 token"
//	@Success	200		{file}		file				"文件内容"
//	@Failure	404		{object}	types.ErrorResponse	"文件不存在或已过期"
//	@Router		/api/files/{token}/download [get]
func (h *Handler) Download(c *gin.Context) {
	rec, body, err := h.lc.Resolve(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}

	serveBody(c, rec.Filename, rec.ContentTypeOr(defaultContentType), rec.FileSize, body)
}

// Remove 删除文件.
//
//	@Summary	删除文件
//	@Tags		文件
//	@Produce	json
//	@Param		token	path		string					true	"分享 token"
//	@Success	200		{object}	types.SuccessResponse	"已删除"
//	@Failure	404		{object}	types.ErrorResponse		"文件不存在"
//	@Failure	500		{object}	types.ErrorResponse		"删除失败"
//	@Router		/api/files/{token} [delete]
func (h *Handler) Remove(c *gin.Context) {
	if err := h.lc.Remove(c.Request.Context(), c.Param("token")); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse{Success: true})
}

// serveBody 以附件形式输出文件内容并关闭 body，size 为负时不设置 Content-Length.
func serveBody(c *gin.Context, filename, contentType string, size int64, body io.ReadCloser) {
	defer body.Close()

	c.Header("Content-Disposition", contentDisposition(filename))
	c.Header("X-Content-Type-Options", "nosniff")
	if size >= 0 {
		c.Header("Content-Length", strconv.FormatInt(size, 10))
	}

	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)

	if c.Request.Method == http.MethodHead {
		return
	}

	if _, err := io.Copy(c.Writer, body); err != nil {
		log.Logger().Warn().Err(err).Str("filename", filename).Msg("download interrupted")
	}
}

// contentDisposition 生成附件头，filename 为 ASCII 兜底，filename* 为 UTF-8 百分号编码.
func contentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' || r == ';' {
			return '_'
		}

		return r
	}, name)

	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, fallback, strings.ReplaceAll(url.QueryEscape(name), "+", "%20"))
}

func weakETag(body []byte) string {
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(body))
}

// etagMatches 按弱比较规则匹配 If-None-Match 中的任意一个值.
func etagMatches(header, etag string) bool {
	want := strings.TrimPrefix(etag, "W/")

	for _, v := range strings.Split(header, ",") {
		v = strings.TrimSpace(v)
		if v == "*" || strings.TrimPrefix(v, "W/") == want {
			return true
		}
	}

	return false
}
