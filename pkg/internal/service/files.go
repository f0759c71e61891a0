package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yeisme/dropvault/pkg/internal/model"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
	"github.com/yeisme/dropvault/pkg/metrics"
	"github.com/yeisme/dropvault/pkg/queue"
	"github.com/yeisme/dropvault/pkg/rule"
)

// sniffLen 探测 MIME 类型时读取的字节数，与 mimetype 默认上限一致.
const sniffLen = 3072

// UploadInput 上传参数.
type UploadInput struct {
	Reader      io.Reader `json:"-"           rule:"required"`
	Size        int64     `json:"size"        rule:"min=0"`
	Filename    string    `json:"filename"    rule:"display_name"`
	ContentType string    `json:"contentType" rule:"omitempty,max=255"`
}

// Upload 保存文件并写入元数据.
// token 冲突时换 token 重试；元数据最终写入失败时删除已保存的 blob.
func (l *FileLifecycle) Upload(ctx context.Context, in UploadInput) (rec *model.FileRecord, err error) {
	ctx, end := l.begin(ctx, opUpload)
	defer func() { end(err) }()

	if err := l.validateUpload(in); err != nil {
		return nil, err
	}

	reader, contentType, err := sniff(in)
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %w", ErrStorageWrite, err)
	}

	locator, err := l.blobs.Save(ctx, reader, in.Size, in.Filename)
	if err != nil {
		if !errors.Is(err, ErrStorageWrite) {
			err = fmt.Errorf("%w: %w", ErrStorageWrite, err)
		}

		return nil, err
	}

	rec, err = l.insert(ctx, repository.InsertParams{
		Filename:    in.Filename,
		Size:        in.Size,
		ContentType: contentType,
		Locator:     locator,
		TTL:         l.cfg.TTL,
	})
	if err != nil {
		if delErr := l.blobs.Delete(context.WithoutCancel(ctx), locator); delErr != nil {
			l.bestEffort(ctx, "compensating_blob_delete", delErr, map[string]any{"locator": locator})
		}

		return nil, err
	}

	metrics.UploadedBytes.Add(float64(rec.FileSize))
	l.logger.Info().
		Str("token", rec.ShareToken).
		Str("locator", rec.BlobLocator).
		Int64("size", rec.FileSize).
		Time("expires_at", rec.ExpiresAt).
		Msg("file uploaded")

	l.publish(ctx, queue.TopicFileUploaded, func(ctx context.Context) error {
		return l.events.FileUploaded(ctx, queue.FileUploadedPayload{File: fileRef(rec)})
	})

	return rec, nil
}

func (l *FileLifecycle) validateUpload(in UploadInput) error {
	if err := rule.ValidateStruct(&in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if l.cfg.MaxUploadBytes > 0 && in.Size > l.cfg.MaxUploadBytes {
		return fmt.Errorf("%w: file size %d exceeds limit %d", ErrInvalidInput, in.Size, l.cfg.MaxUploadBytes)
	}

	return nil
}

// sniff 未声明 Content-Type 时读取开头的字节探测类型，返回可继续完整读取的 reader.
func sniff(in UploadInput) (io.Reader, string, error) {
	if in.ContentType != "" {
		return in.Reader, in.ContentType, nil
	}

	n := int64(sniffLen)
	if in.Size >= 0 && in.Size < n {
		n = in.Size
	}

	head := make([]byte, n)

	read, err := io.ReadFull(in.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", err
	}

	head = head[:read]
	if len(head) == 0 {
		return in.Reader, "", nil
	}

	return io.MultiReader(bytes.NewReader(head), in.Reader), mimetype.Detect(head).String(), nil
}

// insert 生成 token 写入记录，token 冲突时重试.
func (l *FileLifecycle) insert(ctx context.Context, p repository.InsertParams) (*model.FileRecord, error) {
	for attempt := 1; attempt <= l.cfg.TokenAttempts; attempt++ {
		token, err := l.token(l.cfg.TokenLength)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataWrite, err)
		}

		p.Token = token

		rec, err := l.repo.Insert(ctx, p)
		if err == nil {
			return rec, nil
		}

		if !errors.Is(err, ErrDuplicateToken) {
			return nil, err
		}

		l.logger.Debug().Int("attempt", attempt).Msg("share token collision, retrying")
	}

	return nil, fmt.Errorf("%w: no unique share token after %d attempts", ErrMetadataWrite, l.cfg.TokenAttempts)
}

// Resolve 按 token 打开文件并累加下载次数.
// 计数失败只记录日志，返回的记录已包含本次下载.
func (l *FileLifecycle) Resolve(ctx context.Context, token string) (rec *model.FileRecord, body io.ReadCloser, err error) {
	ctx, end := l.begin(ctx, opResolve)
	defer func() { end(err) }()

	rec, err = l.lookup(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	if err := l.available(ctx, rec); err != nil {
		return nil, nil, err
	}

	body, err = l.blobs.Read(ctx, rec.BlobLocator)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, nil, ErrNotFound
		}

		return nil, nil, fmt.Errorf("read blob: %w", err)
	}

	changed, incErr := l.repo.IncrementDownloadCount(ctx, token)

	switch {
	case incErr != nil:
		l.bestEffort(ctx, "increment_download_count", incErr, map[string]any{"token": token})
	case changed:
		rec.DownloadCount++
	default:
		// 读取之后被并发删除
		_ = body.Close()

		return nil, nil, ErrNotFound
	}

	l.publish(ctx, queue.TopicFileDownloaded, func(ctx context.Context) error {
		return l.events.FileDownloaded(ctx, queue.FileDownloadedPayload{
			File:          fileRef(rec),
			DownloadCount: int64(rec.DownloadCount),
			Via:           queue.ViaToken,
		})
	})

	return rec, body, nil
}

// Info 返回文件信息，不读取内容也不计数.
func (l *FileLifecycle) Info(ctx context.Context, token string) (rec *model.FileRecord, err error) {
	ctx, end := l.begin(ctx, opInfo)
	defer func() { end(err) }()

	rec, err = l.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := l.available(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

// Remove 删除文件：先删 blob（失败只记录），再软删除记录.
func (l *FileLifecycle) Remove(ctx context.Context, token string) (err error) {
	ctx, end := l.begin(ctx, opRemove)
	defer func() { end(err) }()

	rec, err := l.lookup(ctx, token)
	if err != nil {
		return err
	}

	if delErr := l.blobs.Delete(ctx, rec.BlobLocator); delErr != nil {
		l.bestEffort(ctx, "remove_blob_delete", delErr, map[string]any{"token": token, "locator": rec.BlobLocator})
	}

	changed, err := l.repo.SoftDelete(ctx, token)
	if err != nil {
		return err
	}

	l.invalidate(ctx, rec.BlobLocator)

	if !changed {
		return ErrNotFound
	}

	l.logger.Info().Str("token", token).Str("locator", rec.BlobLocator).Msg("file removed")

	l.publish(ctx, queue.TopicFileRemoved, func(ctx context.Context) error {
		return l.events.FileRemoved(ctx, queue.FileRemovedPayload{File: fileRef(rec)})
	})

	return nil
}
