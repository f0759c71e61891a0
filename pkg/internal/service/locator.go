package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/yeisme/dropvault/pkg/cache"
	"github.com/yeisme/dropvault/pkg/internal/model"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
	"github.com/yeisme/dropvault/pkg/queue"
)

// locatorEntry 缓存中的 locator 映射，只包含创建后不会再变化的字段.
type locatorEntry struct {
	ID          string    `json:"id"`
	Token       string    `json:"token"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	Locator     string    `json:"locator"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func entryOf(rec *model.FileRecord) locatorEntry {
	return locatorEntry{
		ID:          rec.ID,
		Token:       rec.ShareToken,
		Filename:    rec.Filename,
		Size:        rec.FileSize,
		ContentType: rec.ContentTypeOr(""),
		Locator:     rec.BlobLocator,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
}

// record 还原为记录，DownloadCount 不在缓存中.
func (e locatorEntry) record() *model.FileRecord {
	rec := &model.FileRecord{
		ID:          e.ID,
		ShareToken:  e.Token,
		Filename:    e.Filename,
		FileSize:    e.Size,
		BlobLocator: e.Locator,
		CreatedAt:   e.CreatedAt,
		ExpiresAt:   e.ExpiresAt,
	}

	if e.ContentType != "" {
		ct := e.ContentType
		rec.ContentType = &ct
	}

	return rec
}

// LocatorFile ServeLocator 的结果.
type LocatorFile struct {
	// DisplayName 下载时使用的文件名，没有记录时为对象名本身.
	DisplayName string
	// Record 对应的记录，可能为 nil.
	Record *model.FileRecord
	Body   io.ReadCloser
}

// findByName 经缓存按对象名查找记录.
func (l *FileLifecycle) findByName(ctx context.Context, name string) (*model.FileRecord, error) {
	load := func() (locatorEntry, error) {
		rec, err := l.repo.FindByLocator(ctx, l.cfg.Naming.Candidates(name)...)
		if err != nil {
			return locatorEntry{}, err
		}

		return entryOf(rec), nil
	}

	if l.cache == nil {
		e, err := load()
		if err != nil {
			return nil, err
		}

		return e.record(), nil
	}

	e, err := cache.GetOrSet(ctx, l.cache, name, load, l.cfg.LocatorCacheTTL)
	if err != nil {
		return nil, err
	}

	return e.record(), nil
}

// invalidate 删除 locator 对应的缓存项.
func (l *FileLifecycle) invalidate(ctx context.Context, locator string) {
	if l.cache == nil {
		return
	}

	name, err := blob.NameFromLocator(locator)
	if err != nil {
		return
	}

	if err := l.cache.Delete(ctx, name); err != nil {
		l.bestEffort(ctx, "cache_invalidate", err, map[string]any{"locator": locator})
	}
}

// settled 判断对象存在时间是否已超过 OrphanGrace.
func (l *FileLifecycle) settled(ctx context.Context, name string) bool {
	info, err := l.blobs.Stat(ctx, l.cfg.Naming.Candidates(name)[0])
	if err != nil {
		return false
	}

	return !info.ModTime.After(l.clock().Add(-l.cfg.OrphanGrace))
}

// ServeLocator 按对象名提供文件，用于 /api/file/<name> 与 /uploads/<name>.
// 先打开 blob，已删除的文件即使缓存未失效也不会被返回.
// 找不到记录时以对象名作为下载文件名，仅限从未被引用且存在超过 OrphanGrace 的对象.
func (l *FileLifecycle) ServeLocator(ctx context.Context, name string) (lf *LocatorFile, err error) {
	ctx, end := l.begin(ctx, opServe)
	defer func() { end(err) }()

	if _, err := blob.NameFromLocator(name); err != nil {
		return nil, ErrNotFound
	}

	body, err := l.blobs.Read(ctx, l.cfg.Naming.Candidates(name)[0])
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	rec, err := l.findByName(ctx, name)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			_ = body.Close()
			return nil, err
		}

		// 只有从未被任何记录引用过的对象才按原名提供
		known, refErr := l.repo.LocatorReferenced(ctx, l.cfg.Naming.Candidates(name)...)
		if refErr != nil || known {
			_ = body.Close()

			if refErr != nil {
				return nil, refErr
			}

			return nil, ErrNotFound
		}

		// 上传中或补偿删除失败的对象在 OrphanGrace 内不对外提供
		if !l.settled(ctx, name) {
			_ = body.Close()
			return nil, ErrNotFound
		}

		return &LocatorFile{DisplayName: name, Body: body}, nil
	}

	if rec.IsExpired(l.clock()) {
		_ = body.Close()
		l.expire(ctx, rec)

		return nil, ErrNotFound
	}

	changed, incErr := l.repo.IncrementDownloadCount(ctx, rec.ShareToken)

	switch {
	case incErr != nil:
		l.bestEffort(ctx, "increment_download_count", incErr, map[string]any{"token": rec.ShareToken})
	case !changed:
		// 记录已被删除，缓存尚未失效
		_ = body.Close()
		l.invalidate(ctx, rec.BlobLocator)

		return nil, ErrNotFound
	}

	l.publish(ctx, queue.TopicFileDownloaded, func(ctx context.Context) error {
		return l.events.FileDownloaded(ctx, queue.FileDownloadedPayload{File: fileRef(rec), Via: queue.ViaLocator})
	})

	return &LocatorFile{DisplayName: rec.Filename, Record: rec, Body: body}, nil
}
