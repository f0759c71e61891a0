// Package repository 通过 GORM 访问 files 表，每个操作只做一次数据库往返.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeisme/dropvault/pkg/internal/model"
)

// locatorChunk IN 查询单批的最大参数个数.
const locatorChunk = 500

// Clock 返回当前时间.
type Clock func() time.Time

// FileRepository files 表的访问对象.
type FileRepository struct {
	db  *gorm.DB
	now Clock
}

// Option 配置 FileRepository.
type Option func(*FileRepository)

// WithClock 替换时间来源，测试中用于控制过期.
func WithClock(c Clock) Option {
	return func(r *FileRepository) {
		r.now = c
	}
}

// NewFileRepository 创建 FileRepository.
func NewFileRepository(db *gorm.DB, opts ...Option) *FileRepository {
	r := &FileRepository{db: db, now: time.Now}
	for _, o := range opts {
		o(r)
	}

	return r
}

func (r *FileRepository) clock() time.Time {
	return model.Normalize(r.now())
}

// InsertParams 新建记录的参数.
type InsertParams struct {
	Token       string
	Filename    string
	Size        int64
	ContentType string // 为空时存 NULL
	Locator     string
	TTL         time.Duration
}

// Migrate 创建或更新 files 表及其索引.
func (r *FileRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&model.FileRecord{}); err != nil {
		return fmt.Errorf("migrate files: %w", err)
	}

	return nil
}

// Insert 写入新记录，ExpiresAt = CreatedAt + TTL.
func (r *FileRepository) Insert(ctx context.Context, p InsertParams) (*model.FileRecord, error) {
	created := r.clock()

	rec := &model.FileRecord{
		ID:          uuid.NewString(),
		ShareToken:  p.Token,
		Filename:    p.Filename,
		FileSize:    p.Size,
		BlobLocator: p.Locator,
		CreatedAt:   created,
		ExpiresAt:   model.Normalize(created.Add(p.TTL)),
	}

	if p.ContentType != "" {
		ct := p.ContentType
		rec.ContentType = &ct
	}

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateToken, p.Token)
		}

		return nil, fmt.Errorf("%w: insert: %w", ErrMetadataWrite, err)
	}

	return rec, nil
}

// FindByToken 按 token 查询未删除的记录.
func (r *FileRepository) FindByToken(ctx context.Context, token string) (*model.FileRecord, error) {
	var rec model.FileRecord

	err := r.db.WithContext(ctx).
		Where("share_id = ? AND is_deleted = ?", token, false).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("find by token: %w", err)
	}

	return &rec, nil
}

// FindByLocator 返回 blob_url 命中任一候选的未删除记录，按候选顺序优先.
func (r *FileRepository) FindByLocator(ctx context.Context, locators ...string) (*model.FileRecord, error) {
	if len(locators) == 0 {
		return nil, ErrNotFound
	}

	var recs []model.FileRecord

	err := r.db.WithContext(ctx).
		Where("blob_url IN ? AND is_deleted = ?", locators, false).
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("find by locator: %w", err)
	}

	for _, loc := range locators {
		for i := range recs {
			if recs[i].BlobLocator == loc {
				return &recs[i], nil
			}
		}
	}

	return nil, ErrNotFound
}

// LocatorReferenced 判断是否有任何记录（包括已删除的）引用了候选 locator.
func (r *FileRepository) LocatorReferenced(ctx context.Context, locators ...string) (bool, error) {
	if len(locators) == 0 {
		return false, nil
	}

	var n int64

	err := r.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("blob_url IN ?", locators).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("locator referenced: %w", err)
	}

	return n > 0, nil
}

// SoftDelete 标记删除，仅对未删除的记录生效，DeletedAt 不会被覆盖.
func (r *FileRepository) SoftDelete(ctx context.Context, token string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("share_id = ? AND is_deleted = ?", token, false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": r.clock()})
	if res.Error != nil {
		return false, fmt.Errorf("%w: soft delete: %w", ErrMetadataWrite, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// IncrementDownloadCount 在数据库端原子加一.
func (r *FileRepository) IncrementDownloadCount(ctx context.Context, token string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("share_id = ? AND is_deleted = ?", token, false).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("%w: increment download count: %w", ErrMetadataWrite, res.Error)
	}

	return res.RowsAffected > 0, nil
}

// ListExpired 返回 expires_at <= asOf 且未删除的全部记录.
func (r *FileRepository) ListExpired(ctx context.Context, asOf time.Time) ([]model.FileRecord, error) {
	var recs []model.FileRecord

	err := r.db.WithContext(ctx).
		Where("expires_at <= ? AND is_deleted = ?", model.Normalize(asOf), false).
		Order("expires_at").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list expired: %w", err)
	}

	return recs, nil
}

// SoftDeleteExpired 用一条 UPDATE 标记所有过期记录，返回影响行数.
func (r *FileRepository) SoftDeleteExpired(ctx context.Context, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Where("expires_at <= ? AND is_deleted = ?", model.Normalize(asOf), false).
		Updates(map[string]any{"is_deleted": true, "deleted_at": r.clock()})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: soft delete expired: %w", ErrMetadataWrite, res.Error)
	}

	return res.RowsAffected, nil
}

// ListPurgeable 返回软删除超过 days 天的记录.
func (r *FileRepository) ListPurgeable(ctx context.Context, days int) ([]model.FileRecord, error) {
	cutoff := r.clock().Add(-time.Duration(days) * 24 * time.Hour)

	var recs []model.FileRecord

	err := r.db.WithContext(ctx).
		Where("is_deleted = ? AND deleted_at < ?", true, cutoff).
		Order("deleted_at").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list purgeable: %w", err)
	}

	return recs, nil
}

// PurgeByIDs 物理删除给定 id 中已软删除的记录，不触碰 blob.
func (r *FileRepository) PurgeByIDs(ctx context.Context, ids []string) (int64, error) {
	var purged int64

	for start := 0; start < len(ids); start += locatorChunk {
		end := min(start+locatorChunk, len(ids))

		res := r.db.WithContext(ctx).
			Where("id IN ? AND is_deleted = ?", ids[start:end], true).
			Delete(&model.FileRecord{})
		if res.Error != nil {
			return purged, fmt.Errorf("%w: purge: %w", ErrMetadataWrite, res.Error)
		}

		purged += res.RowsAffected
	}

	return purged, nil
}

// LocatorsInUse 返回 locators 中仍被未删除记录引用的子集.
func (r *FileRepository) LocatorsInUse(ctx context.Context, locators []string) (map[string]bool, error) {
	used := make(map[string]bool)

	for start := 0; start < len(locators); start += locatorChunk {
		end := min(start+locatorChunk, len(locators))

		var hits []string

		err := r.db.WithContext(ctx).
			Model(&model.FileRecord{}).
			Where("blob_url IN ? AND is_deleted = ?", locators[start:end], false).
			Pluck("blob_url", &hits).Error
		if err != nil {
			return nil, fmt.Errorf("locators in use: %w", err)
		}

		for _, h := range hits {
			used[h] = true
		}
	}

	return used, nil
}

// Stats files 表概况.
type Stats struct {
	Active         int64 `json:"active"`
	Expired        int64 `json:"expired"` // 已过期但尚未清理
	Deleted        int64 `json:"deleted"`
	ActiveBytes    int64 `json:"activeBytes"`
	TotalDownloads int64 `json:"totalDownloads"`
}

// Stats 以一次聚合查询统计记录状态.
func (r *FileRepository) Stats(ctx context.Context, asOf time.Time) (Stats, error) {
	asOf = model.Normalize(asOf)

	var s Stats

	err := r.db.WithContext(ctx).
		Model(&model.FileRecord{}).
		Select(`
			COALESCE(SUM(CASE WHEN is_deleted = ? AND expires_at > ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN is_deleted = ? AND expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired,
			COALESCE(SUM(CASE WHEN is_deleted = ? THEN 1 ELSE 0 END), 0) AS deleted,
			COALESCE(SUM(CASE WHEN is_deleted = ? AND expires_at > ? THEN file_size ELSE 0 END), 0) AS active_bytes,
			COALESCE(SUM(download_count), 0) AS total_downloads`,
			false, asOf, false, asOf, true, false, asOf).
		Scan(&s).Error
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	return s, nil
}
