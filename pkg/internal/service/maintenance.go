package service

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yeisme/dropvault/pkg/internal/model"
	"github.com/yeisme/dropvault/pkg/internal/repository"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
	"github.com/yeisme/dropvault/pkg/metrics"
	"github.com/yeisme/dropvault/pkg/queue"
)

// ReconcileResult 孤儿对账结果.
type ReconcileResult struct {
	Scanned int `json:"scanned"`
	Orphans int `json:"orphans"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Sweep 清理所有过期记录：并发删除 blob，再用一条 UPDATE 软删除，返回影响行数.
// blob 删除失败不会阻止软删除，遗留的 blob 由 Reconcile 或 Purge 回收.
func (l *FileLifecycle) Sweep(ctx context.Context) (cleaned int64, err error) {
	ctx, end := l.begin(ctx, opSweep)
	defer func() { end(err) }()

	// 列出之后的步骤不随调用方取消，blob 已删除的记录必须完成软删除
	ctx = context.WithoutCancel(ctx)
	asOf := l.clock()

	expired, err := l.repo.ListExpired(ctx, asOf)
	if err != nil {
		return 0, err
	}

	failures := l.deleteBlobs(ctx, "sweep_blob_delete", expired, nil)

	cleaned, err = l.repo.SoftDeleteExpired(ctx, asOf)
	if err != nil {
		return 0, err
	}

	for i := range expired {
		l.invalidate(ctx, expired[i].BlobLocator)
	}

	metrics.MaintenanceItems.WithLabelValues(opSweep).Add(float64(cleaned))
	l.logger.Info().
		Time("as_of", asOf).
		Int("listed", len(expired)).
		Int64("cleaned", cleaned).
		Int("blob_failures", len(failures)).
		Msg("sweep completed")

	l.publish(ctx, queue.TopicSweepCompleted, func(ctx context.Context) error {
		return l.events.SweepCompleted(ctx, queue.SweepCompletedPayload{
			AsOf:         asOf,
			Listed:       len(expired),
			Cleaned:      cleaned,
			BlobFailures: len(failures),
		})
	})

	return cleaned, nil
}

// deleteBlobs 以 SweepConcurrency 并发删除 recs 的 blob，跳过 keep 中的 locator.
// 返回删除失败的记录 id.
func (l *FileLifecycle) deleteBlobs(ctx context.Context, op string, recs []model.FileRecord, keep map[string]bool) map[string]bool {
	var (
		mu     sync.Mutex
		failed = make(map[string]bool)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.SweepConcurrency)

	for i := range recs {
		rec := &recs[i]
		if keep[rec.BlobLocator] {
			continue
		}

		g.Go(func() error {
			if err := l.blobs.Delete(gctx, rec.BlobLocator); err != nil {
				mu.Lock()
				failed[rec.ID] = true
				mu.Unlock()

				l.bestEffort(gctx, op, err, map[string]any{"token": rec.ShareToken, "locator": rec.BlobLocator})
			}

			return nil
		})
	}

	_ = g.Wait()

	return failed
}

// Purge 物理删除软删除超过 retentionDays 天的记录.
// 删除前再次尝试删除 blob，blob 仍无法删除的记录保留到下一次 Purge.
// 仍被未删除记录引用的 locator 不会被删除.
func (l *FileLifecycle) Purge(ctx context.Context, retentionDays int) (purged int64, err error) {
	ctx, end := l.begin(ctx, opPurge)
	defer func() { end(err) }()

	if retentionDays < 0 {
		return 0, fmt.Errorf("%w: retention days must not be negative", ErrInvalidInput)
	}

	recs, err := l.repo.ListPurgeable(ctx, retentionDays)
	if err != nil {
		return 0, err
	}

	locators := make([]string, 0, len(recs))
	for i := range recs {
		locators = append(locators, recs[i].BlobLocator)
	}

	used, err := l.repo.LocatorsInUse(ctx, locators)
	if err != nil {
		return 0, err
	}

	failed := l.deleteBlobs(ctx, "purge_blob_delete", recs, used)

	ids := make([]string, 0, len(recs))
	for i := range recs {
		if !failed[recs[i].ID] {
			ids = append(ids, recs[i].ID)
		}
	}

	purged, err = l.repo.PurgeByIDs(ctx, ids)
	if err != nil {
		return purged, err
	}

	metrics.MaintenanceItems.WithLabelValues(opPurge).Add(float64(purged))
	l.logger.Info().
		Int("retention_days", retentionDays).
		Int64("purged", purged).
		Int("held", len(failed)).
		Msg("purge completed")

	l.publish(ctx, queue.TopicPurgeCompleted, func(ctx context.Context) error {
		return l.events.PurgeCompleted(ctx, queue.PurgeCompletedPayload{RetentionDays: retentionDays, Purged: purged})
	})

	return purged, nil
}

// Reconcile 删除没有任何未删除记录引用的 blob.
// 只处理存在时间超过 OrphanGrace 的对象，正在上传的文件不会被误删.
func (l *FileLifecycle) Reconcile(ctx context.Context) (res ReconcileResult, err error) {
	ctx, end := l.begin(ctx, opReconcile)
	defer func() { end(err) }()

	cutoff := l.clock().Add(-l.cfg.OrphanGrace)

	var (
		candidates []blob.ObjectInfo
		locators   []string
	)

	for obj, err := range l.blobs.List(ctx) {
		if err != nil {
			return res, fmt.Errorf("list blobs: %w", err)
		}

		res.Scanned++

		if obj.ModTime.After(cutoff) {
			continue
		}

		candidates = append(candidates, obj)
		locators = append(locators, obj.Locator)
		locators = append(locators, l.cfg.Naming.Candidates(obj.Name)...)
	}

	used, err := l.repo.LocatorsInUse(ctx, locators)
	if err != nil {
		return res, err
	}

	for _, obj := range candidates {
		if referenced(used, obj, l.cfg.Naming) {
			continue
		}

		res.Orphans++

		if err := l.blobs.Delete(ctx, obj.Locator); err != nil {
			res.Failed++

			l.bestEffort(ctx, "reconcile_blob_delete", err, map[string]any{"locator": obj.Locator})

			continue
		}

		res.Removed++
	}

	metrics.MaintenanceItems.WithLabelValues(opReconcile).Add(float64(res.Removed))
	l.logger.Info().
		Int("scanned", res.Scanned).
		Int("orphans", res.Orphans).
		Int("removed", res.Removed).
		Int("failed", res.Failed).
		Msg("reconcile completed")

	l.publish(ctx, queue.TopicReconcileCompleted, func(ctx context.Context) error {
		return l.events.ReconcileCompleted(ctx, queue.ReconcileCompletedPayload(res))
	})

	return res, nil
}

func referenced(used map[string]bool, obj blob.ObjectInfo, naming blob.Naming) bool {
	if used[obj.Locator] {
		return true
	}

	for _, c := range naming.Candidates(obj.Name) {
		if used[c] {
			return true
		}
	}

	return false
}

// Stats 返回 files 表概况.
func (l *FileLifecycle) Stats(ctx context.Context) (s repository.Stats, err error) {
	ctx, end := l.begin(ctx, opStats)
	defer func() { end(err) }()

	return l.repo.Stats(ctx, l.clock())
}
