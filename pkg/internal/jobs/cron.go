// Package jobs 负责把文件生命周期的维护操作注册为定时任务（基于 scheduler）.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/service"
	"github.com/yeisme/dropvault/pkg/log"
	"github.com/yeisme/dropvault/pkg/scheduler"
)

// Maintainer 定时任务需要的维护操作，由 service.FileLifecycle 实现.
type Maintainer interface {
	Sweep(ctx context.Context) (int64, error)
	Purge(ctx context.Context, retentionDays int) (int64, error)
	Reconcile(ctx context.Context) (service.ReconcileResult, error)
}

var _ Maintainer = (*service.FileLifecycle)(nil)

// RegisterCronJobs 配置维护任务：
//   - sweep_cron 清理过期文件
//   - purge_cron 物理删除超过 retention_days 的软删除记录
//   - reconcile_cron 回收孤儿 blob，为空时不注册
func RegisterCronJobs(ctx context.Context, sched *scheduler.Scheduler, m Maintainer, cfg configs.LifecycleConfig) error {
	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if m == nil {
		return errors.New("maintainer is nil")
	}

	if err := sched.AddCron(ctx, JobSweep, cfg.SweepCron, func(ctx context.Context) error {
		return runSweep(ctx, m)
	}); err != nil {
		return err
	}

	retention := cfg.RetentionDays
	if err := sched.AddCron(ctx, JobPurge, cfg.PurgeCron, func(ctx context.Context) error {
		return runPurge(ctx, m, retention)
	}); err != nil {
		return err
	}

	if cfg.ReconcileCron == "" {
		return nil
	}

	return sched.AddCron(ctx, JobReconcile, cfg.ReconcileCron, func(ctx context.Context) error {
		return runReconcile(ctx, m)
	})
}

func runSweep(ctx context.Context, m Maintainer) error {
	l := log.Logger().With().Str("job", JobSweep).Logger()

	n, err := m.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	if n > 0 {
		l.Info().Int64("cleaned", n).Msg("expired files cleaned")
	}

	return nil
}

func runPurge(ctx context.Context, m Maintainer, days int) error {
	l := log.Logger().With().Str("job", JobPurge).Logger()

	n, err := m.Purge(ctx, days)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	if n > 0 {
		l.Info().Int64("purged", n).Int("retention_days", days).Msg("soft-deleted records purged")
	}

	return nil
}

func runReconcile(ctx context.Context, m Maintainer) error {
	l := log.Logger().With().Str("job", JobReconcile).Logger()

	res, err := m.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if res.Failed > 0 {
		return fmt.Errorf("reconcile: %d of %d orphans could not be removed", res.Failed, res.Orphans)
	}

	if res.Removed > 0 {
		l.Info().Int("removed", res.Removed).Int("scanned", res.Scanned).Msg("orphan blobs removed")
	}

	return nil
}
