package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/jobs"
	"github.com/yeisme/dropvault/pkg/internal/service"
	"github.com/yeisme/dropvault/pkg/scheduler"
)

type fakeMaintainer struct {
	mu        sync.Mutex
	calls     []string
	purgeDays int
	reconcile service.ReconcileResult
}

func (f *fakeMaintainer) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeMaintainer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

func (f *fakeMaintainer) Sweep(context.Context) (int64, error) {
	f.record("sweep")
	return 2, nil
}

func (f *fakeMaintainer) Purge(_ context.Context, days int) (int64, error) {
	f.mu.Lock()
	f.purgeDays = days
	f.mu.Unlock()
	f.record("purge")

	return 0, nil
}

func (f *fakeMaintainer) Reconcile(context.Context) (service.ReconcileResult, error) {
	f.record("reconcile")
	return f.reconcile, nil
}

func lifecycleConfig() configs.LifecycleConfig {
	return configs.LifecycleConfig{
		RetentionDays: 7,
		SweepCron:     "0 0 1 1 *",
		PurgeCron:     "0 0 1 1 *",
		ReconcileCron: "0 0 1 1 *",
	}
}

func newScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()

	s, err := scheduler.NewScheduler()
	require.NoError(t, err)

	s.Start()
	t.Cleanup(func() { _ = s.Shutdown() })

	return s
}

func TestRegisterCronJobs(t *testing.T) {
	s := newScheduler(t)
	m := &fakeMaintainer{}

	require.NoError(t, jobs.RegisterCronJobs(context.Background(), s, m, lifecycleConfig()))

	names := make([]string, 0, 3)
	for _, info := range s.GetJobInfos() {
		names = append(names, info.Name)
	}

	assert.Equal(t, []string{jobs.JobPurge, jobs.JobReconcile, jobs.JobSweep}, names)

	for _, name := range names {
		require.NoError(t, s.RunNow(name))
	}

	require.Eventually(t, func() bool { return len(m.Calls()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"sweep", "purge", "reconcile"}, m.Calls())

	m.mu.Lock()
	assert.Equal(t, 7, m.purgeDays)
	m.mu.Unlock()
}

func TestReconcileFailuresMarkJobFailed(t *testing.T) {
	s := newScheduler(t)
	m := &fakeMaintainer{reconcile: service.ReconcileResult{Scanned: 4, Orphans: 2, Removed: 1, Failed: 1}}

	require.NoError(t, jobs.RegisterCronJobs(context.Background(), s, m, lifecycleConfig()))
	require.NoError(t, s.RunNow(jobs.JobReconcile))

	require.Eventually(t, func() bool {
		info, err := s.GetJobInfoByName(jobs.JobReconcile)
		return err == nil && info.Status == scheduler.StatusError
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReconcileOptional(t *testing.T) {
	s := newScheduler(t)

	cfg := lifecycleConfig()
	cfg.ReconcileCron = ""

	require.NoError(t, jobs.RegisterCronJobs(context.Background(), s, &fakeMaintainer{}, cfg))

	_, err := s.GetJobInfoByName(jobs.JobReconcile)
	assert.True(t, errors.Is(err, scheduler.ErrJobNotFound))
	assert.Len(t, s.GetJobInfos(), 2)
}

func TestRegisterRequiresDependencies(t *testing.T) {
	assert.Error(t, jobs.RegisterCronJobs(context.Background(), nil, &fakeMaintainer{}, lifecycleConfig()))
	assert.Error(t, jobs.RegisterCronJobs(context.Background(), newScheduler(t), nil, lifecycleConfig()))
}
