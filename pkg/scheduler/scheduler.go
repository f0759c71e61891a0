// Package scheduler 提供定时任务调度功能，使用 gocron/v2 库.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yeisme/dropvault/pkg/log"
)

// updateInterval 定义状态更新间隔.
const updateInterval = 10 * time.Second

var (
	// ErrJobNotFound 任务不存在.
	ErrJobNotFound = errors.New("scheduler: job not found")
	// ErrJobExists 同名任务已存在.
	ErrJobExists = errors.New("scheduler: job already exists")
)

// JobStatus 表示任务的状态类型.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled" // 任务已调度
	StatusRunning   JobStatus = "running"   // 任务正在运行
	StatusError     JobStatus = "error"     // 上一次运行失败
)

// JobFunc 任务函数，返回的错误会记录到任务状态中.
type JobFunc func(ctx context.Context) error

// JobInfo 表示定时任务的信息，用于可视化和监控.
type JobInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	CronExpr     string        `json:"cron_expr"`
	NextRun      time.Time     `json:"next_run"`
	LastRun      time.Time     `json:"last_run"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	Status       JobStatus     `json:"status"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Scheduler 在 gocron 之上维护按名称索引的任务状态.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job // 以任务名称为键
	jobInfos  map[string]*JobInfo   // 以任务名称为键
	jobIDs    map[uuid.UUID]string  // 以任务ID为键，映射到名称
	mu        sync.RWMutex
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler 创建一个新的 Scheduler 实例.
func NewScheduler(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	scheduler := &Scheduler{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		jobInfos:  make(map[string]*JobInfo),
		jobIDs:    make(map[uuid.UUID]string),
		logger:    log.Component("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}

	// 启动后台任务状态更新器
	go scheduler.jobStatusUpdater()

	return scheduler, nil
}

// AddCron 添加一个基于 cron 表达式的定时任务.
// 同一任务不会并发执行，上一次未结束时本次调度被跳过.
func (s *Scheduler) AddCron(ctx context.Context, name, cronExpr string, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	j, err := s.scheduler.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func(ctx context.Context) error {
			return s.run(ctx, name, job)
		}, ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("add job %s: %w", name, err)
	}

	now := time.Now()
	nextRun, _ := j.NextRun()

	s.jobs[name] = j
	s.jobIDs[j.ID()] = name
	s.jobInfos[name] = &JobInfo{
		ID:        j.ID().String(),
		Name:      name,
		CronExpr:  cronExpr,
		NextRun:   nextRun,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("added cron job")

	return nil
}

// run 执行任务并记录状态，panic 被转换为错误.
func (s *Scheduler) run(ctx context.Context, name string, job JobFunc) (err error) {
	start := time.Now()
	s.update(name, func(info *JobInfo) {
		info.Status = StatusRunning
		info.LastRun = start
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job: %v", r)
		}

		s.finish(name, start, err)
	}()

	return job(ctx)
}

func (s *Scheduler) finish(name string, start time.Time, err error) {
	elapsed := time.Since(start)

	s.update(name, func(info *JobInfo) {
		info.Runs++
		info.LastDuration = elapsed

		if err != nil {
			info.Failures++
			info.Status = StatusError
			info.Error = err.Error()

			return
		}

		info.Status = StatusScheduled
		info.Error = ""
		info.LastSuccess = time.Now()
	})

	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("elapsed", elapsed).Msg("job failed")
		return
	}

	s.logger.Debug().Str("job", name).Dur("elapsed", elapsed).Msg("job finished")
}

// RunNow 立即异步执行指定任务一次，不影响原有调度.
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if err := job.RunNow(); err != nil {
		return fmt.Errorf("run job %s: %w", name, err)
	}

	s.logger.Info().Str("job", name).Msg("job triggered")

	return nil
}

// RemoveJob 按任务 ID 或名称移除任务.
func (s *Scheduler) RemoveJob(idOrName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := idOrName
	if id, err := uuid.Parse(idOrName); err == nil {
		if n, ok := s.jobIDs[id]; ok {
			name = n
		}
	}

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, idOrName)
	}

	if err := s.scheduler.RemoveJob(job.ID()); err != nil {
		return err
	}

	delete(s.jobs, name)
	delete(s.jobInfos, name)
	delete(s.jobIDs, job.ID())

	s.logger.Info().Str("job", name).Msg("removed job")

	return nil
}

// GetJobInfoByName 通过名称获取任务信息的副本.
func (s *Scheduler) GetJobInfoByName(name string) (JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, exists := s.jobInfos[name]
	if !exists {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return *info, nil
}

// GetJobInfos 返回所有定时任务的信息，按名称排序.
func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]JobInfo, 0, len(s.jobInfos))
	for _, info := range s.jobInfos {
		jobs = append(jobs, *info)
	}

	slices.SortFunc(jobs, func(a, b JobInfo) int { return strings.Compare(a.Name, b.Name) })

	return jobs
}

// JobsWaitingInQueue 等待执行的任务数.
func (s *Scheduler) JobsWaitingInQueue() int {
	return s.scheduler.JobsWaitingInQueue()
}

// Start 启动调度器.
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.GetJobInfos())).Msg("starting scheduler")
	s.scheduler.Start()
}

// Shutdown 停止调度器并等待运行中的任务结束.
func (s *Scheduler) Shutdown() error {
	s.logger.Info().Msg("stopping scheduler")
	s.cancel()

	return s.scheduler.Shutdown()
}

func (s *Scheduler) update(name string, fn func(*JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, exists := s.jobInfos[name]; exists {
		fn(info)
		info.UpdatedAt = time.Now()
	}
}

// jobStatusUpdater 定期刷新下次运行时间.
func (s *Scheduler) jobStatusUpdater() {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refreshNextRuns()
		}
	}
}

func (s *Scheduler) refreshNextRuns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, job := range s.jobs {
		info := s.jobInfos[name]
		if info == nil {
			continue
		}

		if nextRun, err := job.NextRun(); err == nil {
			info.NextRun = nextRun
		}
	}
}
