// Package storage 聚合服务用到的全部存储资源：元数据库、blob 存储、KV 缓存与消息队列.
//
// Example:
//
//	mgr, err := storage.Open(ctx, configs.GetConfig(), storage.Options{})
//	if err != nil {
//	    // 处理错误
//	}
//	defer mgr.Close()
//
//	repo := repository.NewFileRepository(mgr.DB.GetDB())
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/dropvault/pkg/internal/storage/db"
	"github.com/yeisme/dropvault/pkg/internal/storage/kv"
	"github.com/yeisme/dropvault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/dropvault/pkg/log"
)

// Manager 持有已打开的存储句柄，由调用方负责 Close.
type Manager struct {
	DB   *dbc.Client
	Blob blob.Store
	KV   kv.KVStore
	MQ   *mq.Client
}

// Options 打开存储时的可选项.
type Options struct {
	// Registerer 非空时为数据库与消息队列注册指标.
	Registerer prometheus.Registerer
	// SkipMQ 只做维护任务的命令不需要消息队列.
	SkipMQ bool
}

// Open 按配置依次打开各存储，任何一步失败都会关闭已打开的资源.
func Open(ctx context.Context, cfg *configs.AppConfig, opts Options) (m *Manager, err error) {
	m = &Manager{}

	defer func() {
		if err != nil {
			_ = m.Close()
			m = nil
		}
	}()

	var dbOpts dbc.Options
	if opts.Registerer != nil {
		dbOpts.Metrics = &cfg.Metrics
	}

	if m.DB, err = dbc.New(ctx, cfg.DB, dbOpts); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if m.Blob, err = blob.Open(ctx, cfg.Storage); err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	if m.KV, err = kv.Open(ctx, cfg.KV); err != nil {
		return nil, fmt.Errorf("open kv: %w", err)
	}

	if !opts.SkipMQ {
		if m.MQ, err = mq.Open(ctx, cfg.MQ, mq.Options{Registerer: opts.Registerer}); err != nil {
			return nil, fmt.Errorf("open mq: %w", err)
		}
	}

	nlog.Logger().Info().
		Str("db", cfg.DB.GetDBType()).
		Str("blob", string(cfg.Storage.Type)).
		Str("kv", cfg.KV.GetKVType()).
		Str("mq", string(m.MQ.Type())).
		Msg("storage manager initialized")

	return m, nil
}

// Close 关闭全部已打开的资源，消息队列最先关闭以停止新的事件.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	var errs []error

	if m.MQ != nil {
		errs = append(errs, m.MQ.Close())
	}

	if m.KV != nil {
		errs = append(errs, m.KV.Close())
	}

	if m.Blob != nil {
		errs = append(errs, m.Blob.Close())
	}

	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}

	return errors.Join(errs...)
}
