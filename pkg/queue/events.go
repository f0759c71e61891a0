package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/dropvault/pkg/configs"
)

// Publisher 发布消息，mq.Client 实现此接口.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// Emitter 按 events 配置过滤主题并发布生命周期事件.
// 零值与 nil 都是合法的，不发布任何事件.
type Emitter struct {
	pub      Publisher
	cfg      configs.EventsConfig
	producer string
}

// NewEmitter 创建事件发布器，pub 为 nil 时所有事件被丢弃.
func NewEmitter(pub Publisher, cfg configs.EventsConfig, producer string) *Emitter {
	return &Emitter{pub: pub, cfg: cfg, producer: producer}
}

// Enabled 判断主题是否需要发布.
func (e *Emitter) Enabled(topic string) bool {
	if e == nil || e.pub == nil || !e.cfg.Enabled {
		return false
	}

	switch topic {
	case TopicFileUploaded:
		return e.cfg.File.Uploaded
	case TopicFileDownloaded:
		return e.cfg.File.Downloaded
	case TopicFileRemoved:
		return e.cfg.File.Removed
	case TopicFileExpired:
		return e.cfg.File.Expired
	case TopicSweepCompleted, TopicPurgeCompleted, TopicReconcileCompleted:
		return e.cfg.File.Maintenance
	default:
		return false
	}
}

// emit 构造并发布一条事件，TraceID 取自 ctx 中的 span.
func emit[T any](ctx context.Context, e *Emitter, topic string, payload T) error {
	if !e.Enabled(topic) {
		return nil
	}

	opts := []HeaderOption{WithProducer(e.producer)}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, WithTraceID(sc.TraceID().String()))
	}

	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		return err
	}

	return e.pub.Publish(ctx, topic, msg)
}

// FileUploaded 发布 dv.file.uploaded 事件.
func (e *Emitter) FileUploaded(ctx context.Context, p FileUploadedPayload) error {
	return emit(ctx, e, TopicFileUploaded, p)
}

// FileDownloaded 发布 dv.file.downloaded 事件.
func (e *Emitter) FileDownloaded(ctx context.Context, p FileDownloadedPayload) error {
	return emit(ctx, e, TopicFileDownloaded, p)
}

// FileRemoved 发布 dv.file.removed 事件.
func (e *Emitter) FileRemoved(ctx context.Context, p FileRemovedPayload) error {
	return emit(ctx, e, TopicFileRemoved, p)
}

// FileExpired 发布 dv.file.expired 事件.
func (e *Emitter) FileExpired(ctx context.Context, p FileExpiredPayload) error {
	return emit(ctx, e, TopicFileExpired, p)
}

// SweepCompleted 发布 dv.sweep.completed 事件.
func (e *Emitter) SweepCompleted(ctx context.Context, p SweepCompletedPayload) error {
	return emit(ctx, e, TopicSweepCompleted, p)
}

// PurgeCompleted 发布 dv.purge.completed 事件.
func (e *Emitter) PurgeCompleted(ctx context.Context, p PurgeCompletedPayload) error {
	return emit(ctx, e, TopicPurgeCompleted, p)
}

// ReconcileCompleted 发布 dv.reconcile.completed 事件.
func (e *Emitter) ReconcileCompleted(ctx context.Context, p ReconcileCompletedPayload) error {
	return emit(ctx, e, TopicReconcileCompleted, p)
}
