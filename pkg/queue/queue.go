// Package queue 定义 DropVault 文件生命周期事件的消息封装与发布.
//
// 概览
//   - 统一的消息封装：Message[Payload] = Header + Payload
//   - 主题常量见 topics.go，负载结构体见 payloads.go
//   - 默认 JSON 编解码（bytedance/sonic）
//   - Emitter 按 events 配置过滤主题，发布失败只返回错误，由调用方决定是否忽略
//
// 消息信封 JSON 结构
//
//	{
//	  "header": {
//	    "topic": "dv.file.uploaded",
//	    "trace_id": "optional-trace-id",
//	    "producer": "dropvault",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { "file": { "id": "...", "token": "aB3xY9kQ", ... } }
//	}
//
// 发布/订阅示例
//
//	msg, _ := queue.NewWatermillMessage(queue.TopicFileUploaded, payload, queue.WithProducer("dropvault"))
//	_ = client.Publish(ctx, queue.TopicFileUploaded, msg)
//
//	ch, _ := client.Subscribe(ctx, queue.TopicFileUploaded)
//	for m := range ch {
//		env, _ := queue.ParseWatermillMessage[queue.FileUploadedPayload](m)
//		m.Ack()
//	}
//
// 注意事项
//  1. occurred_at 为 UTC，RFC3339 格式
//  2. version 便于后向兼容，建议消费者忽略未知字段
//  3. Header.topic 与消息中间件的 Subject/Topic 可能重复，意在离线可追踪
package queue

import (
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
)

const (
	PayloadVersionV1 string = "v1"
)

// 消息元数据键.
const (
	MetaTopic      = "topic"
	MetaTraceID    = "trace_id"
	MetaProducer   = "producer"
	MetaOccurredAt = "occurred_at"
	MetaVersion    = "version"
)

// HeaderOption 修改事件头.
type HeaderOption func(*EventHeader)

// NewEventHeader 便捷创建事件头.
func NewEventHeader(topic string, opts ...HeaderOption) EventHeader {
	hdr := EventHeader{
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithTraceID 设置 TraceID.
func WithTraceID(id string) HeaderOption { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) HeaderOption { return func(h *EventHeader) { h.Producer = p } }

// WithOccurredAt 设置事件时间，统一转为 UTC.
func WithOccurredAt(t time.Time) HeaderOption {
	return func(h *EventHeader) { h.OccurredAt = t.UTC() }
}

// Encode 将消息封装为 JSON 字节切片.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 字节解码为消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造一个 watermill 消息，头部字段同时写入元数据，便于不解包就能路由.
func NewWatermillMessage[T any](topic string, payload T, opts ...HeaderOption) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)

	data, err := Encode(Message[T]{Header: header, Payload: payload})
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetaTopic, topic)
	msg.Metadata.Set(MetaOccurredAt, header.OccurredAt.Format(time.RFC3339Nano))

	for k, v := range map[string]string{
		MetaTraceID:  header.TraceID,
		MetaProducer: header.Producer,
		MetaVersion:  header.Version,
	} {
		if v != "" {
			msg.Metadata.Set(k, v)
		}
	}

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}

// PeekHeader 只解出事件头，负载类型未知时使用.
func PeekHeader(msg *message.Message) (EventHeader, error) {
	env, err := Decode[skipPayload](msg.Payload)

	return env.Header, err
}

// skipPayload 解码时忽略负载内容.
type skipPayload struct{}
