// Package mq 提供基于 Watermill 的统一消息队列接口，用于发布文件生命周期事件.
// 通过工厂注册表抽象不同的 MQ 实现.
//
// 支持的 MQ 类型：
//   - gochannel（进程内，默认）
//   - NATS（支持 JetStream）
//   - Redis Pub/Sub
//   - AMQP 0-9-1（RabbitMQ）
//
// 使用示例：
//
//	client, err := mq.Open(ctx, cfg.MQ, mq.Options{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	msg := message.NewMessage(watermill.NewUUID(), []byte("hello"))
//	err = client.Publish(ctx, "dv.file.uploaded", msg)
//
//	ch, err := client.Subscribe(ctx, "dv.file.uploaded")
//	for m := range ch {
//		fmt.Println(string(m.Payload))
//		m.Ack()
//	}
package mq

import (
	"context"
	"errors"
	"fmt"
	"slices"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/yeisme/dropvault/pkg/configs"
	nlog "github.com/yeisme/dropvault/pkg/log"
)

// ErrNotInitialized 客户端未初始化.
var ErrNotInitialized = errors.New("mq client not initialized")

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredTypes 返回已注册的 MQ 类型，按名称排序.
func GetRegisteredTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// Options 创建客户端的可选参数.
type Options struct {
	// Registerer 不为空且 Common.EnableMetrics 时，为 Publisher/Subscriber 加上 prometheus 指标.
	Registerer prometheus.Registerer
	// Logger 为空时使用全局日志器的 mq 组件.
	Logger *zerolog.Logger
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	typ        configs.MQType
	publisher  message.Publisher
	subscriber message.Subscriber
}

// Open 根据配置创建消息队列客户端.
func Open(ctx context.Context, cfg configs.MQConfig, opts Options) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	l := opts.Logger
	if l == nil {
		c := nlog.Component("mq")
		l = &c
	}

	logger := NewLoggerAdapter(l)

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	if cfg.Common.EnableMetrics && opts.Registerer != nil {
		builder := metrics.NewPrometheusMetricsBuilder(opts.Registerer, "", "")

		pub, err = builder.DecoratePublisher(pub)
		if err != nil {
			_ = sub.Close()
			return nil, fmt.Errorf("decorate publisher with metrics: %w", err)
		}

		sub, err = builder.DecorateSubscriber(sub)
		if err != nil {
			_ = pub.Close()
			return nil, fmt.Errorf("decorate subscriber with metrics: %w", err)
		}
	}

	l.Info().Str("type", string(cfg.Type)).Msg("MQ 客户端已初始化")

	return &Client{typ: cfg.Type, publisher: pub, subscriber: sub}, nil
}

// Type 返回客户端的 MQ 类型.
func (c *Client) Type() configs.MQType {
	if c == nil {
		return ""
	}

	return c.typ
}

// Publisher 返回底层 Publisher.
func (c *Client) Publisher() message.Publisher {
	if c == nil {
		return nil
	}

	return c.publisher
}

// Publish 发布消息，ctx 会附加到每条消息上.
func (c *Client) Publish(ctx context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return ErrNotInitialized
	}

	for _, m := range msgs {
		m.SetContext(ctx)
	}

	return c.publisher.Publish(topic, msgs...)
}

// Ping 检查客户端是否可用，watermill 不提供连通性探测，只确认 Publisher 已创建.
func (c *Client) Ping(_ context.Context) error {
	if c == nil || c.publisher == nil {
		return ErrNotInitialized
	}

	return nil
}

// Subscribe 订阅主题，ctx 取消时通道关闭.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, ErrNotInitialized
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Close 关闭 Publisher 与 Subscriber.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	var errs []error

	if c.publisher != nil {
		errs = append(errs, c.publisher.Close())
	}

	if c.subscriber != nil {
		errs = append(errs, c.subscriber.Close())
	}

	return errors.Join(errs...)
}
