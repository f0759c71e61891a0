package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/dropvault/pkg/configs"
)

const (
	DefaultDrainTimeout   = 30 * time.Second
	DefaultFlusherTimeout = 10 * time.Second
)

// init 注册 NATS 工厂.
func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

// buildNatsOptions 构建 NATS 连接选项.
func buildNatsOptions(cfg configs.MQConfig) []nc.Option {
	opts := []nc.Option{
		nc.Name(cfg.Common.ClientID),
		nc.MaxReconnects(cfg.Common.MaxReconnects),
		nc.ReconnectWait(time.Duration(cfg.Common.ReconnectWait) * time.Second),
		nc.PingInterval(time.Duration(cfg.Common.PingInterval) * time.Second),
		nc.ReconnectBufSize(cfg.Common.BufferSize),
		nc.DrainTimeout(DefaultDrainTimeout),
		nc.FlusherTimeout(DefaultFlusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	return appendAuthOptions(opts, cfg)
}

// appendAuthOptions 添加认证选项，优先级 JWT > NKey > 用户名密码.
func appendAuthOptions(opts []nc.Option, cfg configs.MQConfig) []nc.Option {
	switch {
	case cfg.NATS.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.NATS.JWT, cfg.NATS.NKey))
	case cfg.NATS.NKey != "":
		opts = append(opts, nc.Nkey(cfg.NATS.NKey, nil))
	case cfg.Common.User != "":
		opts = append(opts, nc.UserInfo(cfg.Common.User, cfg.Common.Password))
	}

	return opts
}

// buildJetStreamConfig 构建 JetStream 配置.
func buildJetStreamConfig(cfg configs.MQNATSConfig) nats.JetStreamConfig {
	if !cfg.JetStreamEnabled {
		return nats.JetStreamConfig{Disabled: true}
	}

	return nats.JetStreamConfig{
		AutoProvision: cfg.JetStreamAutoProvision,
		TrackMsgId:    cfg.JetStreamTrackMsgID,
		AckAsync:      cfg.JetStreamAckAsync,
		DurablePrefix: cfg.JetStreamDurablePrefix,
	}
}

// buildURL 构建连接 URL，配置了集群地址时优先使用.
func buildURL(cfg configs.MQConfig) string {
	if len(cfg.NATS.ClusterURLs) > 0 {
		return strings.Join(cfg.NATS.ClusterURLs, ",")
	}

	return cfg.Common.URL
}

// subjectCalculator 在主题前加上 SubjectPrefix.
func subjectCalculator(prefix string) nats.SubjectCalculator {
	return func(queueGroupPrefix, topic string) *nats.SubjectDetail {
		return nats.DefaultSubjectCalculator(queueGroupPrefix, prefix+topic)
	}
}

// natsFactory 创建 NATS Publisher & Subscriber.
func natsFactory(
	_ context.Context,
	cfg configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	opts := buildNatsOptions(cfg)
	jsCfg := buildJetStreamConfig(cfg.NATS)
	marshaler := &nats.JSONMarshaler{}
	calc := subjectCalculator(cfg.NATS.SubjectPrefix)

	if !jsCfg.Disabled {
		logger.Info("JetStream 已启用", watermill.LogFields{
			"auto_provision": cfg.NATS.JetStreamAutoProvision,
			"track_msg_id":   cfg.NATS.JetStreamTrackMsgID,
			"ack_async":      cfg.NATS.JetStreamAckAsync,
			"durable_prefix": cfg.NATS.JetStreamDurablePrefix,
			"subject_prefix": cfg.NATS.SubjectPrefix,
		})
	}

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:               buildURL(cfg),
		NatsOptions:       opts,
		Marshaler:         marshaler,
		JetStream:         jsCfg,
		SubjectCalculator: calc,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:               buildURL(cfg),
		QueueGroupPrefix:  cfg.NATS.QueueGroupPrefix,
		NatsOptions:       opts,
		Unmarshaler:       marshaler,
		JetStream:         jsCfg,
		SubjectCalculator: calc,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}

	return pub, sub, nil
}
