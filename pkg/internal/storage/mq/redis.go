package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/yeisme/dropvault/pkg/configs"
)

// DefaultChannelBufferSize 默认通道缓冲区大小.
const DefaultChannelBufferSize = 100

// ErrClosed Publisher 或 Subscriber 已关闭.
var ErrClosed = errors.New("mq closed")

// wireMessage Redis 通道上的消息格式，保留 UUID 与元数据.
type wireMessage struct {
	UUID     string            `json:"uuid"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  []byte            `json:"payload"`
}

// RedisPublisher Redis Publisher 实现.
type RedisPublisher struct {
	client *redis.Client
}

// RedisSubscriber Redis Subscriber 实现，每次 Subscribe 使用独立的 PubSub.
type RedisSubscriber struct {
	client *redis.Client
	logger watermill.LoggerAdapter

	mu      sync.Mutex
	subs    []*redis.PubSub
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// init 注册 Redis 工厂.
func init() {
	RegisterFactory(configs.MQTypeRedis, redisFactory)
}

func newRedisClient(cfg configs.MQRedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// redisFactory 创建 Redis Publisher & Subscriber，两者使用不同的连接.
func redisFactory(
	ctx context.Context,
	cfg configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	pubClient := newRedisClient(cfg.Redis)
	if err := pubClient.Ping(ctx).Err(); err != nil {
		_ = pubClient.Close()
		return nil, nil, err
	}

	pub := &RedisPublisher{client: pubClient}
	sub := &RedisSubscriber{
		client:  newRedisClient(cfg.Redis),
		logger:  logger,
		closeCh: make(chan struct{}),
	}

	return pub, sub, nil
}

// Publish 实现 Publisher 接口.
func (p *RedisPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		data, err := sonic.Marshal(wireMessage{
			UUID:     msg.UUID,
			Metadata: msg.Metadata,
			Payload:  msg.Payload,
		})
		if err != nil {
			return err
		}

		if err := p.client.Publish(msg.Context(), topic, data).Err(); err != nil {
			return err
		}
	}

	return nil
}

// Close 实现 Publisher 接口.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Subscribe 实现 Subscriber 接口.
// 消息被 Ack 或 Nack 之后才投递下一条，Redis Pub/Sub 不支持重投，Nack 的消息直接丢弃.
func (s *RedisSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	ps := s.client.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	s.subs = append(s.subs, ps)
	out := make(chan *message.Message, DefaultChannelBufferSize)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		in := ps.Channel()

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}

				msg, err := decodeWire(raw.Payload)
				if err != nil {
					s.logger.Error("丢弃无法解析的 Redis 消息", err, watermill.LogFields{"topic": topic})
					continue
				}

				msg.SetContext(ctx)

				select {
				case out <- msg:
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}

				select {
				case <-msg.Acked():
				case <-msg.Nacked():
				case <-s.closeCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func decodeWire(payload string) (*message.Message, error) {
	var w wireMessage
	if err := sonic.UnmarshalString(payload, &w); err != nil {
		return nil, err
	}

	if w.UUID == "" {
		w.UUID = watermill.NewUUID()
	}

	msg := message.NewMessage(w.UUID, w.Payload)
	for k, v := range w.Metadata {
		msg.Metadata.Set(k, v)
	}

	return msg, nil
}

// Close 实现 Subscriber 接口.
func (s *RedisSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	close(s.closeCh)

	var errs []error
	for _, ps := range s.subs {
		errs = append(errs, ps.Close())
	}
	s.mu.Unlock()

	s.wg.Wait()

	errs = append(errs, s.client.Close())

	return errors.Join(errs...)
}
