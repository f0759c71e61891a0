package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yeisme/dropvault/pkg/configs"
)

const amqpExchangeKind = "topic"

func init() {
	RegisterFactory(configs.MQTypeAMQP, amqpFactory)
}

// amqpFactory 创建 RabbitMQ Publisher & Subscriber.
// 所有主题发布到同一个 topic exchange，主题即 routing key.
func amqpFactory(
	_ context.Context,
	cfg configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	url := cfg.AMQP.URL
	if url == "" {
		url = cfg.Common.URL
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	if err := ch.ExchangeDeclare(
		cfg.AMQP.Exchange,
		amqpExchangeKind,
		cfg.AMQP.Durable,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}

	pub := &AMQPPublisher{conn: conn, channel: ch, cfg: cfg.AMQP}
	sub := &AMQPSubscriber{conn: conn, cfg: cfg.AMQP, logger: logger, closeCh: make(chan struct{})}

	return pub, sub, nil
}

// AMQPPublisher RabbitMQ Publisher 实现，共享一个 channel.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     configs.MQAMQPConfig

	mu sync.Mutex
}

// Publish 实现 Publisher 接口.
func (p *AMQPPublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, msg := range msgs {
		headers := amqp.Table{}
		for k, v := range msg.Metadata {
			headers[k] = v
		}

		mode := amqp.Transient
		if p.cfg.Durable {
			mode = amqp.Persistent
		}

		if err := p.channel.PublishWithContext(msg.Context(), p.cfg.Exchange, topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: mode,
			MessageId:    msg.UUID,
			Headers:      headers,
			Body:         msg.Payload,
		}); err != nil {
			return err
		}
	}

	return nil
}

// Close 关闭 channel 与连接，连接由 Subscriber 共享.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn.IsClosed() {
		return nil
	}

	return errors.Join(p.channel.Close(), p.conn.Close())
}

// AMQPSubscriber RabbitMQ Subscriber 实现，每个主题一个队列.
type AMQPSubscriber struct {
	conn   *amqp.Connection
	cfg    configs.MQAMQPConfig
	logger watermill.LoggerAdapter

	mu       sync.Mutex
	channels []*amqp.Channel
	closed   bool
	closeCh  chan struct{}
	wg       sync.WaitGroup
}

// queueName 返回主题对应的队列名.
func (s *AMQPSubscriber) queueName(topic string) string {
	if s.cfg.QueuePrefix == "" {
		return topic
	}

	return s.cfg.QueuePrefix + "." + topic
}

// Subscribe 实现 Subscriber 接口.
// Ack 对应 basic.ack，Nack 重新入队.
func (s *AMQPSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	ch, err := s.conn.Channel()
	if err != nil {
		return nil, err
	}

	deliveries, err := s.declareAndConsume(ch, topic)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}

	s.channels = append(s.channels, ch)
	out := make(chan *message.Message, DefaultChannelBufferSize)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		defer close(out)

		for {
			select {
			case <-s.closeCh:
				return
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				if !s.deliver(ctx, out, d) {
					return
				}
			}
		}
	}()

	return out, nil
}

func (s *AMQPSubscriber) declareAndConsume(ch *amqp.Channel, topic string) (<-chan amqp.Delivery, error) {
	q, err := ch.QueueDeclare(s.queueName(topic), s.cfg.Durable, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, topic, s.cfg.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	if s.cfg.Prefetch > 0 {
		if err := ch.Qos(s.cfg.Prefetch, 0, false); err != nil {
			return nil, err
		}
	}

	return ch.Consume(q.Name, "", false, false, false, false, nil)
}

// deliver 投递一条消息并等待确认，返回 false 表示订阅应结束.
func (s *AMQPSubscriber) deliver(ctx context.Context, out chan<- *message.Message, d amqp.Delivery) bool {
	id := d.MessageId
	if id == "" {
		id = watermill.NewUUID()
	}

	msg := message.NewMessage(id, d.Body)
	for k, v := range d.Headers {
		if str, ok := v.(string); ok {
			msg.Metadata.Set(k, str)
		}
	}

	msg.SetContext(ctx)

	select {
	case out <- msg:
	case <-s.closeCh:
		_ = d.Nack(false, true)
		return false
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return false
	}

	select {
	case <-msg.Acked():
		if err := d.Ack(false); err != nil {
			s.logger.Error("amqp ack 失败", err, watermill.LogFields{"message_uuid": id})
		}
	case <-msg.Nacked():
		_ = d.Nack(false, true)
	case <-s.closeCh:
		_ = d.Nack(false, true)
		return false
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return false
	}

	return true
}

// Close 实现 Subscriber 接口.
func (s *AMQPSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	s.closed = true
	close(s.closeCh)

	var errs []error

	if !s.conn.IsClosed() {
		for _, ch := range s.channels {
			errs = append(errs, ch.Close())
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	return errors.Join(errs...)
}
