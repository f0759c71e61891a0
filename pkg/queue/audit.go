package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
)

// Subscriber 订阅主题，mq.Client 实现此接口.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

// Audit 订阅给定主题并把每条事件写入日志，阻塞直到 ctx 取消或全部通道关闭.
func Audit(ctx context.Context, sub Subscriber, topics []string, logger zerolog.Logger) error {
	var wg sync.WaitGroup

	for _, topic := range topics {
		ch, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			for msg := range ch {
				auditOne(logger, topic, msg)
				msg.Ack()
			}
		}()
	}

	wg.Wait()

	return nil
}

func auditOne(logger zerolog.Logger, topic string, msg *message.Message) {
	hdr, err := PeekHeader(msg)
	if err != nil {
		logger.Warn().Err(err).Str("topic", topic).Str("message_uuid", msg.UUID).Msg("无法解析事件")
		return
	}

	logger.Info().
		Str("topic", topic).
		Str("message_uuid", msg.UUID).
		Str("producer", hdr.Producer).
		Str("trace_id", hdr.TraceID).
		Time("occurred_at", hdr.OccurredAt).
		RawJSON("event", msg.Payload).
		Msg("lifecycle event")
}
