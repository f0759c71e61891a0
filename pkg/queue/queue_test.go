package queue_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/queue"
)

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	msgs   []*message.Message
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range msgs {
		p.topics = append(p.topics, topic)
		p.msgs = append(p.msgs, m)
	}

	return nil
}

func allEvents() configs.EventsConfig {
	return configs.EventsConfig{
		Enabled: true,
		File: configs.FileEventsConfig{
			Uploaded: true, Downloaded: true, Removed: true, Expired: true, Maintenance: true,
		},
	}
}

func TestWatermillMessageRoundTrip(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	payload := queue.FileUploadedPayload{File: queue.FileRef{
		ID: "id-1", Token: "aB3xY9kQ", Filename: "report.pdf", Size: 1024, Locator: "/api/file/x.pdf",
	}}

	msg, err := queue.NewWatermillMessage(queue.TopicFileUploaded, payload,
		queue.WithProducer("dropvault"), queue.WithTraceID("t-1"), queue.WithOccurredAt(at))
	require.NoError(t, err)

	assert.Equal(t, queue.TopicFileUploaded, msg.Metadata.Get(queue.MetaTopic))
	assert.Equal(t, "dropvault", msg.Metadata.Get(queue.MetaProducer))
	assert.Equal(t, "t-1", msg.Metadata.Get(queue.MetaTraceID))
	assert.Equal(t, queue.PayloadVersionV1, msg.Metadata.Get(queue.MetaVersion))

	env, err := queue.ParseWatermillMessage[queue.FileUploadedPayload](msg)
	require.NoError(t, err)
	assert.Equal(t, payload, env.Payload)
	assert.True(t, env.Header.OccurredAt.Equal(at))
	assert.Equal(t, time.UTC, env.Header.OccurredAt.Location())

	hdr, err := queue.PeekHeader(msg)
	require.NoError(t, err)
	assert.Equal(t, queue.TopicFileUploaded, hdr.Topic)
}

func TestEmitterGating(t *testing.T) {
	ctx := context.Background()
	cfg := allEvents()
	cfg.File.Downloaded = false

	pub := &recordingPublisher{}
	e := queue.NewEmitter(pub, cfg, "dropvault")

	require.NoError(t, e.FileUploaded(ctx, queue.FileUploadedPayload{}))
	require.NoError(t, e.FileDownloaded(ctx, queue.FileDownloadedPayload{}))
	require.NoError(t, e.SweepCompleted(ctx, queue.SweepCompletedPayload{Cleaned: 3}))

	assert.Equal(t, []string{queue.TopicFileUploaded, queue.TopicSweepCompleted}, pub.topics)

	env, err := queue.ParseWatermillMessage[queue.SweepCompletedPayload](pub.msgs[1])
	require.NoError(t, err)
	assert.EqualValues(t, 3, env.Payload.Cleaned)
	assert.Equal(t, "dropvault", env.Header.Producer)
}

func TestEmitterDisabled(t *testing.T) {
	pub := &recordingPublisher{}
	cfg := allEvents()
	cfg.Enabled = false

	e := queue.NewEmitter(pub, cfg, "dropvault")
	require.NoError(t, e.FileRemoved(context.Background(), queue.FileRemovedPayload{}))
	assert.Empty(t, pub.topics)

	var nilEmitter *queue.Emitter
	assert.False(t, nilEmitter.Enabled(queue.TopicFileRemoved))
	require.NoError(t, nilEmitter.FileExpired(context.Background(), queue.FileExpiredPayload{}))

	assert.False(t, queue.NewEmitter(nil, allEvents(), "").Enabled(queue.TopicFileUploaded))
	assert.False(t, queue.NewEmitter(pub, allEvents(), "").Enabled("dv.unknown"))
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestAudit(t *testing.T) {
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer ps.Close()

	out := &syncBuffer{}
	logger := zerolog.New(out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- queue.Audit(ctx, ps, queue.AllTopics(), logger) }()

	msg, err := queue.NewWatermillMessage(queue.TopicFileRemoved, queue.FileRemovedPayload{
		File: queue.FileRef{Token: "tok12345"},
	}, queue.WithProducer("dropvault"))
	require.NoError(t, err)

	// 订阅是异步建立的，重复发布直到日志出现.
	require.Eventually(t, func() bool {
		_ = ps.Publish(queue.TopicFileRemoved, msg.Copy())
		return bytes.Contains([]byte(out.String()), []byte("tok12345"))
	}, 3*time.Second, 20*time.Millisecond)

	assert.Contains(t, out.String(), queue.TopicFileRemoved)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("audit did not stop")
	}
}
