package mq_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/dropvault/pkg/configs"
	"github.com/yeisme/dropvault/pkg/internal/storage/mq"
)

func goChannelConfig() configs.MQConfig {
	return configs.MQConfig{
		Type:      configs.MQTypeGoChannel,
		GoChannel: configs.MQGoChannelConfig{OutputBuffer: 16},
		Common:    configs.MQCommonConfig{EnableMetrics: true},
	}
}

func TestRegisteredTypes(t *testing.T) {
	types := mq.GetRegisteredTypes()
	assert.ElementsMatch(t, []configs.MQType{
		configs.MQTypeAMQP, configs.MQTypeGoChannel, configs.MQTypeNATS, configs.MQTypeRedis,
	}, types)
}

func TestOpenUnsupported(t *testing.T) {
	_, err := mq.Open(context.Background(), configs.MQConfig{Type: "kafka"}, mq.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mq type")
}

func TestGoChannelRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mq.Open(ctx, goChannelConfig(), mq.Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	defer func() { assert.NoError(t, client.Close()) }()

	assert.Equal(t, configs.MQTypeGoChannel, client.Type())

	ch, err := client.Subscribe(ctx, "dv.test")
	require.NoError(t, err)

	msg := message.NewMessage(watermill.NewUUID(), []byte("hello"))
	msg.Metadata.Set("k", "v")
	require.NoError(t, client.Publish(ctx, "dv.test", msg))

	select {
	case got := <-ch:
		assert.Equal(t, msg.UUID, got.UUID)
		assert.Equal(t, "hello", string(got.Payload))
		assert.Equal(t, "v", got.Metadata.Get("k"))
		got.Ack()
	case <-ctx.Done():
		t.Fatal("message not delivered")
	}
}

func TestNilClient(t *testing.T) {
	var c *mq.Client

	assert.ErrorIs(t, c.Publish(context.Background(), "x"), mq.ErrNotInitialized)
	_, err := c.Subscribe(context.Background(), "x")
	assert.ErrorIs(t, err, mq.ErrNotInitialized)
	assert.NoError(t, c.Close())
}
