package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureProducer struct {
	messages []kafka.Message
	closed   bool
}

func (p *captureProducer) WriteMessage(_ context.Context, msg kafka.Message) error {
	p.messages = append(p.messages, msg)
	return nil
}

func (p *captureProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaPublisherKeysByOrder(t *testing.T) {
	producer := &captureProducer{}
	publisher := NewKafkaPublisher(producer)

	event := New(OrderRefunded, "order-1", "user-1", map[string]any{"orderNumber": 1004})
	require.NoError(t, publisher.Publish(context.Background(), event))
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "order-1", string(msg.Key))
	assert.Equal(t, OrderRefunded, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "user-1", decoded.UserID)

	require.NoError(t, publisher.Close())
	assert.True(t, producer.closed)
}
