package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Event types published on the order events topic.
const (
	OrderCreated            = "order.created"
	OrderConfirmed          = "order.confirmed"
	OrderProcessing         = "order.processing"
	OrderShipped            = "order.shipped"
	OrderCompleted          = "order.completed"
	OrderCanceled           = "order.canceled"
	OrderRefunded           = "order.refunded"
	OrderDeleted            = "order.deleted"
	OrderDetailsUpdated     = "order.details_updated"
	OrderCompensated        = "order.compensated"
	OrderCompensationFailed = "order.compensation_failed"
)

type Event struct {
	EventID   string         `json:"event_id"`
	OrderID   string         `json:"order_id"`
	UserID    string         `json:"user_id,omitempty"`
	Type      string         `json:"type"`
	CreatedAt time.Time      `json:"created_at"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, orderID, userID string, payload map[string]any) Event {
	return Event{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		UserID:    userID,
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}
}

// Publisher delivers lifecycle events. Delivery is best effort: the order
// document stays the source of truth.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Producer is the subset of a kafka writer the publisher needs.
type Producer interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	producer Producer
}

func NewKafkaPublisher(producer Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish writes the event as JSON keyed by order id so every event of one
// order lands on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	return p.producer.WriteMessage(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Time:  event.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
