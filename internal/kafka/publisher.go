package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const (
	EventOrderConfirmed = "order.confirmed"
	EventOrderCancelled = "order.cancelled"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher sends order events as JSON, keyed by order id so every event
// for one order lands on the same partition.
type Publisher struct {
	writer      MessageWriter
	topicPrefix string
	now         func() time.Time
}

var _ ports.EventBus = (*Publisher)(nil)

// ParseBrokers splits a comma separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewWriter builds a writer whose topic is chosen per message.
func NewWriter(brokers []string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
}

func NewPublisher(writer MessageWriter, topicPrefix string) (*Publisher, error) {
	if writer == nil {
		return nil, errors.New("kafka writer is required")
	}
	return &Publisher{
		writer:      writer,
		topicPrefix: strings.Trim(topicPrefix, "."),
		now:         time.Now,
	}, nil
}

// Topic returns the topic an event type is published to.
func (p *Publisher) Topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

type eventItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// OrderEvent is the wire payload of every order event.
type OrderEvent struct {
	EventID       string      `json:"event_id"`
	Type          string      `json:"type"`
	OccurredAt    time.Time   `json:"occurred_at"`
	OrderID       string      `json:"order_id"`
	UserID        string      `json:"user_id"`
	Status        string      `json:"status"`
	PaymentMethod string      `json:"payment_method"`
	PaymentStatus string      `json:"payment_status,omitempty"`
	Currency      string      `json:"currency"`
	TotalPrice    int64       `json:"total_price"`
	Items         []eventItem `json:"items"`
	Reason        string      `json:"reason,omitempty"`
}

func (p *Publisher) PublishOrderConfirmed(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, EventOrderConfirmed, order, "")
}

func (p *Publisher) PublishOrderCancelled(ctx context.Context, order domain.Order, reason string) error {
	return p.publish(ctx, EventOrderCancelled, order, reason)
}

func (p *Publisher) publish(ctx context.Context, eventType string, order domain.Order, reason string) error {
	event := OrderEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		OccurredAt:    p.now().UTC(),
		OrderID:       order.ID,
		UserID:        order.UserID,
		Status:        string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		Currency:      order.Currency,
		TotalPrice:    order.TotalPrice,
		Items:         make([]eventItem, len(order.Items)),
		Reason:        reason,
	}
	for i, item := range order.Items {
		event.Items[i] = eventItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Size:      item.Size.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}

	msg := kafkago.Message{
		Topic: p.Topic(eventType),
		Key:   []byte(order.ID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "event-id", Value: []byte(event.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for order %s: %w", eventType, order.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
