package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/checkout/internal/kafka"
	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
	"github.com/dejobratic/checkout/internal/telemetry"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

var _ ports.EventBus = (*ObservableEventBus)(nil)

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{bus: bus, metrics: metrics}
}

func (e *ObservableEventBus) PublishOrderConfirmed(ctx context.Context, order domain.Order) error {
	ctx, finish := e.start(ctx, kafka.EventOrderConfirmed, order)
	return finish(e.bus.PublishOrderConfirmed(ctx, order))
}

func (e *ObservableEventBus) PublishOrderCancelled(ctx context.Context, order domain.Order, reason string) error {
	ctx, finish := e.start(ctx, kafka.EventOrderCancelled, order, attribute.String("cancel.reason", reason))
	return finish(e.bus.PublishOrderCancelled(ctx, order, reason))
}

// start opens a producer span; the returned func closes it with the publish result.
func (e *ObservableEventBus) start(ctx context.Context, eventType string, order domain.Order, extra ...attribute.KeyValue) (context.Context, func(error) error) {
	attrs := append([]attribute.KeyValue{
		attribute.String("order.id", order.ID),
		attribute.String("messaging.operation", "publish"),
		attribute.String("event.type", eventType),
	}, extra...)
	ctx, span := telemetry.StartSpan(ctx, eventType+" publish", attrs...)
	begin := time.Now()

	return ctx, func(err error) error {
		e.metrics.RecordPublish(ctx, eventType, time.Since(begin), err)
		telemetry.FinishSpan(span, err)
		return err
	}
}
