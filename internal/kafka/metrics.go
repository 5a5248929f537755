package kafka

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics measures order events handed to the broker.
type Metrics struct {
	publishLatency metric.Float64Histogram
	published      metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	latency, err := meter.Float64Histogram(
		"order_event_publish_seconds",
		metric.WithDescription("Time spent writing one order event to the broker"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_event_publish_seconds histogram: %w", err)
	}

	published, err := meter.Int64Counter(
		"order_events_published_total",
		metric.WithDescription("Order events handed to the broker by type and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_events_published_total counter: %w", err)
	}

	return &Metrics{publishLatency: latency, published: published}, nil
}

// RecordPublish counts one publish attempt of eventType.
func (m *Metrics) RecordPublish(ctx context.Context, eventType string, elapsed time.Duration, err error) {
	outcome := "delivered"
	if err != nil {
		outcome = "failed"
	}
	attrs := metric.WithAttributeSet(attribute.NewSet(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	))
	m.publishLatency.Record(ctx, elapsed.Seconds(), attrs)
	m.published.Add(ctx, 1, attrs)
}
