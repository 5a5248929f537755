package database

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics times store calls. Expected outcomes such as a missing row or a
// version conflict count as ok; only unexpected failures are errors.
type Metrics struct {
	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	duration, err := meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Time spent in one order store call"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_duration_seconds histogram: %w", err)
	}

	failures, err := meter.Int64Counter(
		"db_query_errors_total",
		metric.WithDescription("Store calls that failed unexpectedly"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_errors_total counter: %w", err)
	}

	return &Metrics{queryDuration: duration, queryErrors: failures}, nil
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, elapsed time.Duration, failed bool) {
	attrs := metric.WithAttributes(attribute.String("operation", operation))
	m.queryDuration.Record(ctx, elapsed.Seconds(), attrs)
	if failed {
		m.queryErrors.Add(ctx, 1, attrs)
	}
}
