package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ordersCreatedTotal     metric.Int64Counter
	orderCreationDuration  metric.Float64Histogram
	stockReservationsTotal metric.Int64Counter
	stockReleasedUnits     metric.Int64Counter
	paymentsTotal          metric.Int64Counter
	orderTransitionsTotal  metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ordersCreatedTotal, err = meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Total number of checkout attempts by outcome"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	m.orderCreationDuration, err = meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	m.stockReservationsTotal, err = meter.Int64Counter(
		"stock_reservations_total",
		metric.WithDescription("Stock reservation attempts by result"),
		metric.WithUnit("{reservation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stock_reservations_total counter: %w", err)
	}

	m.stockReleasedUnits, err = meter.Int64Counter(
		"stock_released_units_total",
		metric.WithDescription("Units returned to stock by compensation or cancellation"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create stock_released_units_total counter: %w", err)
	}

	m.paymentsTotal, err = meter.Int64Counter(
		"payments_total",
		metric.WithDescription("Payment confirmations and failures by outcome"),
		metric.WithUnit("{payment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payments_total counter: %w", err)
	}

	m.orderTransitionsTotal, err = meter.Int64Counter(
		"order_transitions_total",
		metric.WithDescription("Order status transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_transitions_total counter: %w", err)
	}

	return m, nil
}

// RecordCheckout counts one checkout attempt. outcome is "created" or the
// error kind that rejected the cart.
func (m *Metrics) RecordCheckout(ctx context.Context, elapsed time.Duration, outcome string) {
	m.ordersCreatedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
	m.orderCreationDuration.Record(ctx, elapsed.Seconds())
}

// RecordReservation counts a Reserve call; result is success, insufficient or error.
func (m *Metrics) RecordReservation(ctx context.Context, result string) {
	m.stockReservationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

func (m *Metrics) RecordRelease(ctx context.Context, units int) {
	m.stockReleasedUnits.Add(ctx, int64(units))
}

// RecordPayment counts a payment outcome such as completed, replayed, failed or bad_signature.
func (m *Metrics) RecordPayment(ctx context.Context, result string) {
	m.paymentsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", result),
	))
}

func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.orderTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
