package adapters

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/metrics"
	"github.com/dejobratic/checkout/internal/orders/ports"
	"github.com/dejobratic/checkout/internal/telemetry"
)

// ObservableLedger traces stock movements and counts reservations by result.
type ObservableLedger struct {
	ledger  ports.InventoryLedger
	metrics *metrics.Metrics
}

var _ ports.InventoryLedger = (*ObservableLedger)(nil)

func NewObservableLedger(ledger ports.InventoryLedger, metrics *metrics.Metrics) *ObservableLedger {
	return &ObservableLedger{ledger: ledger, metrics: metrics}
}

func stockAttrs(productID string, size domain.Size, qty int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("product.id", productID),
		attribute.String("product.size", size.String()),
		attribute.Int("quantity", qty),
	}
}

func (l *ObservableLedger) Reserve(ctx context.Context, productID string, size domain.Size, qty int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "InventoryLedger.Reserve", stockAttrs(productID, size, qty)...)

	remaining, err := l.ledger.Reserve(ctx, productID, size, qty)

	var short *domain.InsufficientStockError
	switch {
	case err == nil:
		l.metrics.RecordReservation(ctx, "success")
		telemetry.AddSpanAttributes(span, attribute.Int("stock.remaining", remaining))
	case errors.As(err, &short):
		l.metrics.RecordReservation(ctx, "insufficient")
		telemetry.AddSpanEvent(span, "stock.insufficient", attribute.Int("available", short.Available))
	default:
		l.metrics.RecordReservation(ctx, "error")
	}

	telemetry.FinishSpan(span, err)
	return remaining, err
}

func (l *ObservableLedger) Release(ctx context.Context, productID string, size domain.Size, qty int) error {
	ctx, span := telemetry.StartSpan(ctx, "InventoryLedger.Release", stockAttrs(productID, size, qty)...)

	err := l.ledger.Release(ctx, productID, size, qty)
	if err == nil {
		l.metrics.RecordRelease(ctx, qty)
	}

	telemetry.FinishSpan(span, err)
	return err
}
