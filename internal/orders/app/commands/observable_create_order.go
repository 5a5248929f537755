package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/metrics"
	"github.com/dejobratic/checkout/internal/telemetry"
)

// ObservableCommandHandler traces, logs and measures checkout attempts.
type ObservableCommandHandler struct {
	handler CommandHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCommandHandler(handler CommandHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCommandHandler {
	return &ObservableCommandHandler{handler: handler, logger: logger, metrics: metrics}
}

func (o *ObservableCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.create_order",
		attribute.String("order.user_id", cmd.Actor.UserID),
		attribute.String("order.payment_method", string(cmd.PaymentMethod)),
		attribute.Int("order.lines", len(cmd.Items)),
	)
	logger := o.logger.With("user_id", cmd.Actor.UserID)
	logger.DebugContext(ctx, "checking out cart", "lines", len(cmd.Items), "payment_method", cmd.PaymentMethod)

	start := time.Now()
	order, err := o.handler.Handle(ctx, cmd)
	if err != nil {
		kind := domain.KindOf(err)
		o.metrics.RecordCheckout(ctx, time.Since(start), string(kind))
		telemetry.FinishSpan(span, err)

		level := slog.LevelWarn
		if kind == domain.KindInternal || kind == domain.KindGateway {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "checkout rejected", "kind", kind, "error", err)
		return nil, err
	}

	o.metrics.RecordCheckout(ctx, time.Since(start), "created")
	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.Int64("order.total_price", order.TotalPrice),
	)
	telemetry.FinishSpan(span, nil)

	logger.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"total_price", order.TotalPrice,
		"currency", order.Currency,
	)
	return order, nil
}
