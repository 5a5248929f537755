package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

// NoopEventBus logs events without sending them to Kafka. Used when no brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

var _ ports.EventBus = (*NoopEventBus)(nil)

func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderConfirmed(ctx context.Context, order domain.Order) error {
	n.logger.DebugContext(ctx, "event::order_confirmed", "order_id", order.ID, "total_price", order.TotalPrice)
	return nil
}

func (n *NoopEventBus) PublishOrderCancelled(ctx context.Context, order domain.Order, reason string) error {
	n.logger.DebugContext(ctx, "event::order_cancelled", "order_id", order.ID, "reason", reason)
	return nil
}
