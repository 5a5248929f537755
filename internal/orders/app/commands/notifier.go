package commands

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const publishTimeout = 5 * time.Second

// Notifier publishes order events on tracked goroutines. Publish failures are
// logged and never surface to the operation that triggered them.
type Notifier struct {
	events ports.EventBus
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewNotifier(events ports.EventBus, logger *slog.Logger) *Notifier {
	return &Notifier{events: events, logger: logger}
}

func (n *Notifier) OrderConfirmed(ctx context.Context, order domain.Order) {
	n.dispatch(ctx, "order_confirmed", order, func(ctx context.Context) error {
		return n.events.PublishOrderConfirmed(ctx, order)
	})
}

func (n *Notifier) OrderCancelled(ctx context.Context, order domain.Order, reason string) {
	n.dispatch(ctx, "order_cancelled", order, func(ctx context.Context) error {
		return n.events.PublishOrderCancelled(ctx, order, reason)
	})
}

// Wait blocks until every dispatched event has been attempted.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, event string, order domain.Order, publish func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()

		if err := publish(ctx); err != nil {
			n.logger.WarnContext(ctx, "failed to publish order event",
				"event", event,
				"order_id", order.ID,
				"error", err,
			)
		}
	}()
}
