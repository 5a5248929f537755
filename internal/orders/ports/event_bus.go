package ports

import (
	"context"

	"github.com/dejobratic/checkout/internal/orders/domain"
)

// EventBus notifies downstream collaborators about order outcomes.
// Delivery is best effort; publish failures never affect the order.
type EventBus interface {
	PublishOrderConfirmed(ctx context.Context, order domain.Order) error
	PublishOrderCancelled(ctx context.Context, order domain.Order, reason string) error
}
