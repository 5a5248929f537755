package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

type reservation struct {
	productID string
	size      domain.Size
	quantity  int
}

// reservationSaga reserves order lines one at a time and remembers each
// success so a failure can hand everything back in reverse order.
type reservationSaga struct {
	ledger   ports.InventoryLedger
	reserved []reservation
}

func newReservationSaga(ledger ports.InventoryLedger) *reservationSaga {
	return &reservationSaga{ledger: ledger}
}

func (s *reservationSaga) reserve(ctx context.Context, item domain.OrderItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reserve %s/%s: %w", item.ProductID, item.Size, err)
	}
	if _, err := s.ledger.Reserve(ctx, item.ProductID, item.Size, item.Quantity); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return &domain.NotFoundError{Resource: "product", ID: item.ProductID}
		}
		return err
	}
	s.reserved = append(s.reserved, reservation{productID: item.ProductID, size: item.Size, quantity: item.Quantity})
	return nil
}

// compensate releases every reservation taken so far. It uses a context
// detached from ctx because it usually runs after ctx has failed.
func (s *reservationSaga) compensate(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	for i := len(s.reserved) - 1; i >= 0; i-- {
		r := s.reserved[i]
		if err := s.ledger.Release(ctx, r.productID, r.size, r.quantity); err != nil {
			errs = append(errs, fmt.Errorf("release %s/%s x%d: %w", r.productID, r.size, r.quantity, err))
		}
	}
	s.reserved = nil
	return errors.Join(errs...)
}

func (s *reservationSaga) units() int {
	total := 0
	for _, r := range s.reserved {
		total += r.quantity
	}
	return total
}
