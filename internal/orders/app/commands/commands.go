package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const (
	maxUpdateAttempts = 5

	// sharedCallTimeout bounds work that several callers wait on together.
	sharedCallTimeout = 30 * time.Second
)

// Clock returns the current time. Handlers stamp every transition with it.
type Clock func() time.Time

// UTCClock is the production clock.
func UTCClock() time.Time {
	return time.Now().UTC()
}

// Recorder receives state machine outcomes.
type Recorder interface {
	RecordTransition(ctx context.Context, from, to string)
	RecordPayment(ctx context.Context, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordTransition(context.Context, string, string) {}
func (nopRecorder) RecordPayment(context.Context, string) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

func loadOrder(ctx context.Context, repo ports.OrderRepository, id string) (*domain.Order, error) {
	order, err := repo.GetByID(ctx, id)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, &domain.NotFoundError{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return order, nil
}

// mutation applies a change to a freshly loaded order. It reports false when
// the order already holds the requested state and nothing needs writing.
type mutation func(order *domain.Order) (bool, error)

// mutateOrder loads, changes and writes an order with version compare-and-set,
// reloading and reapplying the mutation when another writer got there first.
// Only the caller that gets changed=true may perform follow-up side effects.
func mutateOrder(ctx context.Context, repo ports.OrderRepository, id string, apply mutation) (*domain.Order, domain.OrderStatus, bool, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		order, err := loadOrder(ctx, repo, id)
		if err != nil {
			return nil, "", false, err
		}
		previous := order.Status
		expected := order.Version

		changed, err := apply(order)
		if err != nil {
			return nil, previous, false, err
		}
		if !changed {
			return order, previous, false, nil
		}

		err = repo.Update(ctx, *order, expected)
		if errors.Is(err, ports.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, previous, false, fmt.Errorf("update order %s: %w", id, err)
		}
		return order, previous, true, nil
	}
	return nil, "", false, fmt.Errorf("update order %s after %d attempts: %w", id, maxUpdateAttempts, ports.ErrVersionConflict)
}

// stockReleaser returns the stock held by an order's items.
type stockReleaser struct {
	ledger  ports.InventoryLedger
	logger  *slog.Logger
	timeout time.Duration
}

// release runs on a context detached from the caller so an abandoned request
// cannot leave stock stranded. Every item is attempted even if one fails.
func (r stockReleaser) release(ctx context.Context, orderID string, items []domain.OrderItem) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	var errs []error
	for _, item := range items {
		if err := r.ledger.Release(ctx, item.ProductID, item.Size, item.Quantity); err != nil {
			r.logger.ErrorContext(ctx, "failed to release stock",
				"order_id", orderID,
				"product_id", item.ProductID,
				"size", item.Size.String(),
				"quantity", item.Quantity,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("release %s/%s: %w", item.ProductID, item.Size, err))
		}
	}
	return errors.Join(errs...)
}

func unauthorized(reason string) error {
	return &domain.UnauthorizedError{Reason: reason}
}

func requireAccess(actor domain.Actor, order domain.Order) error {
	if !actor.Authenticated() {
		return unauthorized("authentication required")
	}
	if !actor.CanAccess(order) {
		return unauthorized("order belongs to another user")
	}
	return nil
}
