package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

type CancelOrderCommand struct {
	Actor   domain.Actor
	OrderID string
	Reason  string
}

func (c CancelOrderCommand) Validate() error {
	if !c.Actor.Authenticated() {
		return unauthorized("authentication required")
	}
	if strings.TrimSpace(c.OrderID) == "" {
		return &domain.ValidationError{Field: "order_id", Message: "is required"}
	}
	return nil
}

// CancelOrderCommandHandler cancels pending or processing orders and hands their stock back.
type CancelOrderCommandHandler struct {
	repo     ports.OrderRepository
	releaser stockReleaser
	notifier *Notifier
	recorder Recorder
	clock    Clock
}

func NewCancelOrderCommandHandler(
	repo ports.OrderRepository,
	ledger ports.InventoryLedger,
	notifier *Notifier,
	recorder Recorder,
	logger *slog.Logger,
	clock Clock,
	releaseTimeout time.Duration,
) *CancelOrderCommandHandler {
	recorder = recorderOrNop(recorder)
	return &CancelOrderCommandHandler{
		repo:     repo,
		releaser: stockReleaser{ledger: ledger, logger: logger, timeout: releaseTimeout},
		notifier: notifier,
		recorder: recorder,
		clock:    clock,
	}
}

func (h *CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.cancel(ctx, cmd.OrderID, cmd.Reason, func(order domain.Order) error {
		return requireAccess(cmd.Actor, order)
	})
}

// cancel is shared with admin status changes; authorize runs against every reload.
func (h *CancelOrderCommandHandler) cancel(ctx context.Context, orderID, reason string, authorize func(domain.Order) error) (*domain.Order, error) {
	order, previous, changed, err := mutateOrder(ctx, h.repo, orderID, func(order *domain.Order) (bool, error) {
		if err := authorize(*order); err != nil {
			return false, err
		}
		return true, order.TransitionTo(domain.StatusCancelled, h.clock())
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	h.recorder.RecordTransition(ctx, string(previous), string(domain.StatusCancelled))
	h.notifier.OrderCancelled(ctx, *order, reason)

	if err := h.releaser.release(ctx, order.ID, order.Items); err != nil {
		return order, fmt.Errorf("order %s cancelled but stock release failed: %w", order.ID, err)
	}
	return order, nil
}
