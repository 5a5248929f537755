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

type FailPaymentCommand struct {
	Actor   domain.Actor
	OrderID string
	Reason  string
}

func (c FailPaymentCommand) Validate() error {
	if !c.Actor.Authenticated() {
		return unauthorized("authentication required")
	}
	if strings.TrimSpace(c.OrderID) == "" {
		return &domain.ValidationError{Field: "order_id", Message: "is required"}
	}
	return nil
}

// FailPaymentCommandHandler records a failed gateway payment, cancels the
// order and returns its stock. Repeating it changes nothing.
type FailPaymentCommandHandler struct {
	repo     ports.OrderRepository
	releaser stockReleaser
	notifier *Notifier
	recorder Recorder
	clock    Clock
}

func NewFailPaymentCommandHandler(
	repo ports.OrderRepository,
	ledger ports.InventoryLedger,
	notifier *Notifier,
	recorder Recorder,
	logger *slog.Logger,
	clock Clock,
	releaseTimeout time.Duration,
) *FailPaymentCommandHandler {
	recorder = recorderOrNop(recorder)
	return &FailPaymentCommandHandler{
		repo:     repo,
		releaser: stockReleaser{ledger: ledger, logger: logger, timeout: releaseTimeout},
		notifier: notifier,
		recorder: recorder,
		clock:    clock,
	}
}

func (h *FailPaymentCommandHandler) Handle(ctx context.Context, cmd FailPaymentCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "payment failed"
	}

	order, previous, changed, err := mutateOrder(ctx, h.repo, cmd.OrderID, func(order *domain.Order) (bool, error) {
		if err := requireAccess(cmd.Actor, *order); err != nil {
			return false, err
		}
		if order.PaymentStatus == domain.PaymentFailed {
			return false, nil
		}
		return true, order.MarkPaymentFailed(reason, h.clock())
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	h.recorder.RecordPayment(ctx, "failed")
	if previous == domain.StatusCancelled {
		// stock went back when the order was cancelled
		return order, nil
	}

	h.recorder.RecordTransition(ctx, string(previous), string(domain.StatusCancelled))
	h.notifier.OrderCancelled(ctx, *order, reason)

	if err := h.releaser.release(ctx, order.ID, order.Items); err != nil {
		return order, fmt.Errorf("order %s cancelled but stock release failed: %w", order.ID, err)
	}
	return order, nil
}
