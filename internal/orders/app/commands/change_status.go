package commands

import (
	"context"
	"strings"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

type ChangeStatusCommand struct {
	Actor   domain.Actor
	OrderID string
	Status  domain.OrderStatus
}

func (c ChangeStatusCommand) Validate() error {
	if !c.Actor.Authenticated() {
		return unauthorized("authentication required")
	}
	if !c.Actor.IsAdmin() {
		return unauthorized("only admins can change order status")
	}
	if strings.TrimSpace(c.OrderID) == "" {
		return &domain.ValidationError{Field: "order_id", Message: "is required"}
	}
	if _, err := domain.ParseOrderStatus(string(c.Status)); err != nil {
		return err
	}
	return nil
}

// ChangeStatusCommandHandler moves orders through fulfilment on behalf of admins.
type ChangeStatusCommandHandler struct {
	repo     ports.OrderRepository
	canceler *CancelOrderCommandHandler
	recorder Recorder
	clock    Clock
}

func NewChangeStatusCommandHandler(
	repo ports.OrderRepository,
	canceler *CancelOrderCommandHandler,
	recorder Recorder,
	clock Clock,
) *ChangeStatusCommandHandler {
	return &ChangeStatusCommandHandler{
		repo:     repo,
		canceler: canceler,
		recorder: recorderOrNop(recorder),
		clock:    clock,
	}
}

func (h *ChangeStatusCommandHandler) Handle(ctx context.Context, cmd ChangeStatusCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Validate has already accepted the status
	target, _ := domain.ParseOrderStatus(string(cmd.Status))

	if target == domain.StatusCancelled {
		return h.canceler.cancel(ctx, cmd.OrderID, "cancelled by admin", func(domain.Order) error { return nil })
	}

	order, previous, changed, err := mutateOrder(ctx, h.repo, cmd.OrderID, func(order *domain.Order) (bool, error) {
		return true, order.TransitionTo(target, h.clock())
	})
	if err != nil {
		return nil, err
	}
	if changed {
		h.recorder.RecordTransition(ctx, string(previous), string(order.Status))
	}
	return order, nil
}
