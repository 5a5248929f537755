package commands

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

type CreatePaymentIntentCommand struct {
	Actor   domain.Actor
	OrderID string
}

func (c CreatePaymentIntentCommand) Validate() error {
	if !c.Actor.Authenticated() {
		return unauthorized("authentication required")
	}
	if strings.TrimSpace(c.OrderID) == "" {
		return &domain.ValidationError{Field: "order_id", Message: "is required"}
	}
	return nil
}

// CreatePaymentIntentCommandHandler opens at most one gateway order per checkout.
// Concurrent requests in this process share one gateway call; requests racing
// from other processes converge on whichever id was stored first.
type CreatePaymentIntentCommandHandler struct {
	repo    ports.OrderRepository
	gateway ports.PaymentGateway
	clock   Clock
	group   singleflight.Group
}

func NewCreatePaymentIntentCommandHandler(repo ports.OrderRepository, gateway ports.PaymentGateway, clock Clock) *CreatePaymentIntentCommandHandler {
	return &CreatePaymentIntentCommandHandler{
		repo:    repo,
		gateway: gateway,
		clock:   clock,
	}
}

func (h *CreatePaymentIntentCommandHandler) Handle(ctx context.Context, cmd CreatePaymentIntentCommand) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", err
	}

	order, err := loadOrder(ctx, h.repo, cmd.OrderID)
	if err != nil {
		return "", err
	}
	if err := requireAccess(cmd.Actor, *order); err != nil {
		return "", err
	}

	// Followers share the leader's call, so the leader leaving must not fail them.
	id, err, _ := h.group.Do(cmd.OrderID, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return h.createIntent(shared, cmd.OrderID)
	})
	if err != nil {
		return "", err
	}
	return id.(string), nil
}

func (h *CreatePaymentIntentCommandHandler) createIntent(ctx context.Context, orderID string) (string, error) {
	order, err := loadOrder(ctx, h.repo, orderID)
	if err != nil {
		return "", err
	}
	if existing, ok := reusableIntent(*order); ok {
		return existing, nil
	}
	if order.PaymentMethod != domain.PaymentMethodGateway {
		return "", &domain.ValidationError{Field: "payment_method", Message: "order is not paid through the gateway"}
	}
	if order.Status != domain.StatusPending || order.PaymentStatus != domain.PaymentPending {
		return "", &domain.ConflictError{From: string(order.Status) + "/payment_" + string(order.PaymentStatus), To: "payment_intent"}
	}

	created, err := h.gateway.CreateIntent(ctx, ports.IntentRequest{
		Amount:   order.TotalPrice,
		Currency: order.Currency,
		Receipt:  order.ID,
	})
	if err != nil {
		return "", err
	}

	stored, _, _, err := mutateOrder(ctx, h.repo, orderID, func(order *domain.Order) (bool, error) {
		if _, ok := reusableIntent(*order); ok {
			return false, nil
		}
		return true, order.AttachPaymentIntent(created, h.clock())
	})
	if err != nil {
		return "", err
	}
	return stored.GatewayOrderID, nil
}

func reusableIntent(order domain.Order) (string, bool) {
	if order.GatewayOrderID != "" && order.PaymentStatus == domain.PaymentPending {
		return order.GatewayOrderID, true
	}
	return "", false
}
