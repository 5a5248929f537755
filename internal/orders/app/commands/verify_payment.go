package commands

import (
	"context"
	"strings"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

// VerifyPaymentCommand carries the gateway callback. The signature
// authenticates it, so no actor is required.
type VerifyPaymentCommand struct {
	OrderID        string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

func (c VerifyPaymentCommand) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"order_id", c.OrderID},
		{"gateway_order_id", c.GatewayOrderID},
		{"payment_id", c.PaymentID},
		{"signature", c.Signature},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &domain.ValidationError{Field: r.field, Message: "is required"}
		}
	}
	return nil
}

type VerifyPaymentCommandHandler struct {
	repo     ports.OrderRepository
	gateway  ports.PaymentGateway
	notifier *Notifier
	recorder Recorder
	clock    Clock
}

func NewVerifyPaymentCommandHandler(
	repo ports.OrderRepository,
	gateway ports.PaymentGateway,
	notifier *Notifier,
	recorder Recorder,
	clock Clock,
) *VerifyPaymentCommandHandler {
	return &VerifyPaymentCommandHandler{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		recorder: recorderOrNop(recorder),
		clock:    clock,
	}
}

// Handle confirms a signed payment. Replaying the same callback returns the
// stored order without writing or notifying again.
func (h *VerifyPaymentCommandHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if !h.gateway.VerifySignature(cmd.GatewayOrderID, cmd.PaymentID, cmd.Signature) {
		h.recorder.RecordPayment(ctx, "bad_signature")
		return nil, &domain.PaymentSignatureError{GatewayOrderID: cmd.GatewayOrderID}
	}

	order, previous, changed, err := mutateOrder(ctx, h.repo, cmd.OrderID, func(order *domain.Order) (bool, error) {
		if order.GatewayOrderID != cmd.GatewayOrderID {
			return false, &domain.NotFoundError{Resource: "order", ID: cmd.OrderID}
		}
		if order.PaymentStatus == domain.PaymentCompleted {
			if order.GatewayPaymentID == cmd.PaymentID {
				return false, nil
			}
			return false, &domain.ConflictError{
				From: "payment_completed " + order.GatewayPaymentID,
				To:   "payment_completed " + cmd.PaymentID,
			}
		}
		return true, order.MarkPaid(cmd.PaymentID, h.clock())
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		h.recorder.RecordPayment(ctx, "replayed")
		return order, nil
	}

	h.recorder.RecordPayment(ctx, "completed")
	h.recorder.RecordTransition(ctx, string(previous), string(order.Status))
	h.notifier.OrderConfirmed(ctx, *order)
	return order, nil
}
