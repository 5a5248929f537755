package commands_test

import (
	"context"
	"testing"

	"github.com/dejobratic/checkout/internal/orders/app/commands"
	"github.com/dejobratic/checkout/internal/orders/domain"
)

func TestChangeStatus(t *testing.T) {
	t.Run("admin walks a cash on delivery order to delivered", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, domain.PaymentMethodCashOnDelivery, line("tee", domain.SizeM, 1))

		var current *domain.Order
		for _, next := range []domain.OrderStatus{domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
			var err error
			current, err = f.status.Handle(context.Background(), commands.ChangeStatusCommand{Actor: admin, OrderID: order.ID, Status: next})
			if err != nil {
				t.Fatalf("failed to move to %s: %v", next, err)
			}
		}

		if current.Status != domain.StatusDelivered {
			t.Errorf("expected delivered, got %s", current.Status)
		}
		if current.DeliveredAt == nil || current.PaidAt == nil {
			t.Errorf("expected delivery and payment timestamps, got %+v", current)
		}
		if got := f.stock(t, "tee", domain.SizeM); got != 9 {
			t.Errorf("expected stock to stay sold, got %d", got)
		}
	})

	t.Run("requires an admin", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, domain.PaymentMethodCashOnDelivery, line("tee", domain.SizeM, 1))

		_, err := f.status.Handle(context.Background(), commands.ChangeStatusCommand{Actor: customer, OrderID: order.ID, Status: domain.StatusProcessing})

		if domain.KindOf(err) != domain.KindUnauthorized {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	})

	t.Run("rejects skipping states", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, domain.PaymentMethodCashOnDelivery, line("tee", domain.SizeM, 1))

		_, err := f.status.Handle(context.Background(), commands.ChangeStatusCommand{Actor: admin, OrderID: order.ID, Status: domain.StatusDelivered})

		if domain.KindOf(err) != domain.KindConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("rejects unknown statuses", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.status.Handle(context.Background(), commands.ChangeStatusCommand{Actor: admin, OrderID: "any", Status: "lost"})

		if domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("unpaid gateway orders cannot be processed", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, domain.PaymentMethodGateway, line("tee", domain.SizeM, 1))

		_, err := f.status.Handle(context.Background(), commands.ChangeStatusCommand{Actor: admin, OrderID: order.ID, Status: domain.StatusProcessing})

		if domain.KindOf(err) != domain.KindConflict {
			t.Fatalf("expected conflict, got %v", err)
		}
	})

	t.Run("cancelling through status change restores stock", func(t *testing.T) {
		f := newFixture(t)
		order := f.placeOrder(t, domain.PaymentMethodGateway, line("hoodie", domain.SizeM, 3))

		cancelled, err := f.status.Handle(context.Background(), commands.ChangeStatusCommand{Actor: admin, OrderID: order.ID, Status: domain.StatusCancelled})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cancelled.Status != domain.StatusCancelled {
			t.Errorf("expected cancelled, got %s", cancelled.Status)
		}
		if got := f.stock(t, "hoodie", domain.SizeM); got != 3 {
			t.Errorf("expected stock restored to 3, got %d", got)
		}
	})
}
