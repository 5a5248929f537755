//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dejobratic/checkout/internal/database/dbtest"
	"github.com/dejobratic/checkout/internal/orders/adapters/postgres"
	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

var baseTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func sampleOrder(id, userID string, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:     id,
		UserID: userID,
		Items: []domain.OrderItem{
			{ProductID: "tee", Name: "Tee", Size: domain.SizeM, UnitPrice: 500, Quantity: 2, ImageURL: "/tee.png"},
			{ProductID: "hoodie", Name: "Hoodie", Size: domain.SizeXL, UnitPrice: 1999, Quantity: 1},
		},
		ShippingAddress: domain.ShippingAddress{
			FullName: "Asha Rao", Phone: "+91 98450 00000", Line1: "12 MG Road",
			City: "Bengaluru", State: "KA", PostalCode: "560001", Country: "IN",
		},
		PaymentMethod: domain.PaymentMethodGateway,
		Currency:      "INR",
		ItemsPrice:    2999,
		TaxPrice:      150,
		ShippingPrice: 0,
		TotalPrice:    3149,
		Status:        domain.StatusPending,
		PaymentStatus: domain.PaymentPending,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
		Version:       1,
	}
}

func TestRepositoryCreateAndGet(t *testing.T) {
	repo := postgres.NewRepository(dbtest.NewPool(t))
	ctx := context.Background()

	order := sampleOrder("order-1", "user-1", baseTime)
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	t.Run("round-trips every field and keeps item order", func(t *testing.T) {
		got, err := repo.GetByID(ctx, order.ID)
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		if got.UserID != order.UserID || got.TotalPrice != order.TotalPrice || got.Version != 1 {
			t.Fatalf("unexpected order %+v", got)
		}
		if got.ShippingAddress != order.ShippingAddress {
			t.Fatalf("address mismatch: %+v", got.ShippingAddress)
		}
		if got.PaymentStatus != domain.PaymentPending || got.PaidAt != nil {
			t.Fatalf("unexpected payment state %s %v", got.PaymentStatus, got.PaidAt)
		}
		if len(got.Items) != 2 || got.Items[0] != order.Items[0] || got.Items[1] != order.Items[1] {
			t.Fatalf("items mismatch: %+v", got.Items)
		}
		if !got.CreatedAt.Equal(order.CreatedAt) {
			t.Fatalf("created_at mismatch: %v", got.CreatedAt)
		}
	})

	t.Run("rejects a duplicate id", func(t *testing.T) {
		if err := repo.Create(ctx, order); err == nil {
			t.Fatal("expected duplicate insert to fail")
		}
	})

	t.Run("reports a missing order", func(t *testing.T) {
		if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepositoryList(t *testing.T) {
	repo := postgres.NewRepository(dbtest.NewPool(t))
	ctx := context.Background()

	for i := range 5 {
		user := "user-a"
		if i%2 == 1 {
			user = "user-b"
		}
		order := sampleOrder(fmt.Sprintf("order-%d", i), user, baseTime.Add(time.Duration(i)*time.Minute))
		if i == 4 {
			order.Status = domain.StatusProcessing
		}
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ports.ListFilter
		want   []string
	}{
		{name: "lists everything newest first", filter: ports.ListFilter{}, want: []string{"order-4", "order-3", "order-2", "order-1", "order-0"}},
		{name: "narrows to one user", filter: ports.ListFilter{UserID: "user-b"}, want: []string{"order-3", "order-1"}},
		{name: "narrows by status", filter: ports.ListFilter{Status: statusPtr(domain.StatusProcessing)}, want: []string{"order-4"}},
		{name: "pages through results", filter: ports.ListFilter{Page: 2, PageSize: 2}, want: []string{"order-2", "order-1"}},
		{name: "returns an empty page past the end", filter: ports.ListFilter{Page: 9, PageSize: 2}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if len(orders) != len(tt.want) {
				t.Fatalf("expected %d orders, got %d", len(tt.want), len(orders))
			}
			for i, id := range tt.want {
				if orders[i].ID != id {
					t.Fatalf("position %d: expected %s, got %s", i, id, orders[i].ID)
				}
				if len(orders[i].Items) != 2 {
					t.Fatalf("expected items loaded for %s", id)
				}
			}
		})
	}
}

func TestRepositoryUpdate(t *testing.T) {
	repo := postgres.NewRepository(dbtest.NewPool(t))
	ctx := context.Background()

	order := sampleOrder("order-1", "user-1", baseTime)
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	paid := order.Clone()
	if err := paid.MarkPaid("pay_1", baseTime.Add(time.Minute)); err != nil {
		t.Fatalf("MarkPaid() failed: %v", err)
	}

	t.Run("writes when the version matches", func(t *testing.T) {
		if err := repo.Update(ctx, paid, order.Version); err != nil {
			t.Fatalf("Update() failed: %v", err)
		}
		got, err := repo.GetByID(ctx, order.ID)
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		if got.PaymentStatus != domain.PaymentCompleted || got.GatewayPaymentID != "pay_1" || got.PaidAt == nil {
			t.Fatalf("payment not persisted: %+v", got)
		}
		if got.Version != paid.Version {
			t.Fatalf("expected version %d, got %d", paid.Version, got.Version)
		}
	})

	t.Run("refuses a stale version", func(t *testing.T) {
		stale := order.Clone()
		if err := stale.TransitionTo(domain.StatusCancelled, baseTime.Add(2*time.Minute)); err != nil {
			t.Fatalf("TransitionTo() failed: %v", err)
		}
		if err := repo.Update(ctx, stale, order.Version); !errors.Is(err, ports.ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}
	})

	t.Run("reports a missing order", func(t *testing.T) {
		ghost := sampleOrder("ghost", "user-1", baseTime)
		if err := repo.Update(ctx, ghost, 1); !errors.Is(err, ports.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func statusPtr(s domain.OrderStatus) *domain.OrderStatus {
	return &s
}
