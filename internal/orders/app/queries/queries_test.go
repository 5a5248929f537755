package queries_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/dejobratic/checkout/internal/orders/adapters/memory"
	"github.com/dejobratic/checkout/internal/orders/app/queries"
	"github.com/dejobratic/checkout/internal/orders/domain"
)

var (
	owner  = domain.Actor{UserID: "user-1", Role: domain.RoleUser}
	other  = domain.Actor{UserID: "user-2", Role: domain.RoleUser}
	admin  = domain.Actor{UserID: "admin", Role: domain.RoleAdmin}
	baseAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

func seededRepository(t *testing.T) *memory.Repository {
	t.Helper()
	repo := memory.NewRepository()
	seed := []struct {
		id     string
		userID string
		status domain.OrderStatus
	}{
		{"order-1", "user-1", domain.StatusPending},
		{"order-2", "user-1", domain.StatusCancelled},
		{"order-3", "user-2", domain.StatusPending},
	}
	for i, s := range seed {
		order := domain.Order{
			ID:            s.id,
			UserID:        s.userID,
			Items:         []domain.OrderItem{{ProductID: "tee", Size: domain.SizeM, UnitPrice: 500, Quantity: 1}},
			PaymentMethod: domain.PaymentMethodCashOnDelivery,
			ItemsPrice:    500,
			TaxPrice:      25,
			TotalPrice:    525,
			Status:        s.status,
			CreatedAt:     baseAt.Add(time.Duration(i) * time.Hour),
			Version:       1,
		}
		if err := repo.Create(context.Background(), order); err != nil {
			t.Fatalf("failed to seed order: %v", err)
		}
	}
	return repo
}

func TestGetOrder(t *testing.T) {
	handler := queries.NewGetOrderQueryHandler(seededRepository(t))

	tests := []struct {
		name  string
		actor domain.Actor
		id    string
		want  domain.ErrorKind
	}{
		{"owner reads own order", owner, "order-1", ""},
		{"admin reads any order", admin, "order-3", ""},
		{"other users are refused", other, "order-1", domain.KindUnauthorized},
		{"anonymous callers are refused", domain.Actor{}, "order-1", domain.KindUnauthorized},
		{"missing orders are not found", owner, "order-404", domain.KindNotFound},
		{"order id is required", owner, " ", domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := handler.Handle(context.Background(), queries.GetOrderQuery{Actor: tt.actor, OrderID: tt.id})

			if kind := domain.KindOf(err); kind != tt.want {
				t.Fatalf("expected %q, got %q (%v)", tt.want, kind, err)
			}
			if tt.want == "" && order.ID != tt.id {
				t.Errorf("expected order %s, got %s", tt.id, order.ID)
			}
		})
	}
}

func TestListOrders(t *testing.T) {
	handler := queries.NewListOrdersQueryHandler(seededRepository(t))
	pending := domain.StatusPending

	t.Run("users only see their own orders", func(t *testing.T) {
		orders, err := handler.Handle(context.Background(), queries.ListOrdersQuery{Actor: owner})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(orders))
		}
		for _, o := range orders {
			if o.UserID != owner.UserID {
				t.Errorf("leaked order %s of %s", o.ID, o.UserID)
			}
		}
	})

	t.Run("admins see everything newest first", func(t *testing.T) {
		orders, err := handler.Handle(context.Background(), queries.ListOrdersQuery{Actor: admin})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 3 || orders[0].ID != "order-3" {
			t.Errorf("unexpected listing %v", orders)
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		orders, err := handler.Handle(context.Background(), queries.ListOrdersQuery{Actor: admin, Status: &pending})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 2 {
			t.Errorf("expected 2 pending orders, got %d", len(orders))
		}
	})

	t.Run("paginates", func(t *testing.T) {
		orders, err := handler.Handle(context.Background(), queries.ListOrdersQuery{Actor: admin, Page: 2, PageSize: 2})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 1 || orders[0].ID != "order-1" {
			t.Errorf("unexpected second page %v", orders)
		}
	})

	t.Run("rejects oversized pages", func(t *testing.T) {
		_, err := handler.Handle(context.Background(), queries.ListOrdersQuery{Actor: admin, PageSize: queries.MaxPageSize + 1})
		if domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("rejects page numbers past the addressable range", func(t *testing.T) {
		for _, page := range []int{queries.MaxPage + 1, math.MaxInt / 2, math.MaxInt} {
			_, err := handler.Handle(context.Background(), queries.ListOrdersQuery{Actor: admin, Page: page})
			if domain.KindOf(err) != domain.KindValidation {
				t.Fatalf("page %d: expected validation error, got %v", page, err)
			}
		}
	})

	t.Run("the last accepted page is simply empty", func(t *testing.T) {
		orders, err := handler.Handle(context.Background(), queries.ListOrdersQuery{Actor: admin, Page: queries.MaxPage, PageSize: queries.MaxPageSize})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(orders) != 0 {
			t.Errorf("expected an empty page, got %d orders", len(orders))
		}
	})

	t.Run("requires authentication", func(t *testing.T) {
		_, err := handler.Handle(context.Background(), queries.ListOrdersQuery{})
		if domain.KindOf(err) != domain.KindUnauthorized {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	})
}
