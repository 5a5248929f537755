package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

type GetOrderQuery struct {
	Actor   domain.Actor
	OrderID string
}

func (q GetOrderQuery) Validate() error {
	switch {
	case !q.Actor.Authenticated():
		return &domain.UnauthorizedError{Reason: "authentication required"}
	case strings.TrimSpace(q.OrderID) == "":
		return &domain.ValidationError{Field: "order_id", Message: "is required"}
	}
	return nil
}

// GetOrderQueryHandler returns an order to its owner or to an admin. Other
// users get an unauthorized error, never the order.
type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	order, err := h.repo.GetByID(ctx, query.OrderID)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return nil, &domain.NotFoundError{Resource: "order", ID: query.OrderID}
	case err != nil:
		return nil, fmt.Errorf("load order %s: %w", query.OrderID, err)
	case !query.Actor.CanAccess(*order):
		return nil, &domain.UnauthorizedError{Reason: "order belongs to another user"}
	}
	return order, nil
}
