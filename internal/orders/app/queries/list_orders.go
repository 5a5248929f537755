package queries

import (
	"context"
	"fmt"
	"math"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const (
	MaxPageSize = 100
	// MaxPage keeps page*page_size within int for every accepted page size.
	MaxPage = math.MaxInt / MaxPageSize
)

type ListOrdersQuery struct {
	Actor    domain.Actor
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

func (q ListOrdersQuery) Validate() error {
	if !q.Actor.Authenticated() {
		return &domain.UnauthorizedError{Reason: "authentication required"}
	}
	if q.Page < 0 || q.Page > MaxPage {
		return &domain.ValidationError{Field: "page", Message: fmt.Sprintf("must not be negative or exceed %d", MaxPage)}
	}
	if q.PageSize < 0 || q.PageSize > MaxPageSize {
		return &domain.ValidationError{Field: "page_size", Message: fmt.Sprintf("must be between 1 and %d", MaxPageSize)}
	}
	return nil
}

// ListOrdersQueryHandler lists every order for admins and only their own for everyone else.
type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	filter := ports.ListFilter{
		Status:   query.Status,
		Page:     max(query.Page, 1),
		PageSize: query.PageSize,
	}
	if filter.PageSize == 0 {
		filter.PageSize = ports.DefaultPageSize
	}
	if !query.Actor.IsAdmin() {
		filter.UserID = query.Actor.UserID
	}

	orders, err := h.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
