package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

// Repository keeps orders in a map. Every read and write goes through
// Order.Clone so callers never share item slices with the store.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

var _ ports.OrderRepository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{orders: make(map[string]domain.Order)}
}

func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.orders[order.ID]; taken {
		return fmt.Errorf("insert order: duplicate id %s", order.ID)
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	order, ok := r.orders[id]
	r.mu.RUnlock()

	if !ok {
		return nil, ports.ErrNotFound
	}
	order = order.Clone()
	return &order, nil
}

// List orders newest first, ties broken by id.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	matched := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Matches(order) {
			matched = append(matched, order.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	offset, limit := filter.Window()
	if offset >= len(matched) {
		return []domain.Order{}, nil
	}
	return matched[offset:min(offset+limit, len(matched))], nil
}

func (r *Repository) Update(_ context.Context, order domain.Order, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.orders[order.ID]
	switch {
	case !ok:
		return ports.ErrNotFound
	case current.Version != expectedVersion:
		return ports.ErrVersionConflict
	}
	r.orders[order.ID] = order.Clone()
	return nil
}
