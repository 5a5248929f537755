package ports

import (
	"context"
	"errors"
	"math"

	"github.com/dejobratic/checkout/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// Update replaces the stored order only while its version still equals
	// expectedVersion, otherwise it returns ErrVersionConflict.
	Update(ctx context.Context, order domain.Order, expectedVersion int64) error
}

// ListFilter narrows list queries by owner, status and pagination.
type ListFilter struct {
	UserID   string
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

// DefaultPageSize applies when a filter leaves PageSize unset.
const DefaultPageSize = 20

// Window converts the 1-based page into an offset and limit. Pages past the
// addressable range saturate so offset+limit never overflows.
func (f ListFilter) Window() (offset, limit int) {
	limit = f.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	lastPage := (math.MaxInt - limit) / limit
	return min(max(f.Page, 1)-1, lastPage) * limit, limit
}

// Matches reports whether order passes the owner and status filters.
func (f ListFilter) Matches(order domain.Order) bool {
	if f.UserID != "" && order.UserID != f.UserID {
		return false
	}
	return f.Status == nil || order.Status == *f.Status
}

var (
	// ErrNotFound is returned when the requested order or product does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when an order changed since it was read.
	ErrVersionConflict = errors.New("order was modified concurrently")
)
