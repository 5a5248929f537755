package ports

import (
	"context"

	"github.com/dejobratic/checkout/internal/orders/domain"
)

// Catalog is the read side of the product catalog. Prices it returns are authoritative.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

// InventoryLedger mutates per-size stock. Both operations are atomic per (productID, size).
type InventoryLedger interface {
	// Reserve decrements stock by qty if at least qty is available and returns what remains.
	// When stock is short it returns *domain.InsufficientStockError and leaves stock unchanged.
	Reserve(ctx context.Context, productID string, size domain.Size, qty int) (int, error)
	// Release returns qty units taken by an earlier Reserve.
	Release(ctx context.Context, productID string, size domain.Size, qty int) error
}
