package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

type stockedProduct struct {
	product domain.Product
	// counters are only ever changed atomically.
	counters [domain.NumSizes]atomic.Int64
}

// Catalog is an in-memory product catalog that doubles as the inventory ledger.
// The map lock guards membership only; stock counters are lock-free.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]*stockedProduct
}

func NewCatalog() *Catalog {
	return &Catalog{products: make(map[string]*stockedProduct)}
}

// Put adds or replaces a product together with its stock levels.
func (c *Catalog) Put(product domain.Product) error {
	if err := product.Stock.Validate(); err != nil {
		return err
	}

	entry := &stockedProduct{product: product}
	for i, qty := range product.Stock {
		entry.counters[i].Store(int64(qty))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[product.ID] = entry
	return nil
}

// GetProduct returns the product with a point-in-time stock snapshot.
func (c *Catalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	entry, ok := c.lookup(id)
	if !ok {
		return domain.Product{}, ports.ErrNotFound
	}

	product := entry.product
	for i := range entry.counters {
		product.Stock[i] = int(entry.counters[i].Load())
	}
	return product, nil
}

// Reserve atomically takes qty units if available.
func (c *Catalog) Reserve(_ context.Context, productID string, size domain.Size, qty int) (int, error) {
	if qty <= 0 {
		return 0, &domain.ValidationError{Field: "quantity", Message: "must be positive"}
	}
	counter, err := c.counter(productID, size)
	if err != nil {
		return 0, err
	}

	for {
		current := counter.Load()
		if current < int64(qty) {
			return int(current), &domain.InsufficientStockError{
				ProductID: productID,
				Size:      size,
				Requested: qty,
				Available: int(current),
			}
		}
		if counter.CompareAndSwap(current, current-int64(qty)) {
			return int(current - int64(qty)), nil
		}
	}
}

// Release atomically returns qty units.
func (c *Catalog) Release(_ context.Context, productID string, size domain.Size, qty int) error {
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Message: "must be positive"}
	}
	counter, err := c.counter(productID, size)
	if err != nil {
		return err
	}
	counter.Add(int64(qty))
	return nil
}

func (c *Catalog) lookup(id string) (*stockedProduct, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.products[id]
	return entry, ok
}

func (c *Catalog) counter(productID string, size domain.Size) (*atomic.Int64, error) {
	if !size.Valid() {
		return nil, &domain.ValidationError{Field: "size", Message: "is invalid"}
	}
	entry, ok := c.lookup(productID)
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &entry.counters[size], nil
}

type seedProduct struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	UnitPrice int64          `json:"unit_price"`
	ImageURL  string         `json:"image_url"`
	Stock     map[string]int `json:"stock"`
}

// ReadSeedFile decodes a JSON array of products with stock keyed by size label.
func ReadSeedFile(path string) ([]domain.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}

	var seeds []seedProduct
	if err := json.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("decode catalog seed: %w", err)
	}

	products := make([]domain.Product, 0, len(seeds))
	for _, seed := range seeds {
		product := domain.Product{
			ID:        seed.ID,
			Name:      seed.Name,
			UnitPrice: seed.UnitPrice,
			ImageURL:  seed.ImageURL,
		}
		for label, qty := range seed.Stock {
			size, err := domain.ParseSize(label)
			if err != nil {
				return nil, fmt.Errorf("seed product %s: %w", seed.ID, err)
			}
			product.Stock[size] = qty
		}
		products = append(products, product)
	}
	return products, nil
}

// LoadSeedFile populates the catalog from a seed file for local runs.
func (c *Catalog) LoadSeedFile(path string) (int, error) {
	products, err := ReadSeedFile(path)
	if err != nil {
		return 0, err
	}
	for _, product := range products {
		if err := c.Put(product); err != nil {
			return 0, fmt.Errorf("seed product %s: %w", product.ID, err)
		}
	}
	return len(products), nil
}
