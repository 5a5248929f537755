package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const foreignKeyViolation = "23503"

// Catalog reads products from products/product_stock and moves stock with
// single conditional statements, so concurrent reservations never oversell.
type Catalog struct {
	pool *pgxpool.Pool
}

var (
	_ ports.Catalog         = (*Catalog)(nil)
	_ ports.InventoryLedger = (*Catalog)(nil)
)

func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := c.pool.QueryRow(ctx,
		`SELECT id, name, unit_price, image_url FROM products WHERE id = $1`, id,
	).Scan(&product.ID, &product.Name, &product.UnitPrice, &product.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, ports.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	rows, err := c.pool.Query(ctx, `SELECT size, quantity FROM product_stock WHERE product_id = $1`, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			label string
			qty   int
		)
		if err := rows.Scan(&label, &qty); err != nil {
			return domain.Product{}, fmt.Errorf("scan stock: %w", err)
		}
		size, err := domain.ParseSize(label)
		if err != nil {
			return domain.Product{}, fmt.Errorf("product %s: %w", id, err)
		}
		product.Stock[size] = qty
	}
	if err := rows.Err(); err != nil {
		return domain.Product{}, fmt.Errorf("iterate stock: %w", err)
	}

	return product, nil
}

// Reserve takes qty units in one statement that only matches while enough stock remains.
func (c *Catalog) Reserve(ctx context.Context, productID string, size domain.Size, qty int) (int, error) {
	if err := checkMovement(size, qty); err != nil {
		return 0, err
	}

	var remaining int
	err := c.pool.QueryRow(ctx, `
		UPDATE product_stock
		SET quantity = quantity - $3
		WHERE product_id = $1 AND size = $2 AND quantity >= $3
		RETURNING quantity`,
		productID, size.String(), qty,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("reserve stock: %w", err)
	}

	var available *int
	err = c.pool.QueryRow(ctx, `
		SELECT s.quantity
		FROM products p
		LEFT JOIN product_stock s ON s.product_id = p.id AND s.size = $2
		WHERE p.id = $1`,
		productID, size.String(),
	).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ports.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}

	current := 0
	if available != nil {
		current = *available
	}
	return current, &domain.InsufficientStockError{
		ProductID: productID,
		Size:      size,
		Requested: qty,
		Available: current,
	}
}

// Release adds qty units back, creating the size row if it was never stocked.
func (c *Catalog) Release(ctx context.Context, productID string, size domain.Size, qty int) error {
	if err := checkMovement(size, qty); err != nil {
		return err
	}

	_, err := c.pool.Exec(ctx, `
		INSERT INTO product_stock (product_id, size, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, size) DO UPDATE
		SET quantity = product_stock.quantity + EXCLUDED.quantity`,
		productID, size.String(), qty,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ports.ErrNotFound
		}
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}

// Upsert writes a product and replaces its stock levels.
func (c *Catalog) Upsert(ctx context.Context, product domain.Product) error {
	if err := product.Stock.Validate(); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, c.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, unit_price, image_url)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price, image_url = EXCLUDED.image_url`,
			product.ID, product.Name, product.UnitPrice, product.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}

		batch := &pgx.Batch{}
		for _, size := range domain.Sizes() {
			batch.Queue(`
				INSERT INTO product_stock (product_id, size, quantity)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id, size) DO UPDATE SET quantity = EXCLUDED.quantity`,
				product.ID, size.String(), product.Stock.Of(size),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert stock: %w", err)
		}
		return nil
	})
}

func checkMovement(size domain.Size, qty int) error {
	if !size.Valid() {
		return &domain.ValidationError{Field: "size", Message: "is invalid"}
	}
	if qty <= 0 {
		return &domain.ValidationError{Field: "quantity", Message: "must be positive"}
	}
	return nil
}
