package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const orderColumns = `
	id, user_id, shipping_address, payment_method, currency,
	items_price, tax_price, shipping_price, total_price,
	status, payment_status, gateway_order_id, gateway_payment_id, payment_failure_reason,
	paid_at, delivered_at, cancelled_at, created_at, updated_at, version`

// Repository stores orders in the orders and order_items tables. Items are
// written once with the order and never change afterwards.
type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.OrderRepository = (*Repository)(nil)

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
			order.ID,
			order.UserID,
			order.ShippingAddress,
			order.PaymentMethod,
			order.Currency,
			order.ItemsPrice,
			order.TaxPrice,
			order.ShippingPrice,
			order.TotalPrice,
			order.Status,
			order.PaymentStatus,
			order.GatewayOrderID,
			order.GatewayPaymentID,
			order.PaymentFailureReason,
			order.PaidAt,
			order.DeliveredAt,
			order.CancelledAt,
			order.CreatedAt,
			order.UpdatedAt,
			order.Version,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range order.Items {
			batch.Queue(`
				INSERT INTO order_items (order_id, position, product_id, name, size, unit_price, quantity, image_url)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				order.ID, i, item.ProductID, item.Name, item.Size.String(), item.UnitPrice, item.Quantity, item.ImageURL,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		return nil
	})
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	order.Items = items[id]

	return &order, nil
}

// List returns orders newest first. Pagination is 1-based.
func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	offset, limit := filter.Window()

	var statusFilter, userFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}
	if filter.UserID != "" {
		userFilter = &filter.UserID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::text IS NULL OR user_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`,
		statusFilter, userFilter, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}

	return orders, nil
}

// Update writes the mutable order fields only if the stored version still
// equals expectedVersion.
func (r *Repository) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = $3,
		    payment_status = $4,
		    gateway_order_id = $5,
		    gateway_payment_id = $6,
		    payment_failure_reason = $7,
		    paid_at = $8,
		    delivered_at = $9,
		    cancelled_at = $10,
		    updated_at = $11,
		    version = $12
		WHERE id = $1 AND version = $2`,
		order.ID,
		expectedVersion,
		order.Status,
		order.PaymentStatus,
		order.GatewayOrderID,
		order.GatewayPaymentID,
		order.PaymentFailureReason,
		order.PaidAt,
		order.DeliveredAt,
		order.CancelledAt,
		order.UpdatedAt,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return ports.ErrNotFound
	}
	return ports.ErrVersionConflict
}

func (r *Repository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT order_id, product_id, name, size, unit_price, quantity, image_url
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			size    string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &size, &item.UnitPrice, &item.Quantity, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if item.Size, err = domain.ParseSize(size); err != nil {
			return nil, fmt.Errorf("order %s item %s: %w", orderID, item.ProductID, err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.ShippingAddress,
		&order.PaymentMethod,
		&order.Currency,
		&order.ItemsPrice,
		&order.TaxPrice,
		&order.ShippingPrice,
		&order.TotalPrice,
		&order.Status,
		&order.PaymentStatus,
		&order.GatewayOrderID,
		&order.GatewayPaymentID,
		&order.PaymentFailureReason,
		&order.PaidAt,
		&order.DeliveredAt,
		&order.CancelledAt,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	)
	return order, err
}
