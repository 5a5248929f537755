package adapters

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dejobratic/checkout/internal/database"
	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
	"github.com/dejobratic/checkout/internal/telemetry"
)

// ObservableRepository traces and times every order store call.
type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

var _ ports.OrderRepository = (*ObservableRepository)(nil)

func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) *ObservableRepository {
	return &ObservableRepository{repo: repo, metrics: metrics}
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	return r.query(ctx, "create_order", func(ctx context.Context, _ trace.Span) error {
		return r.repo.Create(ctx, order)
	},
		attribute.String("order.id", order.ID),
		attribute.Int("order.items", len(order.Items)),
	)
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := r.query(ctx, "get_order_by_id", func(ctx context.Context, span trace.Span) error {
		var err error
		if order, err = r.repo.GetByID(ctx, id); err == nil {
			telemetry.AddSpanAttributes(span, attribute.Int64("order.version", order.Version))
		}
		return err
	}, attribute.String("order.id", id))
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
		attribute.Bool("filter.by_user", filter.UserID != ""),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}

	var orders []domain.Order
	err := r.query(ctx, "list_orders", func(ctx context.Context, span trace.Span) error {
		var err error
		if orders, err = r.repo.List(ctx, filter); err == nil {
			telemetry.AddSpanAttributes(span, attribute.Int("result.count", len(orders)))
		}
		return err
	}, attrs...)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *ObservableRepository) Update(ctx context.Context, order domain.Order, expectedVersion int64) error {
	return r.query(ctx, "update_order", func(ctx context.Context, _ trace.Span) error {
		return r.repo.Update(ctx, order, expectedVersion)
	},
		attribute.String("order.id", order.ID),
		attribute.String("order.status", string(order.Status)),
		attribute.Int64("order.expected_version", expectedVersion),
	)
}

func (r *ObservableRepository) query(ctx context.Context, op string, call func(context.Context, trace.Span) error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository "+op, append(attrs, attribute.String("db.operation", op))...)

	start := time.Now()
	err := call(ctx, span)
	r.metrics.RecordQuery(ctx, op, time.Since(start), unexpected(err))

	telemetry.FinishSpan(span, err)
	return err
}

// unexpected separates store faults from the not-found and version-conflict
// answers the application handles itself.
func unexpected(err error) bool {
	return err != nil && !errors.Is(err, ports.ErrNotFound) && !errors.Is(err, ports.ErrVersionConflict)
}
