package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
	"github.com/dejobratic/checkout/internal/orders/pricing"
)

// CartLine is one requested product size and quantity.
type CartLine struct {
	ProductID string
	Size      domain.Size
	Quantity  int
}

type CreateOrderCommand struct {
	Actor           domain.Actor
	Items           []CartLine
	ShippingAddress domain.ShippingAddress
	PaymentMethod   domain.PaymentMethod
}

func (c CreateOrderCommand) Validate() error {
	if !c.Actor.Authenticated() {
		return unauthorized("authentication required")
	}
	if len(c.Items) == 0 {
		return &domain.ValidationError{Field: "items", Message: "must not be empty"}
	}
	for i, line := range c.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].product_id", i), Message: "is required"}
		}
		if !line.Size.Valid() {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].size", i), Message: "is invalid"}
		}
		if line.Quantity <= 0 {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "must be positive"}
		}
	}
	if !c.PaymentMethod.Valid() {
		return &domain.ValidationError{Field: "payment_method", Message: "must be gateway or cash_on_delivery"}
	}
	return c.ShippingAddress.Validate()
}

// mergedLines folds repeated (product, size) pairs into one line, keeping first-seen order.
func (c CreateOrderCommand) mergedLines() []CartLine {
	type key struct {
		productID string
		size      domain.Size
	}
	index := make(map[key]int, len(c.Items))
	merged := make([]CartLine, 0, len(c.Items))
	for _, line := range c.Items {
		line.ProductID = strings.TrimSpace(line.ProductID)
		k := key{line.ProductID, line.Size}
		if i, ok := index[k]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[k] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

type CommandHandler interface {
	Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error)
}

type CreateOrderCommandHandler struct {
	catalog             ports.Catalog
	ledger              ports.InventoryLedger
	repo                ports.OrderRepository
	pricing             *pricing.Engine
	notifier            *Notifier
	logger              *slog.Logger
	currency            string
	clock               Clock
	compensationTimeout time.Duration
}

func NewCreateOrderCommandHandler(
	catalog ports.Catalog,
	ledger ports.InventoryLedger,
	repo ports.OrderRepository,
	engine *pricing.Engine,
	notifier *Notifier,
	logger *slog.Logger,
	currency string,
	clock Clock,
	compensationTimeout time.Duration,
) *CreateOrderCommandHandler {
	return &CreateOrderCommandHandler{
		catalog:             catalog,
		ledger:              ledger,
		repo:                repo,
		pricing:             engine,
		notifier:            notifier,
		logger:              logger,
		currency:            currency,
		clock:               clock,
		compensationTimeout: compensationTimeout,
	}
}

func (h *CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	items, err := h.snapshotItems(ctx, cmd.mergedLines())
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		lines[i] = pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity}
	}
	quote := h.pricing.Compute(lines)

	now := h.clock()
	order := domain.Order{
		ID:              uuid.NewString(),
		UserID:          cmd.Actor.UserID,
		Items:           items,
		ShippingAddress: cmd.ShippingAddress,
		PaymentMethod:   cmd.PaymentMethod,
		Currency:        h.currency,
		ItemsPrice:      quote.ItemsPrice,
		TaxPrice:        quote.TaxPrice,
		ShippingPrice:   quote.ShippingPrice,
		TotalPrice:      quote.TotalPrice,
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	if order.PaymentMethod == domain.PaymentMethodGateway {
		order.PaymentStatus = domain.PaymentPending
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	// Ledger and store writes run detached from the caller: a write cancelled
	// mid-flight may still commit, and then nothing would release it. The
	// caller's ctx is only consulted between steps.
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.compensationTimeout)
	defer cancel()

	saga := newReservationSaga(h.ledger)
	for _, item := range order.Items {
		if err := ctx.Err(); err != nil {
			return nil, h.abort(ctx, saga, order.ID, fmt.Errorf("create order: %w", err))
		}
		if err := saga.reserve(commitCtx, item); err != nil {
			return nil, h.abort(ctx, saga, order.ID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, h.abort(ctx, saga, order.ID, fmt.Errorf("create order: %w", err))
	}

	if err := h.persist(commitCtx, order); err != nil {
		return nil, h.abort(ctx, saga, order.ID, err)
	}

	if order.PaymentMethod == domain.PaymentMethodCashOnDelivery {
		h.notifier.OrderConfirmed(ctx, order)
	}

	return &order, nil
}

// persist stores the order. When Create fails the order is looked up again,
// since a write whose reply was lost may have committed, and releasing its
// stock then would let another checkout sell the same units.
func (h *CreateOrderCommandHandler) persist(ctx context.Context, order domain.Order) error {
	err := h.repo.Create(ctx, order)
	if err == nil {
		return nil
	}

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.compensationTimeout)
	defer cancel()
	if stored, getErr := h.repo.GetByID(checkCtx, order.ID); getErr == nil && stored.Version == order.Version {
		h.logger.WarnContext(ctx, "order stored despite create error", "order_id", order.ID, "error", err)
		return nil
	}
	return fmt.Errorf("persist order: %w", err)
}

// snapshotItems prices every line from the catalog. Client prices are never trusted.
func (h *CreateOrderCommandHandler) snapshotItems(ctx context.Context, lines []CartLine) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, err := h.catalog.GetProduct(ctx, line.ProductID)
		if errors.Is(err, ports.ErrNotFound) {
			return nil, &domain.NotFoundError{Resource: "product", ID: line.ProductID}
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", line.ProductID, err)
		}
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Size:      line.Size,
			UnitPrice: product.UnitPrice,
			Quantity:  line.Quantity,
			ImageURL:  product.ImageURL,
		})
	}
	return items, nil
}

func (h *CreateOrderCommandHandler) abort(ctx context.Context, saga *reservationSaga, orderID string, cause error) error {
	units := saga.units()
	if units == 0 {
		return cause
	}

	if err := saga.compensate(ctx, h.compensationTimeout); err != nil {
		h.logger.ErrorContext(ctx, "failed to compensate stock reservations",
			"order_id", orderID,
			"error", err,
		)
		return errors.Join(cause, fmt.Errorf("compensate reservations: %w", err))
	}

	h.logger.WarnContext(ctx, "released reservations after failed checkout",
		"order_id", orderID,
		"units", units,
		"cause", cause,
	)
	return cause
}
