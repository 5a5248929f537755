package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dejobratic/checkout/internal/orders/app/commands"
	"github.com/dejobratic/checkout/internal/orders/app/queries"
	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/metrics"
	"github.com/dejobratic/checkout/internal/orders/ports"
	"github.com/dejobratic/checkout/internal/orders/pricing"
)

const defaultCompensationTimeout = 10 * time.Second

// Dependencies are the collaborators the checkout service is built from.
// Metrics and Clock are optional.
type Dependencies struct {
	Repository  ports.OrderRepository
	Catalog     ports.Catalog
	Ledger      ports.InventoryLedger
	Gateway     ports.PaymentGateway
	Events      ports.EventBus
	Idempotency ports.IdempotencyStore
	Pricing     *pricing.Engine
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Clock       commands.Clock

	Currency            string
	CompensationTimeout time.Duration
}

func (d Dependencies) validate() error {
	switch {
	case d.Repository == nil:
		return errors.New("order repository is required")
	case d.Catalog == nil:
		return errors.New("catalog is required")
	case d.Ledger == nil:
		return errors.New("inventory ledger is required")
	case d.Gateway == nil:
		return errors.New("payment gateway is required")
	case d.Events == nil:
		return errors.New("event bus is required")
	case d.Idempotency == nil:
		return errors.New("idempotency store is required")
	case d.Pricing == nil:
		return errors.New("pricing engine is required")
	case d.Logger == nil:
		return errors.New("logger is required")
	case d.Currency == "":
		return errors.New("currency is required")
	}
	return nil
}

// Service bundles the checkout use cases exposed through the API.
type Service struct {
	idemStore ports.IdempotencyStore
	notifier  *commands.Notifier

	createOrder   commands.CommandHandler
	cancelOrder   *commands.CancelOrderCommandHandler
	changeStatus  *commands.ChangeStatusCommandHandler
	paymentIntent *commands.CreatePaymentIntentCommandHandler
	verifyPayment *commands.VerifyPaymentCommandHandler
	failPayment   *commands.FailPaymentCommandHandler

	getOrder   *queries.GetOrderQueryHandler
	listOrders *queries.ListOrdersQueryHandler
}

// NewService wires required dependencies.
func NewService(deps Dependencies) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	clock := deps.Clock
	if clock == nil {
		clock = commands.UTCClock
	}
	timeout := deps.CompensationTimeout
	if timeout <= 0 {
		timeout = defaultCompensationTimeout
	}
	var recorder commands.Recorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	notifier := commands.NewNotifier(deps.Events, deps.Logger)

	var createOrder commands.CommandHandler = commands.NewCreateOrderCommandHandler(
		deps.Catalog, deps.Ledger, deps.Repository, deps.Pricing, notifier, deps.Logger, deps.Currency, clock, timeout,
	)
	if deps.Metrics != nil {
		createOrder = commands.NewObservableCommandHandler(createOrder, deps.Logger, deps.Metrics)
	}

	cancelOrder := commands.NewCancelOrderCommandHandler(deps.Repository, deps.Ledger, notifier, recorder, deps.Logger, clock, timeout)

	return &Service{
		idemStore:     deps.Idempotency,
		notifier:      notifier,
		createOrder:   createOrder,
		cancelOrder:   cancelOrder,
		changeStatus:  commands.NewChangeStatusCommandHandler(deps.Repository, cancelOrder, recorder, clock),
		paymentIntent: commands.NewCreatePaymentIntentCommandHandler(deps.Repository, deps.Gateway, clock),
		verifyPayment: commands.NewVerifyPaymentCommandHandler(deps.Repository, deps.Gateway, notifier, recorder, clock),
		failPayment:   commands.NewFailPaymentCommandHandler(deps.Repository, deps.Ledger, notifier, recorder, deps.Logger, clock, timeout),
		getOrder:      queries.NewGetOrderQueryHandler(deps.Repository),
		listOrders:    queries.NewListOrdersQueryHandler(deps.Repository),
	}, nil
}

// CartItemInput is one line of the client's cart.
type CartItemInput struct {
	ProductID string      `json:"product_id"`
	Size      domain.Size `json:"size"`
	Quantity  int         `json:"quantity"`
}

// CreateOrderInput captures payload for creating an order. Prices are never
// accepted from the client.
type CreateOrderInput struct {
	Items           []CartItemInput        `json:"items"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	PaymentMethod   domain.PaymentMethod   `json:"payment_method"`
}

// CreateOrder reserves stock, prices the cart and stores a pending order.
func (s *Service) CreateOrder(ctx context.Context, actor domain.Actor, input CreateOrderInput) (*domain.Order, error) {
	cmd := commands.CreateOrderCommand{
		Actor:           actor,
		Items:           make([]commands.CartLine, len(input.Items)),
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   input.PaymentMethod,
	}
	for i, item := range input.Items {
		cmd.Items[i] = commands.CartLine{ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity}
	}
	return s.createOrder.Handle(ctx, cmd)
}

// GetOrder retrieves an order by ID.
func (s *Service) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.Order, error) {
	return s.getOrder.Handle(ctx, queries.GetOrderQuery{Actor: actor, OrderID: id})
}

// ListOrdersInput narrows an order listing.
type ListOrdersInput struct {
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

// ListOrders returns orders visible to the actor.
func (s *Service) ListOrders(ctx context.Context, actor domain.Actor, input ListOrdersInput) ([]domain.Order, error) {
	return s.listOrders.Handle(ctx, queries.ListOrdersQuery{
		Actor:    actor,
		Status:   input.Status,
		Page:     input.Page,
		PageSize: input.PageSize,
	})
}

// CancelOrder cancels a pending or processing order and returns its stock.
func (s *Service) CancelOrder(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Order, error) {
	return s.cancelOrder.Handle(ctx, commands.CancelOrderCommand{Actor: actor, OrderID: id, Reason: reason})
}

// ChangeStatus advances fulfilment. Admin only.
func (s *Service) ChangeStatus(ctx context.Context, actor domain.Actor, id string, status domain.OrderStatus) (*domain.Order, error) {
	return s.changeStatus.Handle(ctx, commands.ChangeStatusCommand{Actor: actor, OrderID: id, Status: status})
}

// CreatePaymentIntent returns the gateway order to pay for id, creating it on first use.
func (s *Service) CreatePaymentIntent(ctx context.Context, actor domain.Actor, id string) (string, error) {
	return s.paymentIntent.Handle(ctx, commands.CreatePaymentIntentCommand{Actor: actor, OrderID: id})
}

// VerifyPaymentInput is the callback the client relays after paying.
type VerifyPaymentInput struct {
	OrderID        string `json:"order_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

// VerifyPayment confirms a signed payment.
func (s *Service) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*domain.Order, error) {
	return s.verifyPayment.Handle(ctx, commands.VerifyPaymentCommand{
		OrderID:        input.OrderID,
		GatewayOrderID: input.GatewayOrderID,
		PaymentID:      input.PaymentID,
		Signature:      input.Signature,
	})
}

// FailPayment records a failed payment and cancels the order.
func (s *Service) FailPayment(ctx context.Context, actor domain.Actor, id, reason string) (*domain.Order, error) {
	return s.failPayment.Handle(ctx, commands.FailPaymentCommand{Actor: actor, OrderID: id, Reason: reason})
}

// SaveIdempotentResponse writes response details for a key.
func (s *Service) SaveIdempotentResponse(ctx context.Context, key string, response ports.StoredResponse) error {
	return s.idemStore.Save(ctx, key, response)
}

// GetIdempotentResponse retrieves previously stored response data.
func (s *Service) GetIdempotentResponse(ctx context.Context, key string) (*ports.StoredResponse, error) {
	return s.idemStore.Get(ctx, key)
}

// Wait blocks until in-flight order notifications have been attempted.
func (s *Service) Wait() {
	s.notifier.Wait()
}
