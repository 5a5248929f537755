package commands_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dejobratic/checkout/internal/orders/adapters/gateway"
	"github.com/dejobratic/checkout/internal/orders/adapters/memory"
	"github.com/dejobratic/checkout/internal/orders/app/commands"
	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
	"github.com/dejobratic/checkout/internal/orders/pricing"
)

const testSecret = "test_secret"

var (
	customer = domain.Actor{UserID: "user-1", Role: domain.RoleUser}
	stranger = domain.Actor{UserID: "user-2", Role: domain.RoleUser}
	admin    = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
)

type fakeGateway struct {
	mu      sync.Mutex
	calls   int
	err     error
	started chan struct{}
	release chan struct{}
	signer  gateway.Signer
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{signer: gateway.NewSigner(testSecret)}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, req ports.IntentRequest) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	err := g.err
	g.mu.Unlock()

	if g.started != nil {
		g.started <- struct{}{}
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("order_gw_%d", n), nil
}

func (g *fakeGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return g.signer.Verify(gatewayOrderID, paymentID, signature)
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type recordingEventBus struct {
	mu        sync.Mutex
	confirmed []string
	cancelled []string
	err       error
}

func (b *recordingEventBus) PublishOrderConfirmed(ctx context.Context, order domain.Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmed = append(b.confirmed, order.ID)
	return b.err
}

func (b *recordingEventBus) PublishOrderCancelled(ctx context.Context, order domain.Order, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = append(b.cancelled, order.ID)
	return b.err
}

func (b *recordingEventBus) Confirmed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.confirmed...)
}

func (b *recordingEventBus) Cancelled() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.cancelled...)
}

// flakyLedger fails Reserve for one product and can count releases.
type flakyLedger struct {
	*memory.Catalog
	failProduct string
	onReserve   func()
	mu          sync.Mutex
	releases    int
}

func (l *flakyLedger) Reserve(ctx context.Context, productID string, size domain.Size, qty int) (int, error) {
	if productID == l.failProduct {
		return 0, errors.New("ledger unavailable")
	}
	remaining, err := l.Catalog.Reserve(ctx, productID, size, qty)
	if err == nil && l.onReserve != nil {
		l.onReserve()
	}
	return remaining, err
}

func (l *flakyLedger) Release(ctx context.Context, productID string, size domain.Size, qty int) error {
	l.mu.Lock()
	l.releases++
	l.mu.Unlock()
	return l.Catalog.Release(ctx, productID, size, qty)
}

func (l *flakyLedger) Releases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releases
}

// driverLedger behaves like a database driver that notices cancellation only
// after the statement committed: the decrement sticks, yet the call reports
// the context error if the ctx it was given is done.
type driverLedger struct {
	*memory.Catalog
	afterCommit func()
}

func (l *driverLedger) Reserve(ctx context.Context, productID string, size domain.Size, qty int) (int, error) {
	remaining, err := l.Catalog.Reserve(context.Background(), productID, size, qty)
	if err != nil {
		return 0, err
	}
	if l.afterCommit != nil {
		l.afterCommit()
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return remaining, nil
}

// lostReplyRepository stores the order but reports a failure, like an insert
// that committed after the connection dropped.
type lostReplyRepository struct {
	*memory.Repository
}

func (r lostReplyRepository) Create(ctx context.Context, order domain.Order) error {
	if err := r.Repository.Create(ctx, order); err != nil {
		return err
	}
	return errors.New("connection reset by peer")
}

type failingCreateRepository struct {
	*memory.Repository
}

func (r failingCreateRepository) Create(context.Context, domain.Order) error {
	return errors.New("database unavailable")
}

type fixture struct {
	catalog  *memory.Catalog
	ledger   ports.InventoryLedger
	repo     ports.OrderRepository
	gateway  *fakeGateway
	events   *recordingEventBus
	notifier *commands.Notifier

	create *commands.CreateOrderCommandHandler
	cancel *commands.CancelOrderCommandHandler
	status *commands.ChangeStatusCommandHandler
	intent *commands.CreatePaymentIntentCommandHandler
	verify *commands.VerifyPaymentCommandHandler
	fail   *commands.FailPaymentCommandHandler
}

type fixtureOption func(*fixture)

func withLedger(build func(*memory.Catalog) ports.InventoryLedger) fixtureOption {
	return func(f *fixture) { f.ledger = build(f.catalog) }
}

func withRepository(repo ports.OrderRepository) fixtureOption {
	return func(f *fixture) { f.repo = repo }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	catalog := memory.NewCatalog()
	seed := []domain.Product{
		{ID: "tee", Name: "Tee", UnitPrice: 500, ImageURL: "/img/tee.png"},
		{ID: "hoodie", Name: "Hoodie", UnitPrice: 1999},
	}
	seed[0].Stock[domain.SizeM] = 10
	seed[0].Stock[domain.SizeL] = 4
	seed[1].Stock[domain.SizeM] = 3
	for _, p := range seed {
		if err := catalog.Put(p); err != nil {
			t.Fatalf("failed to seed catalog: %v", err)
		}
	}

	f := &fixture{
		catalog: catalog,
		ledger:  catalog,
		repo:    memory.NewRepository(),
		gateway: newFakeGateway(),
		events:  &recordingEventBus{},
	}
	for _, opt := range opts {
		opt(f)
	}

	engine, err := pricing.NewEngine(pricing.Policy{TaxRate: pricing.DefaultTaxRate})
	if err != nil {
		t.Fatalf("failed to build pricing engine: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return fixedNow }
	f.notifier = commands.NewNotifier(f.events, logger)

	f.create = commands.NewCreateOrderCommandHandler(catalog, f.ledger, f.repo, engine, f.notifier, logger, "INR", clock, time.Second)
	f.cancel = commands.NewCancelOrderCommandHandler(f.repo, f.ledger, f.notifier, nil, logger, clock, time.Second)
	f.status = commands.NewChangeStatusCommandHandler(f.repo, f.cancel, nil, clock)
	f.intent = commands.NewCreatePaymentIntentCommandHandler(f.repo, f.gateway, clock)
	f.verify = commands.NewVerifyPaymentCommandHandler(f.repo, f.gateway, f.notifier, nil, clock)
	f.fail = commands.NewFailPaymentCommandHandler(f.repo, f.ledger, f.notifier, nil, logger, clock, time.Second)
	return f
}

func (f *fixture) stock(t *testing.T, productID string, size domain.Size) int {
	t.Helper()
	product, err := f.catalog.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("failed to read product %s: %v", productID, err)
	}
	return product.Stock.Of(size)
}

func (f *fixture) placeOrder(t *testing.T, method domain.PaymentMethod, lines ...commands.CartLine) *domain.Order {
	t.Helper()
	order, err := f.create.Handle(context.Background(), checkout(method, lines...))
	if err != nil {
		t.Fatalf("failed to place order: %v", err)
	}
	return order
}

func (f *fixture) reload(t *testing.T, id string) *domain.Order {
	t.Helper()
	order, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to reload order %s: %v", id, err)
	}
	return order
}

func checkout(method domain.PaymentMethod, lines ...commands.CartLine) commands.CreateOrderCommand {
	return commands.CreateOrderCommand{
		Actor:         customer,
		Items:         lines,
		PaymentMethod: method,
		ShippingAddress: domain.ShippingAddress{
			FullName:   "Asha Rao",
			Phone:      "+910000000000",
			Line1:      "12 MG Road",
			City:       "Bengaluru",
			PostalCode: "560001",
			Country:    "IN",
		},
	}
}

func line(productID string, size domain.Size, qty int) commands.CartLine {
	return commands.CartLine{ProductID: productID, Size: size, Quantity: qty}
}
