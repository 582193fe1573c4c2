package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/stock"
	"github.com/xenking/storefront/internal/storage/memory"
)

var (
	refA  = catalog.Ref{ProductID: "A"}
	refB1 = catalog.Ref{ProductID: "B", VariantID: "B1"}

	buyer = auth.Identity{UserID: "u1", Email: "buyer@example.com"}
	admin = auth.Identity{UserID: "root", Role: auth.RoleAdmin}

	address = order.ShippingAddress{
		Name: "Asha", Phone: "9999999999", Line1: "1 Main St",
		City: "Pune", PostalCode: "411001", Country: "IN",
	}
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []order.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg order.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func price(v string) []catalog.Price {
	return []catalog.Price{{
		Region:   catalog.RegionDomestic,
		Currency: "INR",
		Original: decimal.RequireFromString(v),
	}}
}

type fixture struct {
	store    *memory.Store
	carts    *cart.Service
	orders   *order.Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T, stockA, stockB1 int) *fixture {
	t.Helper()

	s := memory.New()
	s.Catalog().PutProduct(catalog.Product{ID: "A", Name: "Mug", Stock: stockA, Prices: price("10.00")})
	s.Catalog().PutProduct(catalog.Product{ID: "B", Name: "Shirt"})
	s.Catalog().PutVariant(catalog.Variant{
		ID: "B1", ProductID: "B", Stock: stockB1, Prices: price("25.00"),
		Attributes: []catalog.Attribute{{Name: "Size", Value: "L"}},
	})

	n := &recordingNotifier{}
	svc, err := order.NewService(s, s.Carts(), s.Catalog(), s.Stock(), s.Orders(), order.Options{
		Notifier: n,
		Notify:   order.NotifyConfig{AdminEmail: "ops@example.com", Timeout: time.Second},
	})
	require.NoError(t, err)

	return &fixture{
		store:    s,
		carts:    cart.NewService(s.Carts(), s.Catalog(), s),
		orders:   svc,
		notifier: n,
	}
}

func (f *fixture) add(t *testing.T, userID string, ref catalog.Ref, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, ref, qty)
	require.NoError(t, err)
}

func (f *fixture) level(t *testing.T, ref catalog.Ref) int {
	t.Helper()
	n, ok := f.store.Stock().Level(ref)
	require.True(t, ok)
	return n
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t, 5, 3)
	f.add(t, buyer.UserID, refA, 2)
	f.add(t, buyer.UserID, refB1, 1)

	o, err := f.orders.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{ShippingAddress: address})
	require.NoError(t, err)

	assert.Equal(t, "45.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, order.StatusPlaced, o.Status)
	assert.Equal(t, "INR", o.Currency)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "L", o.Lines[1].VariantLabel)

	assert.Equal(t, 3, f.level(t, refA))
	assert.Equal(t, 2, f.level(t, refB1))

	c, err := f.carts.Get(context.Background(), buyer.UserID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	stored, err := f.store.Orders().Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(o.TotalAmount))

	assert.Eventually(t, func() bool { return f.notifier.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestPlaceOrder_InsufficientStockLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, 5, 3)
	f.add(t, buyer.UserID, refA, 2)
	f.add(t, buyer.UserID, refB1, 4)

	_, err := f.orders.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{ShippingAddress: address})

	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Shirt (L)", stockErr.Item)

	assert.Equal(t, 5, f.level(t, refA))
	assert.Equal(t, 3, f.level(t, refB1))

	c, err := f.carts.Get(context.Background(), buyer.UserID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)

	orders, err := f.orders.List(context.Background(), buyer)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, f.notifier.count())
}

// racingLedger loses the reservation of one target, as if a concurrent
// checkout took the last units after the order was assembled.
type racingLedger struct {
	*memory.Stock
	lose     catalog.Ref
	reserved []catalog.Ref
}

func (l *racingLedger) Reserve(ctx context.Context, ref catalog.Ref, quantity int) error {
	if ref == l.lose {
		return stock.ErrInsufficientStock
	}
	if err := l.Stock.Reserve(ctx, ref, quantity); err != nil {
		return err
	}
	l.reserved = append(l.reserved, ref)
	return nil
}

func TestPlaceOrder_ReservationLostRollsBack(t *testing.T) {
	f := newFixture(t, 5, 3)
	f.add(t, buyer.UserID, refA, 2)
	f.add(t, buyer.UserID, refB1, 1)

	ledger := &racingLedger{Stock: f.store.Stock(), lose: refB1}
	svc, err := order.NewService(f.store, f.store.Carts(), f.store.Catalog(), ledger, f.store.Orders(), order.Options{
		Notifier: f.notifier,
	})
	require.NoError(t, err)

	_, err = svc.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{ShippingAddress: address})

	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "Shirt (L)", stockErr.Item)

	// Line A was decremented inside the unit before B1 failed.
	assert.Equal(t, []catalog.Ref{refA}, ledger.reserved)
	assert.Equal(t, 5, f.level(t, refA))
	assert.Equal(t, 3, f.level(t, refB1))

	c, err := f.carts.Get(context.Background(), buyer.UserID)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)

	orders, err := svc.List(context.Background(), buyer)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, f.notifier.count())
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	f := newFixture(t, 1, 1)

	_, err := f.orders.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{ShippingAddress: address})
	require.ErrorIs(t, err, order.ErrEmptyCart)
}

func TestPlaceOrder_InvalidAddress(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.add(t, buyer.UserID, refA, 1)

	_, err := f.orders.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{
		ShippingAddress: order.ShippingAddress{Name: "Asha"},
	})
	require.ErrorIs(t, err, order.ErrInvalidAddress)
	assert.Equal(t, 1, f.level(t, refA))
}

func TestPlaceOrder_PriceUnavailableInRegion(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.add(t, buyer.UserID, refA, 1)

	_, err := f.orders.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{
		ShippingAddress: address,
		Region:          catalog.RegionOverseas,
	})
	var priceErr *order.PriceUnavailableError
	require.ErrorAs(t, err, &priceErr)
}

func TestPlaceOrder_NotifierFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t, 1, 1)
	f.notifier.err = errors.New("smtp down")
	f.add(t, buyer.UserID, refA, 1)

	o, err := f.orders.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{ShippingAddress: address})
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Eventually(t, func() bool { return f.notifier.count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t, 1, 0)
	users := []auth.Identity{
		{UserID: "u1", Email: "u1@example.com"},
		{UserID: "u2", Email: "u2@example.com"},
	}
	for _, u := range users {
		f.add(t, u.UserID, refA, 1)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for _, u := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.PlaceOrder(context.Background(), u, order.PlaceOrderRequest{ShippingAddress: address})
			mu.Lock()
			defer mu.Unlock()
			var stockErr *order.InsufficientStockError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &stockErr):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, f.level(t, refA))
}

func TestGet_Ownership(t *testing.T) {
	f := newFixture(t, 5, 5)
	f.add(t, buyer.UserID, refA, 1)
	o, err := f.orders.PlaceOrder(context.Background(), buyer, order.PlaceOrderRequest{ShippingAddress: address})
	require.NoError(t, err)

	got, err := f.orders.Get(context.Background(), buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.orders.Get(context.Background(), auth.Identity{UserID: "intruder"}, o.ID)
	require.ErrorIs(t, err, order.ErrNotFound)

	got, err = f.orders.Get(context.Background(), admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, buyer.UserID, got.UserID)

	_, err = f.orders.Get(context.Background(), buyer, "not-a-uuid")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5, 5)
	f.add(t, buyer.UserID, refA, 2)
	o, err := f.orders.PlaceOrder(ctx, buyer, order.PlaceOrderRequest{ShippingAddress: address})
	require.NoError(t, err)
	require.Equal(t, 3, f.level(t, refA))

	_, err = f.orders.UpdateStatus(ctx, buyer, o.ID, order.StatusConfirmed)
	require.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.orders.UpdateStatus(ctx, admin, o.ID, order.StatusDelivered)
	var transErr *order.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, order.StatusPlaced, transErr.From)

	updated, err := f.orders.UpdateStatus(ctx, admin, o.ID, order.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, updated.Status)

	updated, err = f.orders.UpdateStatus(ctx, admin, o.ID, order.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, updated.Status)
	assert.Equal(t, 5, f.level(t, refA))

	_, err = f.orders.UpdateStatus(ctx, admin, o.ID, order.StatusShipped)
	require.ErrorAs(t, err, &transErr)
}
