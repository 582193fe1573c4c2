// Package memory is an in-process storage backend. It serializes units of
// work behind one mutex and rolls back by restoring a snapshot, which gives
// the same atomicity the postgres backend provides. It backs local runs
// without a database and the domain tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
)

type txKey struct{}

type state struct {
	products map[string]catalog.Product
	variants map[string]catalog.Variant
	carts    map[string]cart.Cart
	orders   map[string]order.Order
	payments []payment.Payment
	apiKeys  map[string]auth.APIKey
}

// Store holds every table.
type Store struct {
	mu sync.Mutex
	st state
}

// New creates an empty Store.
func New() *Store {
	return &Store{st: state{
		products: map[string]catalog.Product{},
		variants: map[string]catalog.Variant{},
		carts:    map[string]cart.Cart{},
		orders:   map[string]order.Order{},
		apiKeys:  map[string]auth.APIKey{},
	}}
}

// WithinTx runs fn with exclusive access to the store. Nested calls join the
// outer unit. If fn fails or panics, every change it made is discarded.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (rerr error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snap
			panic(p)
		}
		if rerr != nil {
			s.st = snap
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, struct{}{}))
}

// Catalog returns the catalog view.
func (s *Store) Catalog() *Catalog { return &Catalog{s: s} }

// Carts returns the cart view.
func (s *Store) Carts() *Carts { return &Carts{s: s} }

// Orders returns the order view.
func (s *Store) Orders() *Orders { return &Orders{s: s} }

// Payments returns the payment view.
func (s *Store) Payments() *Payments { return &Payments{s: s} }

// Stock returns the stock ledger.
func (s *Store) Stock() *Stock { return &Stock{s: s} }

// APIKeys returns the service key view.
func (s *Store) APIKeys() *APIKeys { return &APIKeys{s: s} }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// access runs fn under the store lock unless ctx already holds it.
func (s *Store) access(ctx context.Context, fn func(st *state) error) error {
	if !inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(&s.st)
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

func (st state) clone() state {
	out := state{
		products: make(map[string]catalog.Product, len(st.products)),
		variants: make(map[string]catalog.Variant, len(st.variants)),
		carts:    make(map[string]cart.Cart, len(st.carts)),
		orders:   make(map[string]order.Order, len(st.orders)),
		payments: make([]payment.Payment, 0, len(st.payments)),
		apiKeys:  make(map[string]auth.APIKey, len(st.apiKeys)),
	}
	for k, v := range st.apiKeys {
		v.Scopes = slices.Clone(v.Scopes)
		out.apiKeys[k] = v
	}
	for k, v := range st.products {
		out.products[k] = cloneProduct(v)
	}
	for k, v := range st.variants {
		out.variants[k] = cloneVariant(v)
	}
	for k, v := range st.carts {
		out.carts[k] = cloneCart(v)
	}
	for k, v := range st.orders {
		out.orders[k] = cloneOrder(v)
	}
	for _, p := range st.payments {
		out.payments = append(out.payments, clonePayment(p))
	}
	return out
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Prices = slices.Clone(p.Prices)
	return p
}

func cloneVariant(v catalog.Variant) catalog.Variant {
	v.Prices = slices.Clone(v.Prices)
	v.Attributes = slices.Clone(v.Attributes)
	return v
}

func cloneCart(c cart.Cart) cart.Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return c
}

func cloneOrder(o order.Order) order.Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}

func clonePayment(p payment.Payment) payment.Payment {
	p.Raw = maps.Clone(p.Raw)
	return p
}
