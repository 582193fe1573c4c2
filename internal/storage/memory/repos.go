package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/stock"
)

// Catalog implements catalog.Repository.
type Catalog struct{ s *Store }

var _ catalog.Repository = (*Catalog)(nil)

// PutProduct inserts or replaces a product.
func (r *Catalog) PutProduct(p catalog.Product) {
	_ = r.s.access(context.Background(), func(st *state) error {
		st.products[p.ID] = cloneProduct(p)
		return nil
	})
}

// PutVariant inserts or replaces a variant.
func (r *Catalog) PutVariant(v catalog.Variant) {
	_ = r.s.access(context.Background(), func(st *state) error {
		st.variants[v.ID] = cloneVariant(v)
		return nil
	})
}

func (r *Catalog) Resolve(ctx context.Context, refs []catalog.Ref) (*catalog.Resolved, error) {
	out := &catalog.Resolved{
		Products: map[string]catalog.Product{},
		Variants: map[string]catalog.Variant{},
	}
	err := r.s.access(ctx, func(st *state) error {
		for _, ref := range refs {
			if p, ok := st.products[ref.ProductID]; ok {
				out.Products[p.ID] = cloneProduct(p)
			}
			if ref.IsVariant() {
				if v, ok := st.variants[ref.VariantID]; ok {
					out.Variants[v.ID] = cloneVariant(v)
				}
			}
		}
		return nil
	})
	return out, err
}

// Stock implements stock.Ledger.
type Stock struct{ s *Store }

var _ stock.Ledger = (*Stock)(nil)

func (l *Stock) Reserve(ctx context.Context, ref catalog.Ref, quantity int) error {
	return l.s.access(ctx, func(st *state) error {
		return adjust(st, ref, func(cur int) (int, error) {
			if cur < quantity {
				return cur, stock.ErrInsufficientStock
			}
			return cur - quantity, nil
		})
	})
}

func (l *Stock) Release(ctx context.Context, ref catalog.Ref, quantity int) error {
	return l.s.access(ctx, func(st *state) error {
		return adjust(st, ref, func(cur int) (int, error) {
			return cur + quantity, nil
		})
	})
}

// Set overwrites the stock count of ref.
func (l *Stock) Set(ctx context.Context, ref catalog.Ref, quantity int) error {
	return l.s.access(ctx, func(st *state) error {
		return adjust(st, ref, func(int) (int, error) {
			return quantity, nil
		})
	})
}

// Level returns the current stock count of ref.
func (l *Stock) Level(ref catalog.Ref) (int, bool) {
	var (
		n  int
		ok bool
	)
	_ = l.s.access(context.Background(), func(st *state) error {
		if ref.IsVariant() {
			v, found := st.variants[ref.VariantID]
			n, ok = v.Stock, found && v.ProductID == ref.ProductID
			return nil
		}
		p, found := st.products[ref.ProductID]
		n, ok = p.Stock, found
		return nil
	})
	return n, ok
}

func adjust(st *state, ref catalog.Ref, fn func(cur int) (int, error)) error {
	if ref.IsVariant() {
		v, ok := st.variants[ref.VariantID]
		if !ok || v.ProductID != ref.ProductID {
			return stock.ErrUnknownTarget
		}
		next, err := fn(v.Stock)
		if err != nil {
			return err
		}
		v.Stock = next
		st.variants[v.ID] = v
		return nil
	}
	p, ok := st.products[ref.ProductID]
	if !ok {
		return stock.ErrUnknownTarget
	}
	next, err := fn(p.Stock)
	if err != nil {
		return err
	}
	p.Stock = next
	st.products[p.ID] = p
	return nil
}

// Carts implements cart.Repository.
type Carts struct{ s *Store }

var _ cart.Repository = (*Carts)(nil)

func (r *Carts) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var out *cart.Cart
	err := r.s.access(ctx, func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return cart.ErrNotFound
		}
		c = cloneCart(c)
		out = &c
		return nil
	})
	return out, err
}

// GetForUpdate is Get; the store lock held by the unit of work already
// excludes concurrent writers.
func (r *Carts) GetForUpdate(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.Get(ctx, userID)
}

func (r *Carts) Save(ctx context.Context, c *cart.Cart) error {
	return r.s.access(ctx, func(st *state) error {
		st.carts[c.UserID] = cloneCart(*c)
		return nil
	})
}

func (r *Carts) Clear(ctx context.Context, userID string) error {
	return r.s.access(ctx, func(st *state) error {
		c, ok := st.carts[userID]
		if !ok {
			return nil
		}
		c.Items = []cart.Item{}
		st.carts[userID] = c
		return nil
	})
}

// Orders implements order.Repository.
type Orders struct{ s *Store }

var _ order.Repository = (*Orders)(nil)

func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	return r.s.access(ctx, func(st *state) error {
		st.orders[o.ID] = cloneOrder(*o)
		return nil
	})
}

func (r *Orders) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.find(ctx, id, func(order.Order) bool { return true })
}

func (r *Orders) GetForUser(ctx context.Context, id, userID string) (*order.Order, error) {
	return r.find(ctx, id, func(o order.Order) bool { return o.UserID == userID })
}

func (r *Orders) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r *Orders) find(ctx context.Context, id string, match func(order.Order) bool) (*order.Order, error) {
	var out *order.Order
	err := r.s.access(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok || !match(o) {
			return order.ErrNotFound
		}
		o = cloneOrder(o)
		out = &o
		return nil
	})
	return out, err
}

func (r *Orders) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	err := r.s.access(ctx, func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, cloneOrder(o))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (r *Orders) UpdateStatus(ctx context.Context, id string, s order.Status) error {
	return r.update(ctx, id, func(o *order.Order) { o.Status = s })
}

func (r *Orders) UpdatePaymentStatus(ctx context.Context, id string, s order.PaymentStatus) error {
	return r.update(ctx, id, func(o *order.Order) { o.PaymentStatus = s })
}

func (r *Orders) update(ctx context.Context, id string, fn func(o *order.Order)) error {
	return r.s.access(ctx, func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return order.ErrNotFound
		}
		fn(&o)
		st.orders[id] = o
		return nil
	})
}

// Payments implements payment.Repository.
type Payments struct{ s *Store }

var _ payment.Repository = (*Payments)(nil)

func (r *Payments) Create(ctx context.Context, p *payment.Payment) error {
	return r.s.access(ctx, func(st *state) error {
		if p.Status == payment.StatusSuccess {
			for _, existing := range st.payments {
				if existing.Status == payment.StatusSuccess && existing.TransactionNumber == p.TransactionNumber {
					return payment.ErrDuplicateSuccess
				}
			}
		}
		st.payments = append(st.payments, clonePayment(*p))
		return nil
	})
}

func (r *Payments) FindSuccess(ctx context.Context, txn string) (*payment.Payment, error) {
	var out *payment.Payment
	err := r.s.access(ctx, func(st *state) error {
		i := slices.IndexFunc(st.payments, func(p payment.Payment) bool {
			return p.Status == payment.StatusSuccess && p.TransactionNumber == txn
		})
		if i < 0 {
			return payment.ErrNotFound
		}
		p := clonePayment(st.payments[i])
		out = &p
		return nil
	})
	return out, err
}

func (r *Payments) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	var out []payment.Payment
	err := r.s.access(ctx, func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				out = append(out, clonePayment(p))
			}
		}
		return nil
	})
	return out, err
}

// APIKeys implements auth.KeyRepository.
type APIKeys struct{ s *Store }

var _ auth.KeyRepository = (*APIKeys)(nil)

// Put stores k under its hash.
func (r *APIKeys) Put(k auth.APIKey) {
	_ = r.s.access(context.Background(), func(st *state) error {
		k.Scopes = slices.Clone(k.Scopes)
		st.apiKeys[k.KeyHash] = k
		return nil
	})
}

func (r *APIKeys) FindByHash(ctx context.Context, hash string) (*auth.APIKey, error) {
	var out *auth.APIKey
	err := r.s.access(ctx, func(st *state) error {
		k, ok := st.apiKeys[hash]
		if !ok {
			return auth.ErrKeyNotFound
		}
		k.Scopes = slices.Clone(k.Scopes)
		out = &k
		return nil
	})
	return out, err
}
