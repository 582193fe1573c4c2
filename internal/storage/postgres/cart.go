package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	getCartSQL = `SELECT user_id, items, region, currency, updated_at FROM carts WHERE user_id = $1`

	// ensureCartSQL makes sure a row exists to lock, so two first-time
	// writers for the same user serialize instead of racing on insert.
	ensureCartSQL = `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`

	lockCartSQL = getCartSQL + ` FOR UPDATE`

	saveCartSQL = `INSERT INTO carts (user_id, items, region, currency, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, region = EXCLUDED.region,
			currency = EXCLUDED.currency, updated_at = now()
		RETURNING updated_at`

	clearCartSQL = `UPDATE carts SET items = '[]', updated_at = now() WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository.
func NewCartRepository(d *DB) *CartRepository {
	return &CartRepository{db: d}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	return r.get(ctx, getCartSQL, userID)
}

// GetForUpdate locks the user's cart row for the rest of the transaction,
// creating an empty row first when the user has none.
func (r *CartRepository) GetForUpdate(ctx context.Context, userID string) (*cart.Cart, error) {
	if _, err := r.db.q(ctx).Exec(ctx, ensureCartSQL, userID); err != nil {
		return nil, errors.Wrapf(err, "ensure cart %q", userID)
	}
	return r.get(ctx, lockCartSQL, userID)
}

func (r *CartRepository) get(ctx context.Context, sql, userID string) (*cart.Cart, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "get cart %q", userID)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get cart %q", userID)
	}
	return &c, nil
}

func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	items, err := json.Marshal(nonNil(c.Items))
	if err != nil {
		return errors.Wrap(err, "marshal cart items")
	}
	err = r.db.q(ctx).QueryRow(ctx, saveCartSQL, c.UserID, items, string(c.Region), c.Currency).Scan(&c.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "save cart %q", c.UserID)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.q(ctx).Exec(ctx, clearCartSQL, userID); err != nil {
		return errors.Wrapf(err, "clear cart %q", userID)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c      cart.Cart
		items  []byte
		region string
	)
	if err := row.Scan(&c.UserID, &items, &region, &c.Currency, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.Region = catalog.Region(region)
	if err := json.Unmarshal(items, &c.Items); err != nil {
		return c, errors.Wrapf(err, "decode cart items of %q", c.UserID)
	}
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return c, nil
}
