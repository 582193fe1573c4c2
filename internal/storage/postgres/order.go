package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, customer_email, lines, total_amount, region, currency,
		shipping_address, payment_status, status, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getOrderSQL        = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	getOrderForUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`
	lockOrderSQL       = getOrderSQL + ` FOR UPDATE`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	updateOrderStatusSQL   = `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`
	updatePaymentStatusSQL = `UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository.
func NewOrderRepository(d *DB) *OrderRepository {
	return &OrderRepository{db: d}
}

// Create persists a new order. Lines and the shipping address are stored as
// JSONB snapshots.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return errors.Wrap(err, "marshal order lines")
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return errors.Wrap(err, "marshal shipping address")
	}

	_, err = r.db.q(ctx).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.CustomerEmail, lines, o.TotalAmount, string(o.Region), o.Currency,
		addr, string(o.PaymentStatus), string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, getOrderSQL, id)
}

func (r *OrderRepository) GetForUser(ctx context.Context, id, userID string) (*order.Order, error) {
	return r.one(ctx, getOrderForUserSQL, id, userID)
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, lockOrderSQL, id)
}

func (r *OrderRepository) one(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query order")
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

func (r *OrderRepository) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, listOrdersSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of %q", userID)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, s order.Status) error {
	return r.update(ctx, updateOrderStatusSQL, id, string(s))
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, s order.PaymentStatus) error {
	return r.update(ctx, updatePaymentStatusSQL, id, string(s))
}

func (r *OrderRepository) update(ctx context.Context, sql, id, value string) error {
	tag, err := r.db.q(ctx).Exec(ctx, sql, id, value)
	if err != nil {
		return errors.Wrapf(err, "update order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                  order.Order
		lines, addr                        []byte
		region, paymentStatus, status, oid string
	)
	err := row.Scan(
		&oid, &o.UserID, &o.CustomerEmail, &lines, &o.TotalAmount, &region, &o.Currency,
		&addr, &paymentStatus, &status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.ID = oid
	o.Region = catalog.Region(region)
	o.PaymentStatus = order.PaymentStatus(paymentStatus)
	o.Status = order.Status(status)
	if err := json.Unmarshal(lines, &o.Lines); err != nil {
		return o, errors.Wrapf(err, "decode lines of %q", o.ID)
	}
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return o, errors.Wrapf(err, "decode address of %q", o.ID)
	}
	return o, nil
}
