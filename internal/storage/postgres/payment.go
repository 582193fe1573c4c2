package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/storefront/internal/domain/payment"
)

const (
	paymentColumns = `id, order_id, transaction_number, amount, status, gateway,
		response_code, response_message, raw, created_at`

	createPaymentSQL = `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	findSuccessSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE transaction_number = $1 AND status = 'SUCCESS'`

	listPaymentsSQL = `SELECT ` + paymentColumns + ` FROM payments
		WHERE order_id = $1 ORDER BY created_at, id`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	db *DB
}

// NewPaymentRepository returns a PaymentRepository.
func NewPaymentRepository(d *DB) *PaymentRepository {
	return &PaymentRepository{db: d}
}

// Create appends a payment row. A second SUCCESS row for the same
// transaction number violates payments_success_txn_uidx and is reported as
// payment.ErrDuplicateSuccess.
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	raw, err := json.Marshal(p.Raw)
	if err != nil {
		return errors.Wrap(err, "marshal raw payload")
	}

	_, err = r.db.q(ctx).Exec(ctx, createPaymentSQL,
		p.ID, p.OrderID, p.TransactionNumber, p.Amount, string(p.Status), p.Gateway,
		p.ResponseCode, p.ResponseMessage, raw, p.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return payment.ErrDuplicateSuccess
		}
		return errors.Wrapf(err, "create payment for order %q", p.OrderID)
	}
	return nil
}

func (r *PaymentRepository) FindSuccess(ctx context.Context, txn string) (*payment.Payment, error) {
	rows, err := r.db.q(ctx).Query(ctx, findSuccessSQL, txn)
	if err != nil {
		return nil, errors.Wrapf(err, "find payment %q", txn)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find payment %q", txn)
	}
	return &p, nil
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	rows, err := r.db.q(ctx).Query(ctx, listPaymentsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "list payments of %q", orderID)
	}
	return pgx.CollectRows(rows, scanPayment)
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var (
		p                 payment.Payment
		raw               []byte
		status, id, order string
	)
	err := row.Scan(
		&id, &order, &p.TransactionNumber, &p.Amount, &status, &p.Gateway,
		&p.ResponseCode, &p.ResponseMessage, &raw, &p.CreatedAt,
	)
	if err != nil {
		return p, err
	}
	p.ID, p.OrderID = id, order
	p.Status = payment.Status(status)
	if err := json.Unmarshal(raw, &p.Raw); err != nil {
		return p, errors.Wrapf(err, "decode raw payload of %q", p.ID)
	}
	return p, nil
}
