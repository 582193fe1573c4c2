// Package payment records gateway notifications and reconciles them into
// order payment state.
package payment

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

// Status is the outcome recorded for one processed callback.
type Status string

const (
	StatusSuccess         Status = "SUCCESS"
	StatusFailed          Status = "FAILED"
	StatusPending         Status = "PENDING"
	StatusInvalidChecksum Status = "INVALID_CHECKSUM"
)

var (
	// ErrNotFound is returned when no payment matches a lookup.
	ErrNotFound = errors.New("payment not found")
	// ErrDuplicateSuccess is returned by Repository.Create when a SUCCESS
	// row already exists for the transaction number.
	ErrDuplicateSuccess = errors.New("duplicate successful payment")
	// ErrNotPayable is returned when initiating payment for an order that is
	// no longer awaiting payment.
	ErrNotPayable = errors.New("order is not awaiting payment")
)

// Payment is one append-only row of the gateway notification log.
type Payment struct {
	ID                string
	OrderID           string
	TransactionNumber string
	Amount            decimal.Decimal
	Status            Status
	Gateway           string
	ResponseCode      string
	ResponseMessage   string
	Raw               map[string]string
	CreatedAt         time.Time
}

// Repository persists payment rows. Rows are never updated.
type Repository interface {
	// Create appends a row. At most one SUCCESS row may exist per
	// transaction number; a second one fails with ErrDuplicateSuccess.
	Create(ctx context.Context, p *Payment) error
	// FindSuccess returns the SUCCESS row for a transaction number or
	// ErrNotFound.
	FindSuccess(ctx context.Context, transactionNumber string) (*Payment, error)
	// ListByOrder returns an order's rows, oldest first.
	ListByOrder(ctx context.Context, orderID string) ([]Payment, error)
}

// Orders is the slice of order storage the payment flow needs.
type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	GetForUser(ctx context.Context, id, userID string) (*order.Order, error)
	GetForUpdate(ctx context.Context, id string) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, s order.PaymentStatus) error
}

// TxRunner runs fn inside one atomic unit of work carried by the context.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Cache remembers transaction numbers that already produced a SUCCESS row so
// repeated deliveries short-circuit before touching the database. It is an
// optimisation only; the repository stays authoritative.
type Cache interface {
	Lookup(ctx context.Context, transactionNumber string) (orderID string, found bool, err error)
	Remember(ctx context.Context, transactionNumber, orderID string) error
}

// Redirect is where the customer's browser goes after a callback.
type Redirect struct {
	Success bool
	OrderID string
}

// Location builds the storefront URL for r under base.
func (r Redirect) Location(base string) string {
	path := "/payment/failed"
	if r.Success {
		path = "/payment/success"
	}
	q := url.Values{"orderId": {r.OrderID}}
	return strings.TrimRight(base, "/") + path + "?" + q.Encode()
}
