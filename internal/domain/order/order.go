package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// PaymentStatus tracks the gateway outcome of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Status tracks fulfilment of an order.
type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPlaced:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

// CanTransition reports whether an order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseStatus validates a fulfilment status name.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPlaced, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return st, true
	default:
		return "", false
	}
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Line is the purchase-time snapshot of one ordered item. It is never
// recomputed from the catalog after the order exists.
type Line struct {
	ProductID    string          `json:"productId"`
	VariantID    string          `json:"variantId,omitempty"`
	Name         string          `json:"name"`
	Image        string          `json:"image"`
	VariantLabel string          `json:"variantLabel"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
}

// Ref returns the catalog target the line was bought from.
func (l Line) Ref() catalog.Ref {
	return catalog.Ref{ProductID: l.ProductID, VariantID: l.VariantID}
}

// Total returns price × quantity.
func (l Line) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is an immutable purchase record. Only PaymentStatus and Status change
// after creation.
type Order struct {
	ID              string
	UserID          string
	CustomerEmail   string
	Lines           []Line
	TotalAmount     decimal.Decimal
	Region          catalog.Region
	Currency        string
	ShippingAddress ShippingAddress
	PaymentStatus   PaymentStatus
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository persists orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// Get returns any order by id. Callers enforce ownership.
	Get(ctx context.Context, id string) (*Order, error)
	// GetForUser returns the order only when it belongs to userID.
	GetForUser(ctx context.Context, id, userID string) (*Order, error)
	// GetForUpdate is Get with a row lock held for the unit of work.
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	ListForUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, s Status) error
	UpdatePaymentStatus(ctx context.Context, id string, s PaymentStatus) error
}
