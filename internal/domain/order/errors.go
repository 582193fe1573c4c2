package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// Sentinel errors for order placement and reads.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrNotFound       = errors.New("order not found")
	ErrInvalidAddress = errors.New("shipping address is incomplete")
)

// InsufficientStockError names the item whose stock cannot cover the
// requested quantity.
type InsufficientStockError struct {
	Item      string
	Ref       catalog.Ref
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	if e.Available >= 0 {
		return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Item, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock for %s", e.Item)
}

// ItemNotFoundError indicates a cart line points at a product or variant
// that no longer exists.
type ItemNotFoundError struct {
	Ref catalog.Ref
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("catalog item %s not found", e.Ref)
}

// PriceUnavailableError indicates an item has no price for the order region.
type PriceUnavailableError struct {
	Item     string
	Region   catalog.Region
	Currency string
}

func (e *PriceUnavailableError) Error() string {
	return fmt.Sprintf("%s is not sold in region %s (%s)", e.Item, e.Region, e.Currency)
}

// InvalidTransitionError is returned for disallowed fulfilment status changes.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order cannot move from %s to %s", e.From, e.To)
}

// TransactionError wraps a storage failure that aborted a unit of work.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
