// Package stock defines the inventory ledger contract used by order placement.
package stock

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
)

var (
	// ErrInsufficientStock is returned when a reservation would drive stock
	// below zero. Nothing is decremented in that case.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnknownTarget is returned when the referenced product or variant
	// does not exist.
	ErrUnknownTarget = errors.New("unknown stock target")
)

// Ledger applies atomic stock mutations. Implementations must perform each
// reservation as a single conditional decrement ("decrement by n where stock
// >= n"), never as a read followed by a write, and must join the unit of
// work carried by ctx so an aborted order undoes its reservations.
type Ledger interface {
	Reserve(ctx context.Context, ref catalog.Ref, quantity int) error
	Release(ctx context.Context, ref catalog.Ref, quantity int) error
}
