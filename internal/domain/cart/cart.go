// Package cart manages the per-user shopping cart that order placement
// consumes as a snapshot.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
)

var (
	// ErrNotFound is returned when a user has no cart yet.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotInCart is returned when updating or removing a line that does
	// not exist.
	ErrItemNotInCart = errors.New("item not in cart")
)

// InvalidQuantityError indicates a non-positive line quantity.
type InvalidQuantityError struct {
	Ref      catalog.Ref
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for %s, got %d", e.Ref, e.Quantity)
}

// Item is one cart line.
type Item struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Ref returns the catalog target of the line.
func (i Item) Ref() catalog.Ref {
	return catalog.Ref{ProductID: i.ProductID, VariantID: i.VariantID}
}

// Cart is the single cart owned by a user.
type Cart struct {
	UserID    string
	Items     []Item
	Region    catalog.Region
	Currency  string
	UpdatedAt time.Time
}

// New returns an empty domestic cart for userID.
func New(userID string) *Cart {
	return &Cart{
		UserID:   userID,
		Items:    []Item{},
		Region:   catalog.RegionDomestic,
		Currency: catalog.RegionDomestic.Currency(),
	}
}

// Refs lists the catalog targets of every line in order.
func (c *Cart) Refs() []catalog.Ref {
	refs := make([]catalog.Ref, len(c.Items))
	for i, it := range c.Items {
		refs[i] = it.Ref()
	}
	return refs
}

// Add merges quantity into the line for ref, appending a new line if none
// exists.
func (c *Cart) Add(ref catalog.Ref, quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{Ref: ref, Quantity: quantity}
	}
	if i := c.index(ref); i >= 0 {
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, Item{ProductID: ref.ProductID, VariantID: ref.VariantID, Quantity: quantity})
	return nil
}

// Set replaces the quantity of an existing line.
func (c *Cart) Set(ref catalog.Ref, quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{Ref: ref, Quantity: quantity}
	}
	i := c.index(ref)
	if i < 0 {
		return ErrItemNotInCart
	}
	c.Items[i].Quantity = quantity
	return nil
}

// Remove deletes the line for ref, keeping the order of the others.
func (c *Cart) Remove(ref catalog.Ref) error {
	i := c.index(ref)
	if i < 0 {
		return ErrItemNotInCart
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

// SetRegion switches the pricing region and its currency.
func (c *Cart) SetRegion(r catalog.Region) {
	c.Region = r
	c.Currency = r.Currency()
}

func (c *Cart) index(ref catalog.Ref) int {
	for i, it := range c.Items {
		if it.Ref() == ref {
			return i
		}
	}
	return -1
}

// Repository persists carts.
type Repository interface {
	// Get returns the cart of userID or ErrNotFound.
	Get(ctx context.Context, userID string) (*Cart, error)
	// GetForUpdate is Get with a row lock held until the surrounding unit of
	// work ends.
	GetForUpdate(ctx context.Context, userID string) (*Cart, error)
	// Save upserts the cart.
	Save(ctx context.Context, c *Cart) error
	// Clear empties the cart items without deleting the cart.
	Clear(ctx context.Context, userID string) error
}
