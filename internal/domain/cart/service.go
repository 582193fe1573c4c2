package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
)

// TxRunner runs fn inside one atomic unit of work carried by the context.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements cart mutations. Every mutation locks the cart row so
// concurrent adds from the same user do not lose updates.
type Service struct {
	carts   Repository
	catalog catalog.Repository
	tx      TxRunner
}

// NewService creates a cart Service.
func NewService(carts Repository, cat catalog.Repository, tx TxRunner) *Service {
	return &Service{carts: carts, catalog: cat, tx: tx}
}

// Get returns the user's cart, or an empty one if it was never created.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return New(userID), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds quantity of ref, creating the cart lazily.
func (s *Service) AddItem(ctx context.Context, userID string, ref catalog.Ref, quantity int) (*Cart, error) {
	if err := s.ensureExists(ctx, ref); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Add(ref, quantity)
	})
}

// UpdateItem sets the quantity of an existing line.
func (s *Service) UpdateItem(ctx context.Context, userID string, ref catalog.Ref, quantity int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Set(ref, quantity)
	})
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, userID string, ref catalog.Ref) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Remove(ref)
	})
}

// SetRegion switches the cart's pricing region.
func (s *Service) SetRegion(ctx context.Context, userID string, region catalog.Region) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		c.SetRegion(region)
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(c *Cart) error) (*Cart, error) {
	var out *Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.GetForUpdate(ctx, userID)
		switch {
		case errors.Is(err, ErrNotFound):
			c = New(userID)
		case err != nil:
			return errors.Wrap(err, "lock cart")
		}

		if err := fn(c); err != nil {
			return err
		}
		if err := s.carts.Save(ctx, c); err != nil {
			return errors.Wrap(err, "save cart")
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) ensureExists(ctx context.Context, ref catalog.Ref) error {
	res, err := s.catalog.Resolve(ctx, []catalog.Ref{ref})
	if err != nil {
		return errors.Wrap(err, "resolve catalog item")
	}
	if _, _, err := res.Lookup(ref); err != nil {
		return err
	}
	return nil
}
