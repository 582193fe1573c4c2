package memory

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/stock"
)

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := New()
	s.Catalog().PutProduct(catalog.Product{ID: "p1", Name: "Mug", Stock: 5})
	ref := catalog.Ref{ProductID: "p1"}
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Stock().Reserve(ctx, ref, 3))
		require.NoError(t, s.Carts().Save(ctx, cart.New("u1")))
		return boom
	})
	require.ErrorIs(t, err, boom)

	level, ok := s.Stock().Level(ref)
	require.True(t, ok)
	assert.Equal(t, 5, level)

	_, err = s.Carts().Get(ctx, "u1")
	assert.ErrorIs(t, err, cart.ErrNotFound)
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	s := New()
	s.Catalog().PutProduct(catalog.Product{ID: "p1", Stock: 2})
	ref := catalog.Ref{ProductID: "p1"}

	assert.Panics(t, func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context) error {
			_ = s.Stock().Reserve(ctx, ref, 2)
			panic("boom")
		})
	})

	level, _ := s.Stock().Level(ref)
	assert.Equal(t, 2, level)
}

func TestWithinTx_Nested(t *testing.T) {
	s := New()
	s.Catalog().PutProduct(catalog.Product{ID: "p1", Stock: 2})
	ref := catalog.Ref{ProductID: "p1"}

	err := s.WithinTx(context.Background(), func(ctx context.Context) error {
		return s.WithinTx(ctx, func(ctx context.Context) error {
			return s.Stock().Reserve(ctx, ref, 1)
		})
	})
	require.NoError(t, err)

	level, _ := s.Stock().Level(ref)
	assert.Equal(t, 1, level)
}

func TestStock_Reserve(t *testing.T) {
	s := New()
	s.Catalog().PutProduct(catalog.Product{ID: "p1", Stock: 1})
	s.Catalog().PutVariant(catalog.Variant{ID: "v1", ProductID: "p1", Stock: 0})
	ctx := context.Background()

	tests := []struct {
		name string
		ref  catalog.Ref
		qty  int
		err  error
	}{
		{"insufficient variant", catalog.Ref{ProductID: "p1", VariantID: "v1"}, 1, stock.ErrInsufficientStock},
		{"unknown product", catalog.Ref{ProductID: "nope"}, 1, stock.ErrUnknownTarget},
		{"variant of other product", catalog.Ref{ProductID: "p2", VariantID: "v1"}, 1, stock.ErrUnknownTarget},
		{"ok", catalog.Ref{ProductID: "p1"}, 1, nil},
		{"drained", catalog.Ref{ProductID: "p1"}, 1, stock.ErrInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Stock().Reserve(ctx, tt.ref, tt.qty)
			if tt.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPayments_UniqueSuccess(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Payments().Create(ctx, &payment.Payment{ID: "1", OrderID: "o", TransactionNumber: "T1", Status: payment.StatusFailed}))
	require.NoError(t, s.Payments().Create(ctx, &payment.Payment{ID: "2", OrderID: "o", TransactionNumber: "T1", Status: payment.StatusSuccess}))
	err := s.Payments().Create(ctx, &payment.Payment{ID: "3", OrderID: "o", TransactionNumber: "T1", Status: payment.StatusSuccess})
	require.ErrorIs(t, err, payment.ErrDuplicateSuccess)

	got, err := s.Payments().FindSuccess(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "2", got.ID)

	rows, err := s.Payments().ListByOrder(ctx, "o")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
