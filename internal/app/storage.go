package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/stock"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
)

// txPinger runs units of work and reports backend health.
type txPinger interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Ping(ctx context.Context) error
}

// storage is the set of repositories one driver provides.
type storage struct {
	db       txPinger
	carts    cart.Repository
	catalog  catalog.Repository
	stock    stock.Ledger
	orders   order.Repository
	payments payment.Repository
	keys     auth.KeyRepository
	close    func()
}

func openStorage(ctx context.Context, cfg *Config) (*storage, error) {
	lg := zctx.From(ctx)

	if cfg.Storage == StorageMemory {
		lg.Warn("Using in-memory storage, data is lost on restart")
		s := memory.New()
		return &storage{
			db:       s,
			carts:    s.Carts(),
			catalog:  s.Catalog(),
			stock:    s.Stock(),
			orders:   s.Orders(),
			payments: s.Payments(),
			keys:     s.APIKeys(),
			close:    func() {},
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
	} else {
		lg.Info("Skipping migrations", zap.String("storage", cfg.Storage))
	}

	db := postgres.NewDB(pool)
	return &storage{
		db:       db,
		carts:    postgres.NewCartRepository(db),
		catalog:  postgres.NewCatalogRepository(db),
		stock:    postgres.NewStockLedger(db),
		orders:   postgres.NewOrderRepository(db),
		payments: postgres.NewPaymentRepository(db),
		keys:     postgres.NewAPIKeyRepository(db),
		close:    pool.Close,
	}, nil
}
