// Command stock-import loads absolute stock levels from gzip-compressed
// warehouse feeds. A product or variant listed by more than one feed is a
// conflict and keeps its current stock.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/stock"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const batchSize = 500

// setter overwrites stock levels inside units of work.
type setter interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	Set(ctx context.Context, ref catalog.Ref, quantity int) error
}

type pgSetter struct {
	*postgres.DB
	*postgres.StockLedger
}

func main() {
	var (
		databaseURL string
		estimate    uint
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&estimate, "estimate", 1_000_000, "expected rows per feed, sizes the bloom filters")
	flag.BoolVar(&dryRun, "dry-run", false, "scan feeds and report without writing")
	flag.Parse()

	feeds := flag.Args()
	if len(feeds) == 0 {
		slog.Error("usage: stock-import [flags] feed1.csv.gz [feed2.csv.gz ...]")
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, feeds, estimate, dryRun); err != nil {
		slog.Error("stock import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("stock import completed successfully")
}

func run(ctx context.Context, databaseURL string, feeds []string, estimate uint, dryRun bool) error {
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	p, err := buildPlan(ctx, feeds, estimate)
	if err != nil {
		return err
	}
	for _, ref := range p.conflicts {
		slog.Warn("conflicting stock level, skipped", slog.String("target", ref.String()))
	}
	slog.Info("plan ready",
		slog.Int("levels", len(p.levels)),
		slog.Int("conflicts", len(p.conflicts)),
		slog.Int("rejected", p.rejected),
	)
	if dryRun || len(p.levels) == 0 {
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	db := postgres.NewDB(pool)
	unknown, err := apply(ctx, pgSetter{DB: db, StockLedger: postgres.NewStockLedger(db)}, p.levels)
	if err != nil {
		return errors.Wrap(err, "apply stock levels")
	}
	if unknown > 0 {
		slog.Warn("feeds reference unknown products or variants", slog.Int("count", unknown))
	}
	return nil
}

// apply writes levels in batches, one unit of work per batch. Rows for
// unknown targets are counted and skipped.
func apply(ctx context.Context, s setter, levels []level) (unknown int, err error) {
	for start := 0; start < len(levels); start += batchSize {
		batch := levels[start:min(start+batchSize, len(levels))]
		var missing int
		if err := s.WithinTx(ctx, func(ctx context.Context) error {
			missing = 0
			for _, l := range batch {
				err := s.Set(ctx, l.ref, l.quantity)
				switch {
				case errors.Is(err, stock.ErrUnknownTarget):
					missing++
				case err != nil:
					return errors.Wrapf(err, "set %s", l.ref)
				}
			}
			return nil
		}); err != nil {
			return unknown, err
		}
		unknown += missing

		done := start + len(batch)
		slog.Info("write progress", slog.Int("written", done), slog.Int("total", len(levels)))
	}
	return unknown, nil
}
