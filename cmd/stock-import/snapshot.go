package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/catalog"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxFeeds      = 64
)

// level is one parsed snapshot row.
type level struct {
	ref      catalog.Ref
	quantity int
}

// candidate is a target that other feeds' filters may also contain.
type candidate struct {
	mask     uint64
	quantity int
}

// feedResult holds what pass 2 found in one feed.
type feedResult struct {
	unique     []level
	candidates map[catalog.Ref]candidate
	rejected   int
}

// plan is the outcome of scanning every feed.
type plan struct {
	levels    []level
	conflicts []catalog.Ref
	rejected  int
}

// parseLine reads "productId,variantId,quantity". variantId may be empty for
// simple products.
func parseLine(line string) (level, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 3 {
		return level{}, errors.Errorf("want 3 columns, got %d", len(parts))
	}
	productID := strings.TrimSpace(parts[0])
	if productID == "" {
		return level{}, errors.New("empty product id")
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return level{}, errors.Wrap(err, "parse quantity")
	}
	if qty < 0 {
		return level{}, errors.Errorf("negative quantity %d", qty)
	}
	return level{
		ref:      catalog.Ref{ProductID: productID, VariantID: strings.TrimSpace(parts[1])},
		quantity: qty,
	}, nil
}

// buildPlan scans feeds twice. Pass 1 builds one bloom filter per feed. Pass 2
// re-reads every feed and sets aside targets that another feed's filter may
// contain. Those are then resolved exactly: targets present in two or more
// feeds are conflicts and are skipped, bloom false positives are kept.
func buildPlan(ctx context.Context, feeds []string, estimate uint) (*plan, error) {
	if len(feeds) > maxFeeds {
		return nil, errors.Errorf("at most %d feeds supported, got %d", maxFeeds, len(feeds))
	}

	filters, err := buildFilters(ctx, feeds, estimate)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	results := make([]feedResult, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(func() error {
			res, err := scanFeed(gctx, i, f, filters)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "scan feeds")
	}

	p := &plan{}
	merged := make(map[catalog.Ref]candidate)
	for _, r := range results {
		p.levels = append(p.levels, r.unique...)
		p.rejected += r.rejected
		for ref, c := range r.candidates {
			m := merged[ref]
			m.mask |= c.mask
			m.quantity = c.quantity
			merged[ref] = m
		}
	}
	for ref, c := range merged {
		if bits.OnesCount64(c.mask) >= 2 {
			p.conflicts = append(p.conflicts, ref)
			continue
		}
		p.levels = append(p.levels, level{ref: ref, quantity: c.quantity})
	}
	return p, nil
}

func buildFilters(ctx context.Context, feeds []string, estimate uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range feeds {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(estimate, bloomFPR)
			var count uint64
			if err := streamFeed(ctx, path, func(line string) {
				l, err := parseLine(line)
				if err != nil {
					return
				}
				filter.AddString(l.ref.String())
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.String("feed", path), slog.Uint64("rows", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}
			slog.Info("pass 1 complete", slog.String("feed", path), slog.Uint64("rows", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func scanFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) (feedResult, error) {
	res := feedResult{candidates: make(map[catalog.Ref]candidate)}
	bit := uint64(1) << uint(idx)
	var row int

	err := streamFeed(ctx, path, func(line string) {
		row++
		l, err := parseLine(line)
		if err != nil {
			res.rejected++
			slog.Warn("skipping row", slog.String("feed", path), slog.Int("row", row), slog.String("error", err.Error()))
			return
		}
		key := l.ref.String()
		for j, f := range filters {
			if j != idx && f.TestString(key) {
				res.candidates[l.ref] = candidate{mask: bit, quantity: l.quantity}
				return
			}
		}
		res.unique = append(res.unique, l)
	})
	if err != nil {
		return res, errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("pass 2 complete",
		slog.String("feed", path),
		slog.Int("rows", row),
		slog.Int("candidates", len(res.candidates)),
		slog.Int("rejected", res.rejected),
	)
	return res, nil
}

// streamFeed opens a gzip-compressed feed and calls fn for each non-empty,
// non-comment line.
func streamFeed(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
