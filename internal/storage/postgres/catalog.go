package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/stock"
)

const (
	resolveProductsSQL = `SELECT id, name, image, stock, prices
		FROM products WHERE id = ANY($1)`

	resolveVariantsSQL = `SELECT id, product_id, attributes, image, stock, prices
		FROM product_variants WHERE id = ANY($1)`

	upsertProductSQL = `INSERT INTO products (id, name, image, stock, prices)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, image = EXCLUDED.image,
			stock = EXCLUDED.stock, prices = EXCLUDED.prices`

	upsertVariantSQL = `INSERT INTO product_variants (id, product_id, attributes, image, stock, prices)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET product_id = EXCLUDED.product_id, attributes = EXCLUDED.attributes,
			image = EXCLUDED.image, stock = EXCLUDED.stock, prices = EXCLUDED.prices`

	reserveProductSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`
	reserveVariantSQL = `UPDATE product_variants SET stock = stock - $3
		WHERE id = $1 AND product_id = $2 AND stock >= $3`

	releaseProductSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`
	releaseVariantSQL = `UPDATE product_variants SET stock = stock + $3 WHERE id = $1 AND product_id = $2`

	setProductStockSQL = `UPDATE products SET stock = $2 WHERE id = $1`
	setVariantStockSQL = `UPDATE product_variants SET stock = $3 WHERE id = $1 AND product_id = $2`

	productExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`
	variantExistsSQL = `SELECT EXISTS (SELECT 1 FROM product_variants WHERE id = $1 AND product_id = $2)`
)

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ stock.Ledger       = (*StockLedger)(nil)
)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	db *DB
}

// NewCatalogRepository returns a CatalogRepository.
func NewCatalogRepository(d *DB) *CatalogRepository {
	return &CatalogRepository{db: d}
}

// Resolve loads the products and variants referenced by refs in two queries.
func (r *CatalogRepository) Resolve(ctx context.Context, refs []catalog.Ref) (*catalog.Resolved, error) {
	var productIDs, variantIDs []string
	for _, ref := range refs {
		productIDs = append(productIDs, ref.ProductID)
		if ref.IsVariant() {
			variantIDs = append(variantIDs, ref.VariantID)
		}
	}

	out := &catalog.Resolved{
		Products: make(map[string]catalog.Product, len(productIDs)),
		Variants: make(map[string]catalog.Variant, len(variantIDs)),
	}
	q := r.db.q(ctx)

	rows, err := q.Query(ctx, resolveProductsSQL, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	for _, p := range products {
		out.Products[p.ID] = p
	}

	if len(variantIDs) == 0 {
		return out, nil
	}
	rows, err = q.Query(ctx, resolveVariantsSQL, variantIDs)
	if err != nil {
		return nil, errors.Wrap(err, "query variants")
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, errors.Wrap(err, "scan variants")
	}
	for _, v := range variants {
		out.Variants[v.ID] = v
	}
	return out, nil
}

// UpsertProduct inserts or replaces a product.
func (r *CatalogRepository) UpsertProduct(ctx context.Context, p catalog.Product) error {
	prices, err := json.Marshal(nonNil(p.Prices))
	if err != nil {
		return errors.Wrap(err, "marshal prices")
	}
	if _, err := r.db.q(ctx).Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Image, p.Stock, prices); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

// UpsertVariant inserts or replaces a variant.
func (r *CatalogRepository) UpsertVariant(ctx context.Context, v catalog.Variant) error {
	prices, err := json.Marshal(nonNil(v.Prices))
	if err != nil {
		return errors.Wrap(err, "marshal prices")
	}
	attrs, err := json.Marshal(nonNil(v.Attributes))
	if err != nil {
		return errors.Wrap(err, "marshal attributes")
	}
	if _, err := r.db.q(ctx).Exec(ctx, upsertVariantSQL, v.ID, v.ProductID, attrs, v.Image, v.Stock, prices); err != nil {
		return errors.Wrapf(err, "upsert variant %q", v.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p      catalog.Product
		prices []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Image, &p.Stock, &prices); err != nil {
		return p, err
	}
	if err := json.Unmarshal(prices, &p.Prices); err != nil {
		return p, errors.Wrapf(err, "decode prices of %q", p.ID)
	}
	return p, nil
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var (
		v             catalog.Variant
		attrs, prices []byte
	)
	if err := row.Scan(&v.ID, &v.ProductID, &attrs, &v.Image, &v.Stock, &prices); err != nil {
		return v, err
	}
	if err := json.Unmarshal(attrs, &v.Attributes); err != nil {
		return v, errors.Wrapf(err, "decode attributes of %q", v.ID)
	}
	if err := json.Unmarshal(prices, &v.Prices); err != nil {
		return v, errors.Wrapf(err, "decode prices of %q", v.ID)
	}
	return v, nil
}

// StockLedger implements stock.Ledger with conditional single-statement
// updates; the CHECK (stock >= 0) constraint backs it up.
type StockLedger struct {
	db *DB
}

// NewStockLedger returns a StockLedger.
func NewStockLedger(d *DB) *StockLedger {
	return &StockLedger{db: d}
}

func (l *StockLedger) Reserve(ctx context.Context, ref catalog.Ref, quantity int) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	q := l.db.q(ctx)
	if ref.IsVariant() {
		tag, err = q.Exec(ctx, reserveVariantSQL, ref.VariantID, ref.ProductID, quantity)
	} else {
		tag, err = q.Exec(ctx, reserveProductSQL, ref.ProductID, quantity)
	}
	if err != nil {
		return errors.Wrapf(err, "reserve %s", ref)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	exists, err := l.exists(ctx, ref)
	if err != nil {
		return err
	}
	if !exists {
		return stock.ErrUnknownTarget
	}
	return stock.ErrInsufficientStock
}

func (l *StockLedger) Release(ctx context.Context, ref catalog.Ref, quantity int) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	q := l.db.q(ctx)
	if ref.IsVariant() {
		tag, err = q.Exec(ctx, releaseVariantSQL, ref.VariantID, ref.ProductID, quantity)
	} else {
		tag, err = q.Exec(ctx, releaseProductSQL, ref.ProductID, quantity)
	}
	if err != nil {
		return errors.Wrapf(err, "release %s", ref)
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrUnknownTarget
	}
	return nil
}

// Set overwrites the stock count of ref.
func (l *StockLedger) Set(ctx context.Context, ref catalog.Ref, quantity int) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	q := l.db.q(ctx)
	if ref.IsVariant() {
		tag, err = q.Exec(ctx, setVariantStockSQL, ref.VariantID, ref.ProductID, quantity)
	} else {
		tag, err = q.Exec(ctx, setProductStockSQL, ref.ProductID, quantity)
	}
	if err != nil {
		return errors.Wrapf(err, "set stock %s", ref)
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrUnknownTarget
	}
	return nil
}

func (l *StockLedger) exists(ctx context.Context, ref catalog.Ref) (bool, error) {
	var (
		ok  bool
		err error
	)
	q := l.db.q(ctx)
	if ref.IsVariant() {
		err = q.QueryRow(ctx, variantExistsSQL, ref.VariantID, ref.ProductID).Scan(&ok)
	} else {
		err = q.QueryRow(ctx, productExistsSQL, ref.ProductID).Scan(&ok)
	}
	if err != nil {
		return false, errors.Wrapf(err, "check %s", ref)
	}
	return ok, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
