// Package catalog holds the read model of sellable items: products, their
// variants, region-scoped prices, and stock counts.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a referenced product or variant does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Region is the pricing jurisdiction of a cart or order.
type Region string

const (
	// RegionDomestic prices in INR.
	RegionDomestic Region = "IN"
	// RegionOverseas prices in USD.
	RegionOverseas Region = "OUT"
)

// InvalidRegionError is returned by ParseRegion for unknown region flags.
type InvalidRegionError struct {
	Value string
}

func (e *InvalidRegionError) Error() string {
	return fmt.Sprintf("invalid region %q: must be IN or OUT", e.Value)
}

// ParseRegion converts a request flag to a Region. Matching is case-insensitive.
func ParseRegion(s string) (Region, error) {
	switch Region(strings.ToUpper(strings.TrimSpace(s))) {
	case RegionDomestic:
		return RegionDomestic, nil
	case RegionOverseas:
		return RegionOverseas, nil
	default:
		return "", &InvalidRegionError{Value: s}
	}
}

// Currency returns the ISO currency code prices are quoted in for r.
func (r Region) Currency() string {
	if r == RegionOverseas {
		return "USD"
	}
	return "INR"
}

// Price is one region-scoped price entry.
type Price struct {
	Region   Region              `json:"region"`
	Currency string              `json:"currency"`
	Original decimal.Decimal     `json:"originalPrice"`
	Sale     decimal.NullDecimal `json:"salePrice"`
}

// Effective returns the sale price when one is set and positive, otherwise
// the original price.
func (p Price) Effective() decimal.Decimal {
	if p.Sale.Valid && p.Sale.Decimal.IsPositive() {
		return p.Sale.Decimal
	}
	return p.Original
}

// SelectPrice finds the entry matching region and currency and returns its
// effective unit price.
func SelectPrice(prices []Price, region Region, currency string) (decimal.Decimal, bool) {
	for _, p := range prices {
		if p.Region == region && strings.EqualFold(p.Currency, currency) {
			return p.Effective(), true
		}
	}
	return decimal.Zero, false
}

// Product is a catalog entry. Simple products carry their own stock count;
// products with variants keep stock on each variant instead.
type Product struct {
	ID     string
	Name   string
	Image  string
	Stock  int
	Prices []Price
}

// Attribute is one option axis of a variant, e.g. Size=XL.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Variant is a purchasable option of a product with its own stock.
type Variant struct {
	ID         string
	ProductID  string
	Attributes []Attribute
	Image      string
	Stock      int
	Prices     []Price
}

// StandardLabel is shown for lines without variant attributes.
const StandardLabel = "Standard"

// Label formats the variant attributes as "v1 / v2 / ...".
func (v Variant) Label() string {
	values := make([]string, 0, len(v.Attributes))
	for _, a := range v.Attributes {
		if a.Value != "" {
			values = append(values, a.Value)
		}
	}
	if len(values) == 0 {
		return StandardLabel
	}
	return strings.Join(values, " / ")
}

// Ref points at a purchasable target: a variant when VariantID is set,
// otherwise the simple product itself.
type Ref struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
}

// IsVariant reports whether the ref targets a variant.
func (r Ref) IsVariant() bool {
	return r.VariantID != ""
}

func (r Ref) String() string {
	if r.IsVariant() {
		return r.ProductID + "/" + r.VariantID
	}
	return r.ProductID
}

// Resolved is the read-time join of a set of refs against the catalog.
type Resolved struct {
	Products map[string]Product
	Variants map[string]Variant
}

// Lookup returns the product and, for variant refs, the variant a ref points
// at. It fails with ErrNotFound when either is missing or the variant belongs
// to another product.
func (r *Resolved) Lookup(ref Ref) (Product, *Variant, error) {
	p, ok := r.Products[ref.ProductID]
	if !ok {
		return Product{}, nil, ErrNotFound
	}
	if !ref.IsVariant() {
		return p, nil, nil
	}
	v, ok := r.Variants[ref.VariantID]
	if !ok || v.ProductID != p.ID {
		return Product{}, nil, ErrNotFound
	}
	return p, &v, nil
}

// Repository provides catalog reads.
type Repository interface {
	// Resolve loads every product and variant referenced by refs. Missing
	// items are absent from the result rather than reported as errors.
	Resolve(ctx context.Context, refs []Ref) (*Resolved, error)
}
