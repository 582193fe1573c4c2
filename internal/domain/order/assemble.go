package order

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
)

// Draft is an assembled but not yet persisted order body.
type Draft struct {
	Lines    []Line
	Total    decimal.Decimal
	Region   catalog.Region
	Currency string
}

// Assemble prices every cart line against live catalog records and checks
// stock sufficiency. It fails as a whole on the first unresolvable, unpriced,
// or understocked line; no partial draft is ever returned.
func Assemble(c *cart.Cart, region catalog.Region, resolved *catalog.Resolved) (*Draft, error) {
	if c == nil || len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	currency := region.Currency()
	lines := make([]Line, 0, len(c.Items))
	total := decimal.Zero

	for _, item := range c.Items {
		ref := item.Ref()
		p, v, err := resolved.Lookup(ref)
		if err != nil {
			return nil, &ItemNotFoundError{Ref: ref}
		}

		line := Line{
			ProductID:    p.ID,
			Name:         p.Name,
			Image:        p.Image,
			VariantLabel: catalog.StandardLabel,
			Quantity:     item.Quantity,
		}
		prices, stock := p.Prices, p.Stock
		if v != nil {
			line.VariantID = v.ID
			line.VariantLabel = v.Label()
			if v.Image != "" {
				line.Image = v.Image
			}
			if len(v.Prices) > 0 {
				prices = v.Prices
			}
			stock = v.Stock
		}

		price, ok := catalog.SelectPrice(prices, region, currency)
		if !ok {
			return nil, &PriceUnavailableError{Item: p.Name, Region: region, Currency: currency}
		}
		if stock < item.Quantity {
			return nil, &InsufficientStockError{
				Item:      displayName(line),
				Ref:       ref,
				Requested: item.Quantity,
				Available: stock,
			}
		}

		line.Price = price
		lines = append(lines, line)
		total = total.Add(line.Total())
	}

	return &Draft{
		Lines:    lines,
		Total:    total.Round(2),
		Region:   region,
		Currency: currency,
	}, nil
}

func displayName(l Line) string {
	if l.VariantLabel == "" || l.VariantLabel == catalog.StandardLabel {
		return l.Name
	}
	return l.Name + " (" + l.VariantLabel + ")"
}
