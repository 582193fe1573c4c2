package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion(" in ")
	require.NoError(t, err)
	assert.Equal(t, RegionDomestic, r)
	assert.Equal(t, "INR", r.Currency())

	r, err = ParseRegion("OUT")
	require.NoError(t, err)
	assert.Equal(t, "USD", r.Currency())

	_, err = ParseRegion("EU")
	var rErr *InvalidRegionError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, "EU", rErr.Value)
}

func TestSelectPrice(t *testing.T) {
	prices := []Price{
		{Region: RegionDomestic, Currency: "INR", Original: decimal.RequireFromString("999.00"),
			Sale: decimal.NewNullDecimal(decimal.RequireFromString("799.00"))},
		{Region: RegionOverseas, Currency: "USD", Original: decimal.RequireFromString("12.50")},
		{Region: RegionOverseas, Currency: "EUR", Original: decimal.RequireFromString("11.00"),
			Sale: decimal.NewNullDecimal(decimal.Zero)},
	}

	p, ok := SelectPrice(prices, RegionDomestic, "INR")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("799.00").Equal(p), "sale price wins")

	p, ok = SelectPrice(prices, RegionOverseas, "usd")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("12.50").Equal(p))

	p, ok = SelectPrice(prices, RegionOverseas, "EUR")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("11.00").Equal(p), "zero sale price is ignored")

	_, ok = SelectPrice(prices, RegionDomestic, "USD")
	assert.False(t, ok)
}

func TestVariantLabel(t *testing.T) {
	assert.Equal(t, StandardLabel, Variant{}.Label())
	assert.Equal(t, "Red / XL", Variant{Attributes: []Attribute{
		{Name: "Color", Value: "Red"},
		{Name: "Size", Value: "XL"},
	}}.Label())
}

func TestResolvedLookup(t *testing.T) {
	res := &Resolved{
		Products: map[string]Product{"p1": {ID: "p1"}, "p2": {ID: "p2"}},
		Variants: map[string]Variant{"v1": {ID: "v1", ProductID: "p1"}},
	}

	_, v, err := res.Lookup(Ref{ProductID: "p1", VariantID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)

	_, v, err = res.Lookup(Ref{ProductID: "p2"})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, _, err = res.Lookup(Ref{ProductID: "p2", VariantID: "v1"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = res.Lookup(Ref{ProductID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}
