package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/storage/memory"
)

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func TestParseLine(t *testing.T) {
	l, err := parseLine(" p1 , v1 , 7 ")
	require.NoError(t, err)
	assert.Equal(t, catalog.Ref{ProductID: "p1", VariantID: "v1"}, l.ref)
	assert.Equal(t, 7, l.quantity)

	l, err = parseLine("p2,,0")
	require.NoError(t, err)
	assert.False(t, l.ref.IsVariant())

	for _, bad := range []string{"p1,3", ",,1", "p1,,x", "p1,,-1"} {
		_, err := parseLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildPlan(t *testing.T) {
	dir := t.TempDir()
	feeds := []string{
		writeFeed(t, dir, "north.csv.gz", "# north warehouse", "p1,,5", "p2,v1,3", "shared,,1"),
		writeFeed(t, dir, "south.csv.gz", "p3,,9", "shared,,2", "broken"),
	}

	p, err := buildPlan(context.Background(), feeds, 1000)
	require.NoError(t, err)

	assert.Equal(t, []catalog.Ref{{ProductID: "shared"}}, p.conflicts)
	assert.Equal(t, 1, p.rejected)

	got := map[string]int{}
	for _, l := range p.levels {
		got[l.ref.String()] = l.quantity
	}
	assert.Equal(t, map[string]int{"p1": 5, "p2/v1": 3, "p3": 9}, got)
}

type memSetter struct {
	*memory.Store
}

func (s memSetter) Set(ctx context.Context, ref catalog.Ref, quantity int) error {
	return s.Store.Stock().Set(ctx, ref, quantity)
}

func TestApply(t *testing.T) {
	s := memory.New()
	s.Catalog().PutProduct(catalog.Product{ID: "p1", Stock: 1})
	s.Catalog().PutProduct(catalog.Product{ID: "p2"})
	s.Catalog().PutVariant(catalog.Variant{ID: "v1", ProductID: "p2", Stock: 1})

	levels := []level{
		{ref: catalog.Ref{ProductID: "p1"}, quantity: 10},
		{ref: catalog.Ref{ProductID: "p2", VariantID: "v1"}, quantity: 4},
		{ref: catalog.Ref{ProductID: "ghost"}, quantity: 2},
	}
	unknown, err := apply(context.Background(), memSetter{s}, levels)
	require.NoError(t, err)
	assert.Equal(t, 1, unknown)

	n, _ := s.Stock().Level(catalog.Ref{ProductID: "p1"})
	assert.Equal(t, 10, n)
	n, _ = s.Stock().Level(catalog.Ref{ProductID: "p2", VariantID: "v1"})
	assert.Equal(t, 4, n)
}
