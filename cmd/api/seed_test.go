package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/memstore"
	"github.com/stretchr/testify/require"
)

func TestSeedProducts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"A","vendor_id":"vendor-1","name":"Tomato","unit_price":"5.00","available_quantity":10},
		{"id":"B","vendor_id":"vendor-2","name":"Potato","unit_price":10,"available_quantity":"3","unit":"sack"}
	]`), 0o600))

	mem := memstore.New()
	n, err := seedProducts(context.Background(), memSeeder{mem}, path)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	a, ok := mem.Product("A")
	require.True(t, ok)
	require.Equal(t, inventory.StatusAvailable, a.Status)
	require.Equal(t, "kg", a.Unit)
	require.Equal(t, "10", a.AvailableQuantity.String())

	b, _ := mem.Product("B")
	require.Equal(t, "sack", b.Unit)
}

func TestSeedProductsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))

	_, err := seedProducts(context.Background(), memSeeder{memstore.New()}, path)
	require.Error(t, err)

	_, err = seedProducts(context.Background(), memSeeder{memstore.New()}, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
