package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/memstore"
	"github.com/jackc/pgx/v5/pgxpool"
)

// productSeeder loads catalog rows at startup; catalog CRUD is a separate service.
type productSeeder interface {
	Seed(ctx context.Context, p inventory.Product) error
}

type pgSeeder struct{ db *pgxpool.Pool }

// Seed skips products that already exist so restarts are harmless.
func (s pgSeeder) Seed(ctx context.Context, p inventory.Product) error {
	repo := inventory.Repo{DB: s.db}
	_, err := repo.Get(ctx, p.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, inventory.ErrNotFound) {
		return err
	}
	return repo.Create(ctx, p)
}

type memSeeder struct{ mem *memstore.Store }

func (s memSeeder) Seed(_ context.Context, p inventory.Product) error {
	s.mem.PutProduct(p)
	return nil
}

func seedProducts(ctx context.Context, s productSeeder, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var ps []inventory.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, p := range ps {
		if err := s.Seed(ctx, p); err != nil {
			return 0, fmt.Errorf("seed %s: %w", p.ID, err)
		}
	}
	return len(ps), nil
}
