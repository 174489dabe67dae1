package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/agro-market/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const productColumns = `id, vendor_id, name, category, unit, unit_price, available_quantity, status, created_at, updated_at`

// Repo runs inventory queries against a pool or an open transaction.
type Repo struct{ DB postgres.DBTX }

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var status string
	err := row.Scan(&p.ID, &p.VendorID, &p.Name, &p.Category, &p.Unit,
		&p.UnitPrice, &p.AvailableQuantity, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	p.Status = Status(status)
	return p, nil
}

func (r Repo) Get(ctx context.Context, id string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// GetOwned loads a product only when vendorID owns it.
func (r Repo) GetOwned(ctx context.Context, id, vendorID string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1 AND vendor_id=$2`, id, vendorID))
}

// Lock loads a product and holds its row lock until the surrounding
// transaction ends. Must be called on a pgx.Tx.
func (r Repo) Lock(ctx context.Context, id string) (Product, error) {
	return scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

// Decrement removes qty from stock. The guard in the WHERE clause keeps the
// non-negative invariant even without a prior Lock.
func (r Repo) Decrement(ctx context.Context, id string, qty decimal.Decimal) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET available_quantity = available_quantity - $2,
		    status = CASE WHEN available_quantity - $2 = 0 THEN 'out_of_stock' ELSE status END,
		    updated_at = $3
		WHERE id = $1 AND available_quantity >= $2`,
		id, qty, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrInsufficientStock
	}
	return nil
}

// Create is used by seeding and tests; catalog CRUD lives elsewhere.
func (r Repo) Create(ctx context.Context, p Product) error {
	now := time.Now().UTC()
	if p.Status == "" {
		p.Status = StatusAvailable
	}
	if p.Unit == "" {
		p.Unit = "kg"
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, vendor_id, name, category, unit, unit_price, available_quantity, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		p.ID, p.VendorID, p.Name, p.Category, p.Unit, p.UnitPrice, p.AvailableQuantity, string(p.Status), now)
	return err
}
