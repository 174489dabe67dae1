package ledger

import (
	"context"
	"errors"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store. It only ever inserts into supply_chain_ledger.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) OwnedProduct(ctx context.Context, productID, vendorID string) (inventory.Product, error) {
	return inventory.Repo{DB: r.DB}.GetOwned(ctx, productID, vendorID)
}

func (r *Repo) LatestLedgerID(ctx context.Context, productID string) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx, `
		SELECT ledger_id FROM supply_chain_ledger
		WHERE product_id=$1 AND event_type=$2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, productID, EventProductCreated).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoLedger
	}
	return id, err
}

func (r *Repo) Append(ctx context.Context, e Entry) (Entry, error) {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO supply_chain_ledger
		    (ledger_id, product_id, actor_id, event_type, event_data, transaction_hash, qr_code, status, created_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,NULLIF($7,''),$8,$9)
		RETURNING id`,
		e.LedgerID, e.ProductID, e.ActorID, e.EventType, []byte(e.EventData), e.Hash, e.QRCode, e.Status, e.CreatedAt,
	).Scan(&e.ID)
	return e, err
}

func (r *Repo) EachEntry(ctx context.Context, ledgerID string, fn func(Entry) bool) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, ledger_id, product_id, COALESCE(actor_id,''), event_type, event_data,
		       transaction_hash, COALESCE(qr_code,''), status, created_at
		FROM supply_chain_ledger
		WHERE ledger_id=$1
		ORDER BY created_at ASC, id ASC`, ledgerID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e Entry
		var data []byte
		if err := rows.Scan(&e.ID, &e.LedgerID, &e.ProductID, &e.ActorID, &e.EventType, &data,
			&e.Hash, &e.QRCode, &e.Status, &e.CreatedAt); err != nil {
			return err
		}
		e.EventData = data
		e.CreatedAt = e.CreatedAt.UTC()
		if !fn(e) {
			return nil
		}
	}
	return rows.Err()
}

func (r *Repo) Stats(ctx context.Context, ledgerID string) (Stats, error) {
	var st Stats
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(DISTINCT ledger_id), COUNT(DISTINCT product_id), COUNT(*), COUNT(DISTINCT event_type)
		FROM supply_chain_ledger
		WHERE $1::text = '' OR ledger_id = $1`, ledgerID,
	).Scan(&st.TotalChains, &st.ProductsTracked, &st.TotalEvents, &st.EventTypes)
	return st, err
}
