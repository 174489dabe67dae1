package ledger

import (
	"context"

	"github.com/ariefcatur/agro-market/internal/inventory"
)

// Store persists ledger entries. There is deliberately no update or delete.
type Store interface {
	// OwnedProduct returns inventory.ErrNotFound unless vendorID owns productID.
	OwnedProduct(ctx context.Context, productID, vendorID string) (inventory.Product, error)
	// LatestLedgerID returns the ledger most recently opened for productID, or ErrNoLedger.
	LatestLedgerID(ctx context.Context, productID string) (string, error)
	// Append inserts e as-is and returns it with its row id.
	Append(ctx context.Context, e Entry) (Entry, error)
	// EachEntry calls fn for the ledger's entries in creation order until fn returns false.
	EachEntry(ctx context.Context, ledgerID string, fn func(Entry) bool) error
	Stats(ctx context.Context, ledgerID string) (Stats, error)
}
