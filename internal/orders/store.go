package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/notifications"
	"github.com/shopspring/decimal"
)

// Store is the storage session the engine runs against. InTx scopes one
// atomic unit of work: fn's effects are committed only if it returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrders(ctx context.Context, f ListFilter) ([]Order, error)
}

// Tx is the set of writes available inside a unit of work. LockProduct and
// LockOrder hold their row until the unit ends.
type Tx interface {
	LockProduct(ctx context.Context, id string) (inventory.Product, error)
	DecrementStock(ctx context.Context, id string, qty decimal.Decimal) error
	InsertOrder(ctx context.Context, o Order) error
	LockOrder(ctx context.Context, id string) (Order, error)
	UpdateOrderStatus(ctx context.Context, id string, s Status, at time.Time) error
	Notify(ctx context.Context, n notifications.Notification) error
}
