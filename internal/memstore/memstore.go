// Package memstore keeps every table in process memory. It backs the API
// when no database is configured and serves as the storage fake in tests.
// One mutex serialises all access, which gives units of work the same
// isolation row locks give in Postgres.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/ledger"
	"github.com/ariefcatur/agro-market/internal/notifications"
	"github.com/ariefcatur/agro-market/internal/orders"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu            sync.Mutex
	products      map[string]inventory.Product
	orders        map[string]orders.Order
	notifications []notifications.Notification
	published     map[string]bool
	entries       []ledger.Entry
	nextEntryID   int64

	// FailNotify, when set, is returned by Notify outside a transaction.
	FailNotify error
}

func New() *Store {
	return &Store{
		products:  map[string]inventory.Product{},
		orders:    map[string]orders.Order{},
		published: map[string]bool{},
	}
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Status == "" {
		p.Status = inventory.StatusAvailable
	}
	if p.Unit == "" {
		p.Unit = "kg"
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.ID] = p
}

func (s *Store) Product(id string) (inventory.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

// Notifications returns a copy of every recorded notification.
func (s *Store) Notifications() []notifications.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notifications)
}

// OrderCount is the number of stored orders.
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// Tamper rewrites a stored ledger entry in place, bypassing the append-only
// API. It simulates an out-of-band edit of the underlying table.
func (s *Store) Tamper(entryID int64, fn func(*ledger.Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == entryID {
			fn(&s.entries[i])
			return true
		}
	}
	return false
}

// ---- orders.Store ----

type snapshot struct {
	products      map[string]inventory.Product
	orders        map[string]orders.Order
	notifications []notifications.Notification
}

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := snapshot{
		products:      maps.Clone(s.products),
		orders:        maps.Clone(s.orders),
		notifications: slices.Clone(s.notifications),
	}
	err := fn(&memTx{s: s})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.products, s.orders, s.notifications = before.products, before.orders, before.notifications
		return err
	}
	return nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	o.Items = slices.Clone(o.Items)
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, f orders.ListFilter) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.orders {
		if f.BuyerID != "" && o.BuyerID != f.BuyerID {
			continue
		}
		if f.VendorID != "" && o.VendorID != f.VendorID {
			continue
		}
		o.Items = nil
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memTx struct{ s *Store }

func (t *memTx) LockProduct(_ context.Context, id string) (inventory.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return inventory.Product{}, inventory.ErrNotFound
	}
	return p, nil
}

func (t *memTx) DecrementStock(_ context.Context, id string, qty decimal.Decimal) error {
	p, ok := t.s.products[id]
	if !ok {
		return inventory.ErrNotFound
	}
	p, err := p.Decremented(qty)
	if err != nil {
		return err
	}
	p.UpdatedAt = time.Now().UTC()
	t.s.products[id] = p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o orders.Order) error {
	o.Items = slices.Clone(o.Items)
	t.s.orders[o.ID] = o
	return nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return o, nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id string, st orders.Status, at time.Time) error {
	o, ok := t.s.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = st
	o.UpdatedAt = at
	t.s.orders[id] = o
	return nil
}

func (t *memTx) Notify(_ context.Context, n notifications.Notification) error {
	t.s.notifications = append(t.s.notifications, n)
	return nil
}

// ---- notifications.Sink and notifications.Outbox ----

func (s *Store) Notify(_ context.Context, n notifications.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNotify != nil {
		return s.FailNotify
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *Store) Unpublished(_ context.Context, limit int) ([]notifications.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notifications.Notification
	for _, n := range s.notifications {
		if len(out) == limit {
			break
		}
		if !s.published[n.ID] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.published[id] = true
	}
	return nil
}

// ---- ledger.Store ----

func (s *Store) OwnedProduct(_ context.Context, productID, vendorID string) (inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok || p.VendorID != vendorID {
		return inventory.Product{}, inventory.ErrNotFound
	}
	return p, nil
}

func (s *Store) LatestLedgerID(_ context.Context, productID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *ledger.Entry
	for i := range s.entries {
		e := &s.entries[i]
		if e.ProductID != productID || e.EventType != ledger.EventProductCreated {
			continue
		}
		if latest == nil || !e.CreatedAt.Before(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return "", ledger.ErrNoLedger
	}
	return latest.LedgerID, nil
}

func (s *Store) Append(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEntryID++
	e.ID = s.nextEntryID
	e.EventData = slices.Clone(e.EventData)
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *Store) EachEntry(_ context.Context, ledgerID string, fn func(ledger.Entry) bool) error {
	s.mu.Lock()
	var matched []ledger.Entry
	for _, e := range s.entries {
		if e.LedgerID == ledgerID {
			e.EventData = slices.Clone(e.EventData)
			matched = append(matched, e)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	for _, e := range matched {
		if !fn(e) {
			return nil
		}
	}
	return nil
}

func (s *Store) Stats(_ context.Context, ledgerID string) (ledger.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chains, products, types := map[string]bool{}, map[string]bool{}, map[string]bool{}
	var st ledger.Stats
	for _, e := range s.entries {
		if ledgerID != "" && e.LedgerID != ledgerID {
			continue
		}
		chains[e.LedgerID] = true
		products[e.ProductID] = true
		types[e.EventType] = true
		st.TotalEvents++
	}
	st.TotalChains = int64(len(chains))
	st.ProductsTracked = int64(len(products))
	st.EventTypes = int64(len(types))
	return st, nil
}
