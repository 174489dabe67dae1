package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/agro-market/internal/inventory"
	"github.com/ariefcatur/agro-market/internal/notifications"
	"github.com/ariefcatur/agro-market/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres Store.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, inv: inventory.Repo{DB: tx}, notes: notifications.Repo{DB: tx}})
	})
}

type pgTx struct {
	tx    pgx.Tx
	inv   inventory.Repo
	notes notifications.Repo
}

func (t *pgTx) LockProduct(ctx context.Context, id string) (inventory.Product, error) {
	return t.inv.Lock(ctx, id)
}

func (t *pgTx) DecrementStock(ctx context.Context, id string, qty decimal.Decimal) error {
	return t.inv.Decrement(ctx, id, qty)
}

func (t *pgTx) InsertOrder(ctx context.Context, o Order) error {
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, buyer_id, vendor_id, total_amount, delivery_address, delivery_date,
		                   status, payment_status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		o.ID, o.BuyerID, o.VendorID, o.TotalAmount, o.DeliveryAddress, o.DeliveryDate,
		string(o.Status), string(o.PaymentStatus), o.Notes, o.CreatedAt,
	); err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, quantity, unit_price, subtotal, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			it.ID, o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal, o.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, id string, s Status, at time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, string(s), at)
	return err
}

func (t *pgTx) Notify(ctx context.Context, n notifications.Notification) error {
	return t.notes.Notify(ctx, n)
}

const orderColumns = `id, buyer_id, vendor_id, total_amount, delivery_address, delivery_date,
	status, payment_status, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status, payment string
	err := row.Scan(&o.ID, &o.BuyerID, &o.VendorID, &o.TotalAmount, &o.DeliveryAddress, &o.DeliveryDate,
		&status, &payment, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payment)
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, subtotal
		FROM order_items WHERE order_id=$1 ORDER BY created_at, id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Repo) ListOrders(ctx context.Context, f ListFilter) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1::text = '' OR buyer_id = $1) AND ($2::text = '' OR vendor_id = $2)
		ORDER BY created_at DESC, id`, f.BuyerID, f.VendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
