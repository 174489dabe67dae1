// Package inventory is the Inventory Store: current product records and the
// locked read/decrement pair the order engine relies on.
package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAvailable    Status = "available"
	StatusOutOfStock   Status = "out_of_stock"
	StatusDiscontinued Status = "discontinued"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Product struct {
	ID                string          `json:"id"`
	VendorID          string          `json:"vendor_id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Unit              string          `json:"unit"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
	Status            Status          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// CanSell reports whether qty can be taken from p right now.
func (p Product) CanSell(qty decimal.Decimal) bool {
	return p.Status == StatusAvailable && qty.LessThanOrEqual(p.AvailableQuantity)
}

// Decremented returns p with qty removed. Stock reaching zero marks the
// product out of stock.
func (p Product) Decremented(qty decimal.Decimal) (Product, error) {
	left := p.AvailableQuantity.Sub(qty)
	if left.IsNegative() {
		return p, ErrInsufficientStock
	}
	p.AvailableQuantity = left
	if left.IsZero() {
		p.Status = StatusOutOfStock
	}
	return p, nil
}
