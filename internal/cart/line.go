package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/discount"
	"github.com/hermosa/pos-api/internal/money"
)

// Line is one product entry in a cart. Price is the line TOTAL, not a unit
// price; the effective unit price is derived as Price/Quantity when a
// quantity is adjusted. VATAmount and the discount amount are derived values
// that are recomputed on every mutation that changes the price.
type Line struct {
	ProductID uuid.UUID         `json:"productId"`
	Name      string            `json:"productName"`
	Bulk      bool              `json:"bulk"`
	Quantity  decimal.Decimal   `json:"quantity"`
	Price     decimal.Decimal   `json:"price"`
	VATRate   decimal.Decimal   `json:"vatRate"`
	VATAmount decimal.Decimal   `json:"vatAmount"`
	UnitLabel string            `json:"unitLabel,omitempty"`
	Discount  *discount.Applied `json:"discount,omitempty"`
}

// UnitPrice derives the effective per-unit price from the line total. A
// zero-quantity line has no meaningful unit price and yields zero.
func (l Line) UnitPrice() money.Amount {
	if l.Quantity.IsZero() {
		return decimal.Zero
	}
	return l.Price.Div(l.Quantity)
}

// repriced returns a copy of the line with the new quantity and price, VAT
// recomputed, and any applied discount re-resolved against the new price
// with its original spec.
func (l Line) repriced(quantity money.Quantity, price money.Amount) Line {
	l.Quantity = quantity
	l.Price = price
	l.VATAmount = money.Percent(price, l.VATRate)
	if l.Discount != nil {
		reapplied := discount.Reapply(*l.Discount, price)
		l.Discount = &reapplied
	}
	return l
}

// clone returns a deep copy of the line so snapshots cannot alias cart state.
func (l Line) clone() Line {
	if l.Discount != nil {
		d := *l.Discount
		l.Discount = &d
	}
	return l
}
