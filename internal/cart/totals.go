package cart

import (
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/discount"
	"github.com/hermosa/pos-api/internal/money"
)

// Totals aggregates computed cart components.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ItemDiscounts decimal.Decimal `json:"itemDiscounts"`
	TotalVAT      decimal.Decimal `json:"totalVat"`
	Total         decimal.Decimal `json:"total"`
}

// Aggregate folds the lines and an optional order-level discount into cart
// totals. It is a pure function of its inputs; nothing is memoized.
func Aggregate(lines []Line, orderDiscount *discount.Applied) Totals {
	subtotal := decimal.Zero
	itemDiscounts := decimal.Zero
	totalVAT := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price)
		totalVAT = totalVAT.Add(l.VATAmount)
		if l.Discount != nil {
			itemDiscounts = itemDiscounts.Add(l.Discount.Amount)
		}
	}
	total := subtotal.Sub(itemDiscounts)
	if orderDiscount != nil {
		total = total.Sub(orderDiscount.Amount)
	}
	return Totals{
		Subtotal:      subtotal,
		ItemDiscounts: itemDiscounts,
		TotalVAT:      totalVAT,
		Total:         total,
	}
}

// OrderDiscountBase is the base an order-level discount resolves against:
// the subtotal net of item discounts, so order and item discounts compound
// instead of double-counting.
func OrderDiscountBase(lines []Line) money.Amount {
	base := decimal.Zero
	for _, l := range lines {
		base = base.Add(l.Price)
		if l.Discount != nil {
			base = base.Sub(l.Discount.Amount)
		}
	}
	return base
}
