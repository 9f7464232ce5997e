package money

import "github.com/shopspring/decimal"

// Amount represents a monetary value. Intermediate results keep full decimal
// precision; rounding to the currency unit happens only at the formatting and
// payment-comparison boundary.
type Amount = decimal.Decimal

// Quantity represents an item quantity. Fractional values are valid for
// bulk-sold products (weight or volume).
type Quantity = decimal.Decimal

// PaymentEpsilon is the tolerance used when comparing payment amounts against
// an order total. One cent of difference is accepted, anything more is not.
var PaymentEpsilon = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Zero returns the zero amount.
func Zero() Amount { return decimal.Zero }

// FromFloat converts a float into an Amount.
func FromFloat(v float64) Amount { return decimal.NewFromFloat(v) }

// FromInt converts an integer into an Amount.
func FromInt(v int64) Amount { return decimal.NewFromInt(v) }

// Percent returns base * rate/100 at full precision.
func Percent(base Amount, rate Amount) Amount {
	return base.Mul(rate).Div(hundred)
}

// WithinEpsilon reports whether a and b differ by at most PaymentEpsilon.
func WithinEpsilon(a, b Amount) bool {
	return a.Sub(b).Abs().Cmp(PaymentEpsilon) <= 0
}

// RoundCurrency rounds an amount to the currency unit (two decimal places).
func RoundCurrency(a Amount) Amount { return a.Round(2) }

// ClampQuantity floors a quantity at zero. Quantities are never negative.
func ClampQuantity(q Quantity) Quantity {
	if q.IsNegative() {
		return decimal.Zero
	}
	return q
}

// Min returns the smaller of two amounts.
func Min(a, b Amount) Amount {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
