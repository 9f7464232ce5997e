package cart_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hermosa/pos-api/internal/cart"
	"github.com/hermosa/pos-api/internal/discount"
	"github.com/hermosa/pos-api/internal/money"
)

func fixedLine(price string, vatRate string) cart.Line {
	p := decimal.RequireFromString(price)
	rate := decimal.RequireFromString(vatRate)
	return cart.Line{
		Quantity:  decimal.NewFromInt(1),
		Price:     p,
		VATRate:   rate,
		VATAmount: money.Percent(p, rate),
	}
}

func TestAggregateIdentity(t *testing.T) {
	lines := []cart.Line{fixedLine("20", "20"), fixedLine("30", "20")}
	od := discount.Apply(discount.Spec{Kind: discount.KindFixed, Value: dec("10")}, cart.OrderDiscountBase(lines))

	totals := cart.Aggregate(lines, &od)
	require.True(t, totals.Subtotal.Equal(dec("50")))
	require.True(t, totals.ItemDiscounts.IsZero())
	require.True(t, od.Amount.Equal(dec("10")))
	require.True(t, totals.TotalVAT.Equal(dec("10")))
	require.True(t, totals.Total.Equal(dec("40")))

	// total == subtotal - itemDiscounts - orderDiscount, exactly
	require.True(t, totals.Total.Equal(totals.Subtotal.Sub(totals.ItemDiscounts).Sub(od.Amount)))
}

func TestOrderDiscountBaseExcludesItemDiscounts(t *testing.T) {
	item := discount.Apply(discount.Spec{Kind: discount.KindFixed, Value: dec("5")}, dec("100"))
	line := fixedLine("100", "20")
	line.Discount = &item

	base := cart.OrderDiscountBase([]cart.Line{line})
	require.True(t, base.Equal(dec("95")))

	od := discount.Apply(discount.Spec{Kind: discount.KindPercentage, Value: dec("10")}, base)
	require.True(t, od.Amount.Equal(dec("9.5")), "got %s", od.Amount)

	totals := cart.Aggregate([]cart.Line{line}, &od)
	require.True(t, totals.Total.Equal(dec("85.5")))
}

func TestAggregateWithoutOrderDiscount(t *testing.T) {
	totals := cart.Aggregate([]cart.Line{fixedLine("49.99", "20")}, nil)
	require.True(t, totals.Subtotal.Equal(dec("49.99")))
	require.True(t, totals.TotalVAT.Equal(dec("9.998")))
	require.True(t, totals.Total.Equal(dec("49.99")))
}

func TestAggregateEmptyCart(t *testing.T) {
	totals := cart.Aggregate(nil, nil)
	require.True(t, totals.Subtotal.IsZero())
	require.True(t, totals.Total.IsZero())
}
