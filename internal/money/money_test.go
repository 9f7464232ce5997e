package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hermosa/pos-api/internal/money"
)

func TestPercentKeepsSubCentPrecision(t *testing.T) {
	// 49.99 at 20% VAT is 9.998, not 10.00.
	vat := money.Percent(decimal.RequireFromString("49.99"), decimal.NewFromInt(20))
	require.True(t, vat.Equal(decimal.RequireFromString("9.998")), "got %s", vat)
}

func TestWithinEpsilonBoundary(t *testing.T) {
	total := decimal.RequireFromString("100.00")
	require.True(t, money.WithinEpsilon(decimal.RequireFromString("99.99"), total))
	require.True(t, money.WithinEpsilon(decimal.RequireFromString("100.01"), total))
	require.False(t, money.WithinEpsilon(decimal.RequireFromString("99.98"), total))
	require.False(t, money.WithinEpsilon(decimal.RequireFromString("100.02"), total))
}

func TestClampQuantity(t *testing.T) {
	require.True(t, money.ClampQuantity(decimal.NewFromInt(-3)).IsZero())
	q := decimal.RequireFromString("0.250")
	require.True(t, money.ClampQuantity(q).Equal(q))
}

func TestRoundCurrency(t *testing.T) {
	require.Equal(t, "10.00", money.RoundCurrency(decimal.RequireFromString("9.998")).StringFixed(2))
}
