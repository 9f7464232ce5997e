package cart_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hermosa/pos-api/internal/cart"
	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/discount"
)

const register = "register-1"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCatalog(t *testing.T) (*catalog.Service, catalog.Product, catalog.Product) {
	t.Helper()
	cat := catalog.NewService()
	fixedCat, err := cat.CreateCategory(catalog.Category{Name: "Oils", IsBulk: false})
	require.NoError(t, err)
	bulkCat, err := cat.CreateCategory(catalog.Category{Name: "Flowers", IsBulk: true, DefaultUnit: "kg"})
	require.NoError(t, err)

	price := dec("49.99")
	oil, err := cat.CreateProduct(catalog.Product{
		Name:          "CBD Oil 10%",
		Price:         &price,
		CategoryID:    fixedCat.ID,
		StockQuantity: dec("25"),
		VATRate:       dec("20"),
	})
	require.NoError(t, err)

	flower, err := cat.CreateProduct(catalog.Product{
		Name:          "Hemp Flower",
		CategoryID:    bulkCat.ID,
		StockQuantity: dec("2.5"),
		VATRate:       dec("20"),
	})
	require.NoError(t, err)
	return cat, oil, flower
}

func TestAddFixedPriceLine(t *testing.T) {
	cat, oil, _ := newCatalog(t)
	svc := cart.NewService(cat)

	line, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	require.True(t, line.Quantity.Equal(dec("1")))
	require.True(t, line.Price.Equal(dec("49.99")))
	require.True(t, line.VATAmount.Equal(dec("9.998")), "got %s", line.VATAmount)
}

func TestRepeatedAddUsesCatalogUnitPrice(t *testing.T) {
	cat, oil, _ := newCatalog(t)
	svc := cart.NewService(cat)

	_, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	line, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	require.True(t, line.Quantity.Equal(dec("2")))
	require.True(t, line.Price.Equal(dec("99.98")))
}

func TestAddBulkLineRequiresNegotiatedPrice(t *testing.T) {
	cat, _, flower := newCatalog(t)
	svc := cart.NewService(cat)

	_, err := svc.Add(register, cart.AddInput{ProductID: flower.ID, Quantity: dec("0.250")})
	require.ErrorIs(t, err, cart.ErrInvalidInput)

	price := dec("12.50")
	line, err := svc.Add(register, cart.AddInput{ProductID: flower.ID, Quantity: dec("0.250"), Price: &price})
	require.NoError(t, err)
	require.True(t, line.Price.Equal(dec("12.50")))
	require.True(t, line.VATAmount.Equal(dec("2.5")), "got %s", line.VATAmount)
	require.Equal(t, "kg", line.UnitLabel)
}

func TestBulkQuantityAdjustDerivesUnitPrice(t *testing.T) {
	cat, _, flower := newCatalog(t)
	svc := cart.NewService(cat)

	price := dec("12.50")
	_, err := svc.Add(register, cart.AddInput{ProductID: flower.ID, Quantity: dec("0.250"), Price: &price})
	require.NoError(t, err)

	// 12.50 / 0.250 derives 50/kg, so half a kilo reprices to 25.00.
	line, err := svc.UpdateQuantity(register, flower.ID, dec("0.5"))
	require.NoError(t, err)
	require.True(t, line.Price.Equal(dec("25")), "got %s", line.Price)
	require.True(t, line.VATAmount.Equal(dec("5")), "got %s", line.VATAmount)
}

func TestQuantityClampsAtZero(t *testing.T) {
	cat, oil, _ := newCatalog(t)
	svc := cart.NewService(cat)

	_, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	line, err := svc.UpdateQuantity(register, oil.ID, dec("-3"))
	require.NoError(t, err)
	require.True(t, line.Quantity.IsZero())
	require.True(t, line.Price.IsZero())
}

func TestQuantityChangeReappliesDiscount(t *testing.T) {
	cat, oil, _ := newCatalog(t)
	svc := cart.NewService(cat)

	_, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	line, err := svc.ApplyDiscount(register, oil.ID, discount.Spec{Kind: discount.KindPercentage, Value: dec("10")})
	require.NoError(t, err)
	require.True(t, line.Discount.Amount.Equal(dec("4.999")))

	line, err = svc.UpdateQuantity(register, oil.ID, dec("2"))
	require.NoError(t, err)
	require.NotNil(t, line.Discount)
	require.Equal(t, discount.KindPercentage, line.Discount.Kind)
	require.True(t, line.Discount.Amount.Equal(dec("9.998")), "got %s", line.Discount.Amount)
}

func TestApplyDiscountRejectsFixedAtOrAboveLinePrice(t *testing.T) {
	cat, oil, _ := newCatalog(t)
	svc := cart.NewService(cat)

	_, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(register, oil.ID, discount.Spec{Kind: discount.KindFixed, Value: dec("49.99")})
	require.ErrorIs(t, err, discount.ErrExceedsBase)

	// the rejected input leaves the line untouched
	lines := svc.Lines(register)
	require.Len(t, lines, 1)
	require.Nil(t, lines[0].Discount)
}

func TestAddRejectsInsufficientStock(t *testing.T) {
	cat, _, flower := newCatalog(t)
	svc := cart.NewService(cat)

	price := dec("100")
	_, err := svc.Add(register, cart.AddInput{ProductID: flower.ID, Quantity: dec("3"), Price: &price})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)
	require.Empty(t, svc.Lines(register))
}

func TestUpdateQuantityRejectsInsufficientStock(t *testing.T) {
	cat, oil, _ := newCatalog(t)
	svc := cart.NewService(cat)

	_, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	_, err = svc.UpdateQuantity(register, oil.ID, dec("26"))
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	lines := svc.Lines(register)
	require.True(t, lines[0].Quantity.Equal(dec("1")))
}

func TestLinesReturnsIndependentCopies(t *testing.T) {
	cat, oil, _ := newCatalog(t)
	svc := cart.NewService(cat)

	_, err := svc.Add(register, cart.AddInput{ProductID: oil.ID})
	require.NoError(t, err)
	_, err = svc.ApplyDiscount(register, oil.ID, discount.Spec{Kind: discount.KindFixed, Value: dec("5")})
	require.NoError(t, err)

	snapshot := svc.Lines(register)
	snapshot[0].Discount.Amount = dec("999")
	require.True(t, svc.Lines(register)[0].Discount.Amount.Equal(dec("5")))
}

func TestRemoveUnknownLine(t *testing.T) {
	cat, _, _ := newCatalog(t)
	svc := cart.NewService(cat)
	require.ErrorIs(t, svc.Remove(register, uuid.New()), cart.ErrNotFound)
}
