package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hermosa/pos-api/internal/cart"
	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/checkout"
	"github.com/hermosa/pos-api/internal/customer"
	"github.com/hermosa/pos-api/internal/discount"
	"github.com/hermosa/pos-api/internal/events"
	"github.com/hermosa/pos-api/internal/sales"
	"github.com/hermosa/pos-api/internal/stores"
)

const register = "register-1"

type fixture struct {
	checkout *checkout.Service
	cart     *cart.Service
	catalog  *catalog.Service
	custs    *customer.Service
	sales    *sales.Service
	log      *events.MemoryLog
	store    stores.Store
	oil      catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := catalog.NewService()
	oils, err := cat.CreateCategory(catalog.Category{Name: "Oils"})
	require.NoError(t, err)

	price := decimal.RequireFromString("49.99")
	oil, err := cat.CreateProduct(catalog.Product{
		Name:          "CBD Oil 10%",
		CategoryID:    oils.ID,
		Price:         &price,
		StockQuantity: decimal.NewFromInt(25),
		VATRate:       decimal.NewFromInt(20),
	})
	require.NoError(t, err)

	storeSvc := stores.NewService()
	store, err := storeSvc.Create(stores.Store{Name: "Hermosa Lyon", Address: "12 rue de la Ré"})
	require.NoError(t, err)

	log := &events.MemoryLog{}
	f := &fixture{
		cart:    cart.NewService(cat),
		catalog: cat,
		custs:   customer.NewService(),
		sales:   sales.NewService(),
		log:     log,
		store:   store,
		oil:     oil,
	}
	f.checkout = &checkout.Service{
		Cart:      f.cart,
		Catalog:   cat,
		Customers: f.custs,
		Stores:    storeSvc,
		Sales:     f.sales,
		Events:    &events.Bus{Log: log},
		Now:       func() time.Time { return time.Date(2025, 2, 14, 11, 30, 0, 0, time.UTC) },
	}
	return f
}

func (f *fixture) addOil(t *testing.T, qty int64) {
	t.Helper()
	_, err := f.cart.Add(register, cart.AddInput{ProductID: f.oil.ID, Quantity: decimal.NewFromInt(qty)})
	require.NoError(t, err)
}

func cash() sales.Payment {
	return sales.Payment{Method: sales.PaymentCash}
}

func split(cashAmt, cardAmt string) sales.Payment {
	c := decimal.RequireFromString(cashAmt)
	d := decimal.RequireFromString(cardAmt)
	return sales.Payment{Method: sales.PaymentSplit, CashAmount: &c, CardAmount: &d}
}

func TestCheckoutBuildsImmutableRecord(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 2)

	rec, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID: f.store.ID,
		Payment: cash(),
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, rec.ID)
	require.Equal(t, "Hermosa Lyon", rec.StoreName)
	require.True(t, rec.Subtotal.Equal(decimal.RequireFromString("99.98")))
	require.True(t, rec.Total.Equal(decimal.RequireFromString("99.98")))
	require.True(t, rec.TotalVAT.Equal(decimal.RequireFromString("19.996")))

	// cart is cleared, stock decremented
	require.Empty(t, f.cart.Lines(register))
	p, err := f.catalog.GetProduct(f.oil.ID)
	require.NoError(t, err)
	require.True(t, p.StockQuantity.Equal(decimal.NewFromInt(23)))

	// history holds its own copy
	got, err := f.sales.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
	require.Len(t, got.Items, 1)
}

func TestCheckoutSnapshotSurvivesCartReuse(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 1)

	rec, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID: f.store.ID,
		Payment: cash(),
	})
	require.NoError(t, err)

	// the register immediately starts a new cart; the recorded sale must
	// not notice
	f.addOil(t, 3)
	got, err := f.sales.Get(rec.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.True(t, got.Items[0].Quantity.Equal(decimal.NewFromInt(1)))
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID: f.store.ID,
		Payment: cash(),
	})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
}

func TestSplitPaymentEpsilon(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 2) // total 99.98

	// one cent short of the total is accepted
	rec, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID: f.store.ID,
		Payment: split("60.00", "39.97"),
	})
	require.NoError(t, err)
	require.Equal(t, sales.PaymentSplit, rec.Payment.Method)
}

func TestSplitPaymentMismatchRejected(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 2) // total 99.98

	_, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID: f.store.ID,
		Payment: split("60.00", "39.96"), // off by 0.02
	})
	require.ErrorIs(t, err, checkout.ErrPaymentMismatch)

	// nothing was committed
	require.Len(t, f.cart.Lines(register), 1)
	require.Empty(t, f.sales.List())
	p, err := f.catalog.GetProduct(f.oil.ID)
	require.NoError(t, err)
	require.True(t, p.StockQuantity.Equal(decimal.NewFromInt(25)))
}

func TestSplitPaymentRequiresBothAmounts(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 1)

	c := decimal.RequireFromString("49.99")
	_, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID: f.store.ID,
		Payment: sales.Payment{Method: sales.PaymentSplit, CashAmount: &c},
	})
	require.ErrorIs(t, err, checkout.ErrInvalidPayment)
}

func TestOrderDiscountAppliedAfterItemDiscounts(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 2) // subtotal 99.98

	// 10 off the line first, then 10% off the remaining 89.98
	fixed := discount.Spec{Kind: discount.KindFixed, Value: decimal.NewFromInt(10)}
	_, err := f.cart.ApplyDiscount(register, f.oil.ID, fixed)
	require.NoError(t, err)

	pct := discount.Spec{Kind: discount.KindPercentage, Value: decimal.NewFromInt(10)}
	rec, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID:       f.store.ID,
		Payment:       cash(),
		OrderDiscount: &pct,
	})
	require.NoError(t, err)
	require.True(t, rec.ItemDiscounts.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, rec.OrderDiscount)
	require.True(t, rec.OrderDiscount.Amount.Equal(decimal.RequireFromString("8.998")))
	require.True(t, rec.Total.Equal(decimal.RequireFromString("80.982")))
}

func TestCheckoutRecordsCustomerPurchase(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 1)

	cust, err := f.custs.Create(customer.Customer{FirstName: "Ada", LastName: "Martin", Email: "ada@example.com"})
	require.NoError(t, err)

	rec, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID:    f.store.ID,
		CustomerID: &cust.ID,
		Payment:    cash(),
	})
	require.NoError(t, err)
	require.Equal(t, "Ada Martin", rec.CustomerName)

	got, err := f.custs.Get(cust.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalPurchases)
	require.Equal(t, rec.Date, *got.LastPurchase)
}

func TestCheckoutRejectsOversell(t *testing.T) {
	f := newFixture(t)

	// two registers race for the last units
	_, err := f.cart.Add(register, cart.AddInput{ProductID: f.oil.ID, Quantity: decimal.NewFromInt(20)})
	require.NoError(t, err)
	_, err = f.cart.Add("register-2", cart.AddInput{ProductID: f.oil.ID, Quantity: decimal.NewFromInt(10)})
	require.NoError(t, err)

	_, err = f.checkout.Checkout(context.Background(), register, checkout.Input{StoreID: f.store.ID, Payment: cash()})
	require.NoError(t, err)

	_, err = f.checkout.Checkout(context.Background(), "register-2", checkout.Input{StoreID: f.store.ID, Payment: cash()})
	require.ErrorIs(t, err, catalog.ErrInsufficientStock)

	// losing register keeps its cart, no phantom sale recorded
	require.Len(t, f.cart.Lines("register-2"), 1)
	require.Len(t, f.sales.List(), 1)
}

func TestCheckoutEmitsSaleCreated(t *testing.T) {
	f := newFixture(t)
	f.addOil(t, 1)

	rec, err := f.checkout.Checkout(context.Background(), register, checkout.Input{
		StoreID: f.store.ID,
		Payment: cash(),
	})
	require.NoError(t, err)

	evs := f.log.Events()
	require.Len(t, evs, 1)
	require.Equal(t, events.TopicSaleCreated, evs[0].Topic)
	require.Equal(t, rec.ID, evs[0].AggregateID)
}
