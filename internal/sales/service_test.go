package sales_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hermosa/pos-api/internal/sales"
)

func newRecord() sales.Record {
	return sales.Record{
		ID:        uuid.New(),
		StoreID:   uuid.New(),
		StoreName: "Hermosa Lyon",
		Date:      time.Date(2025, 2, 14, 11, 30, 0, 0, time.UTC),
		Payment:   sales.Payment{Method: sales.PaymentCash},
		Items: []sales.Item{{
			ProductID:   uuid.New(),
			ProductName: "CBD Oil 10%",
			Quantity:    decimal.NewFromInt(1),
			Price:       decimal.RequireFromString("49.99"),
			VATRate:     decimal.NewFromInt(20),
			VATAmount:   decimal.RequireFromString("9.998"),
		}},
		Subtotal: decimal.RequireFromString("49.99"),
		TotalVAT: decimal.RequireFromString("9.998"),
		Total:    decimal.RequireFromString("49.99"),
	}
}

func TestAppendRejectsDuplicateID(t *testing.T) {
	svc := sales.NewService()
	rec := newRecord()
	require.NoError(t, svc.Append(rec))
	require.ErrorIs(t, svc.Append(rec), sales.ErrDuplicateID)
}

func TestListReturnsCopies(t *testing.T) {
	svc := sales.NewService()
	rec := newRecord()
	require.NoError(t, svc.Append(rec))

	listed := svc.List()
	require.Len(t, listed, 1)
	listed[0].Items[0].ProductName = "mutated"
	listed[0].StoreName = "mutated"

	fresh, err := svc.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, "CBD Oil 10%", fresh.Items[0].ProductName)
	require.Equal(t, "Hermosa Lyon", fresh.StoreName)
}

func TestRefundTransition(t *testing.T) {
	now := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)
	svc := sales.NewService()
	svc.Now = func() time.Time { return now }

	rec := newRecord()
	require.NoError(t, svc.Append(rec))

	refunded, err := svc.Refund(rec.ID, "damaged packaging")
	require.NoError(t, err)
	require.True(t, refunded.Refunded)
	require.Equal(t, now, *refunded.RefundDate)
	require.Equal(t, "damaged packaging", refunded.RefundReason)
}

func TestRefundIsOneWay(t *testing.T) {
	first := time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)
	svc := sales.NewService()
	svc.Now = func() time.Time { return first }

	rec := newRecord()
	require.NoError(t, svc.Append(rec))
	_, err := svc.Refund(rec.ID, "damaged packaging")
	require.NoError(t, err)

	svc.Now = func() time.Time { return first.Add(24 * time.Hour) }
	_, err = svc.Refund(rec.ID, "changed my mind")
	require.ErrorIs(t, err, sales.ErrAlreadyRefunded)

	// the first refund's fields survive the rejected second attempt
	got, err := svc.Get(rec.ID)
	require.NoError(t, err)
	require.Equal(t, first, *got.RefundDate)
	require.Equal(t, "damaged packaging", got.RefundReason)
}

func TestRefundRequiresReason(t *testing.T) {
	svc := sales.NewService()
	rec := newRecord()
	require.NoError(t, svc.Append(rec))

	_, err := svc.Refund(rec.ID, "   ")
	require.ErrorIs(t, err, sales.ErrReasonRequired)

	got, err := svc.Get(rec.ID)
	require.NoError(t, err)
	require.False(t, got.Refunded)
}

func TestRefundUnknownSale(t *testing.T) {
	svc := sales.NewService()
	_, err := svc.Refund(uuid.New(), "whatever")
	require.ErrorIs(t, err, sales.ErrNotFound)
}
