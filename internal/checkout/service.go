package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hermosa/pos-api/internal/cart"
	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/customer"
	"github.com/hermosa/pos-api/internal/discount"
	"github.com/hermosa/pos-api/internal/events"
	"github.com/hermosa/pos-api/internal/money"
	"github.com/hermosa/pos-api/internal/sales"
	"github.com/hermosa/pos-api/internal/stores"
)

var (
	// ErrEmptyCart is returned when checkout runs against an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentMismatch is returned when split amounts do not sum to the total.
	ErrPaymentMismatch = errors.New("split payment does not match order total")
	// ErrInvalidPayment is returned for malformed payment info.
	ErrInvalidPayment = errors.New("invalid payment info")
)

// Input describes a checkout request for one register.
type Input struct {
	StoreID       uuid.UUID
	CustomerID    *uuid.UUID
	Payment       sales.Payment
	OrderDiscount *discount.Spec
}

// Service builds immutable sale records from cart state. It is the only
// place sale records are created.
type Service struct {
	Cart      *cart.Service
	Catalog   *catalog.Service
	Customers *customer.Service
	Stores    *stores.Service
	Sales     *sales.Service
	Events    *events.Bus
	Logger    zerolog.Logger
	Now       func() time.Time
	NewID     func() uuid.UUID
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) newID() uuid.UUID {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.New()
}

// Checkout snapshots the register's cart into a sale record and commits it:
// history append, stock decrement, cart clear, customer counters. The
// returned record is a defensive copy that later cart mutations cannot
// touch. Event emission is fire-and-forget; a notifier failure never rolls
// back a committed sale.
func (s *Service) Checkout(ctx context.Context, register string, in Input) (sales.Record, error) {
	if s == nil || s.Cart == nil || s.Catalog == nil || s.Sales == nil {
		return sales.Record{}, errors.New("checkout service not configured")
	}
	lines := s.Cart.Lines(register)
	if len(lines) == 0 {
		return sales.Record{}, ErrEmptyCart
	}

	store, err := s.Stores.Get(in.StoreID)
	if err != nil {
		return sales.Record{}, fmt.Errorf("store lookup: %w", err)
	}

	var orderDiscount *discount.Applied
	if in.OrderDiscount != nil {
		base := cart.OrderDiscountBase(lines)
		if err := in.OrderDiscount.ValidateInput(base); err != nil {
			return sales.Record{}, err
		}
		applied := discount.Apply(*in.OrderDiscount, base)
		orderDiscount = &applied
	}

	totals := cart.Aggregate(lines, orderDiscount)
	if err := validatePayment(in.Payment, totals.Total); err != nil {
		return sales.Record{}, err
	}

	var cust *customer.Customer
	if in.CustomerID != nil {
		c, err := s.Customers.Get(*in.CustomerID)
		if err != nil {
			return sales.Record{}, fmt.Errorf("customer lookup: %w", err)
		}
		cust = &c
	}

	// Reject the whole sale before committing anything if any line would
	// oversell; decrements are atomic across all lines.
	quantities := make(map[uuid.UUID]money.Quantity, len(lines))
	for _, l := range lines {
		quantities[l.ProductID] = l.Quantity
	}
	if err := s.Catalog.DecrementStock(quantities); err != nil {
		return sales.Record{}, err
	}

	rec := s.buildRecord(store, cust, in, lines, orderDiscount, totals)
	if err := s.Sales.Append(rec); err != nil {
		return sales.Record{}, err
	}
	s.Cart.Clear(register)

	if cust != nil {
		if err := s.Customers.RecordPurchase(cust.ID, rec.Date); err != nil {
			s.Logger.Error().Err(err).Str("customer_id", cust.ID.String()).Msg("record purchase")
		}
	}

	if s.Events != nil {
		payload := map[string]any{
			"saleId":  rec.ID.String(),
			"storeId": rec.StoreID.String(),
			"total":   rec.Total.String(),
		}
		if cust != nil && cust.Email != "" {
			payload["email"] = cust.Email
		}
		if _, err := s.Events.Emit(ctx, events.TopicSaleCreated, rec.ID, payload); err != nil {
			s.Logger.Error().Err(err).Str("sale_id", rec.ID.String()).Msg("emit sale.created")
		}
	}

	return rec, nil
}

func (s *Service) buildRecord(store stores.Store, cust *customer.Customer, in Input, lines []cart.Line, orderDiscount *discount.Applied, totals cart.Totals) sales.Record {
	items := make([]sales.Item, 0, len(lines))
	for _, l := range lines {
		item := sales.Item{
			ProductID:   l.ProductID,
			ProductName: l.Name,
			Quantity:    l.Quantity,
			Price:       l.Price,
			VATRate:     l.VATRate,
			VATAmount:   l.VATAmount,
			UnitLabel:   l.UnitLabel,
		}
		if l.Discount != nil {
			d := *l.Discount
			item.Discount = &d
		}
		items = append(items, item)
	}
	rec := sales.Record{
		ID:            s.newID(),
		StoreID:       store.ID,
		StoreName:     store.Name,
		Date:          s.now(),
		Payment:       in.Payment,
		Items:         items,
		Subtotal:      totals.Subtotal,
		ItemDiscounts: totals.ItemDiscounts,
		OrderDiscount: orderDiscount,
		TotalVAT:      totals.TotalVAT,
		Total:         totals.Total,
	}
	if cust != nil {
		id := cust.ID
		rec.CustomerID = &id
		rec.CustomerName = cust.FullName()
	}
	return rec
}

func validatePayment(p sales.Payment, total money.Amount) error {
	switch p.Method {
	case sales.PaymentCash, sales.PaymentCard:
		return nil
	case sales.PaymentSplit:
		if p.CashAmount == nil || p.CardAmount == nil {
			return fmt.Errorf("split payment requires cash and card amounts: %w", ErrInvalidPayment)
		}
		if p.CashAmount.IsNegative() || p.CardAmount.IsNegative() {
			return fmt.Errorf("payment amounts cannot be negative: %w", ErrInvalidPayment)
		}
		paid := p.CashAmount.Add(*p.CardAmount)
		if !money.WithinEpsilon(paid, total) {
			return fmt.Errorf("paid %s against total %s: %w", paid.StringFixed(2), total.StringFixed(2), ErrPaymentMismatch)
		}
		return nil
	default:
		return fmt.Errorf("unknown payment method %q: %w", p.Method, ErrInvalidPayment)
	}
}
