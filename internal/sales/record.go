package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/discount"
)

// PaymentMethod enumerates how a sale was settled.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentSplit PaymentMethod = "split"
)

// Payment captures how the customer paid. For split payments both amounts
// are present and must sum to the order total within the payment epsilon.
type Payment struct {
	Method     PaymentMethod    `json:"method"`
	CashAmount *decimal.Decimal `json:"cashAmount,omitempty"`
	CardAmount *decimal.Decimal `json:"cardAmount,omitempty"`
}

// Item is a line captured into a sale at checkout time.
type Item struct {
	ProductID   uuid.UUID         `json:"productId"`
	ProductName string            `json:"productName"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	VATRate     decimal.Decimal   `json:"vatRate"`
	VATAmount   decimal.Decimal   `json:"vatAmount"`
	Discount    *discount.Applied `json:"discount,omitempty"`
	UnitLabel   string            `json:"unitLabel,omitempty"`
}

// Record is the immutable snapshot produced by checkout. It is created
// exactly once per sale, mutated only by the refund transition, and never
// deleted.
type Record struct {
	ID            uuid.UUID         `json:"id"`
	StoreID       uuid.UUID         `json:"storeId"`
	StoreName     string            `json:"storeName"`
	Date          time.Time         `json:"date"`
	CustomerID    *uuid.UUID        `json:"customerId,omitempty"`
	CustomerName  string            `json:"customerName,omitempty"`
	Payment       Payment           `json:"payment"`
	Items         []Item            `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	ItemDiscounts decimal.Decimal   `json:"itemDiscounts"`
	OrderDiscount *discount.Applied `json:"totalDiscount,omitempty"`
	TotalVAT      decimal.Decimal   `json:"totalVat"`
	Total         decimal.Decimal   `json:"total"`
	Refunded      bool              `json:"refunded,omitempty"`
	RefundDate    *time.Time        `json:"refundDate,omitempty"`
	RefundReason  string            `json:"refundReason,omitempty"`
}

// Clone returns a deep copy so callers can never alias stored history.
func (r Record) Clone() Record {
	items := make([]Item, len(r.Items))
	copy(items, r.Items)
	for i := range items {
		if items[i].Discount != nil {
			d := *items[i].Discount
			items[i].Discount = &d
		}
	}
	r.Items = items
	if r.OrderDiscount != nil {
		d := *r.OrderDiscount
		r.OrderDiscount = &d
	}
	if r.CustomerID != nil {
		id := *r.CustomerID
		r.CustomerID = &id
	}
	if r.RefundDate != nil {
		ts := *r.RefundDate
		r.RefundDate = &ts
	}
	if r.Payment.CashAmount != nil {
		v := *r.Payment.CashAmount
		r.Payment.CashAmount = &v
	}
	if r.Payment.CardAmount != nil {
		v := *r.Payment.CardAmount
		r.Payment.CardAmount = &v
	}
	return r
}
