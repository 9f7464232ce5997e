package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/cart"
	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/common"
	"github.com/hermosa/pos-api/internal/customer"
	"github.com/hermosa/pos-api/internal/discount"
	"github.com/hermosa/pos-api/internal/sales"
	"github.com/hermosa/pos-api/internal/stores"
)

// Handler wires checkout to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type paymentPayload struct {
	Method     sales.PaymentMethod `json:"method" validate:"required,oneof=cash card split"`
	CashAmount *decimal.Decimal    `json:"cashAmount"`
	CardAmount *decimal.Decimal    `json:"cardAmount"`
}

type discountPayload struct {
	Type  discount.Kind   `json:"type" validate:"required"`
	Value decimal.Decimal `json:"value" validate:"required"`
}

type checkoutPayload struct {
	StoreID       uuid.UUID        `json:"storeId" validate:"required"`
	CustomerID    *uuid.UUID       `json:"customerId"`
	Payment       paymentPayload   `json:"payment" validate:"required"`
	OrderDiscount *discountPayload `json:"orderDiscount"`
}

// Checkout turns the register's cart into a recorded sale.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	in := Input{
		StoreID:    payload.StoreID,
		CustomerID: payload.CustomerID,
		Payment: sales.Payment{
			Method:     payload.Payment.Method,
			CashAmount: payload.Payment.CashAmount,
			CardAmount: payload.Payment.CardAmount,
		},
	}
	if payload.OrderDiscount != nil {
		in.OrderDiscount = &discount.Spec{
			Kind:  payload.OrderDiscount.Type,
			Value: payload.OrderDiscount.Value,
		}
	}
	rec, err := h.Svc.Checkout(r.Context(), cart.RegisterFromRequest(r), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": rec})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, ErrPaymentMismatch):
		common.JSONError(w, http.StatusUnprocessableEntity, "PAYMENT_MISMATCH", err.Error(), nil)
	case errors.Is(err, ErrInvalidPayment):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, catalog.ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, stores.ErrNotFound), errors.Is(err, customer.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, discount.ErrInvalidKind),
		errors.Is(err, discount.ErrNonPositiveValue),
		errors.Is(err, discount.ErrPercentageOutOfRange),
		errors.Is(err, discount.ErrExceedsBase):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
