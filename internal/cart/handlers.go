package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/common"
	"github.com/hermosa/pos-api/internal/discount"
)

// RegisterHeader carries the register identity for cart routes. Each
// register owns an isolated cart.
const RegisterHeader = "X-Register-ID"

const defaultRegister = "register-1"

// Handler wires the cart service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

// RegisterFromRequest resolves the register identity for a request, falling
// back to the single-register default. Every handler that scopes state by
// register goes through here so the default cannot drift.
func RegisterFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RegisterHeader)); id != "" {
		return id
	}
	return defaultRegister
}

type addPayload struct {
	ProductID uuid.UUID        `json:"productId" validate:"required"`
	Quantity  *decimal.Decimal `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
}

type quantityPayload struct {
	Quantity decimal.Decimal `json:"quantity"`
}

type discountPayload struct {
	Type  discount.Kind   `json:"type" validate:"required"`
	Value decimal.Decimal `json:"value" validate:"required"`
}

// Get returns the register's cart lines and totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	lines := h.Svc.Lines(RegisterFromRequest(r))
	totals := Aggregate(lines, nil)
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"items":  lines,
			"totals": totals,
		},
	})
}

// Add puts a product in the cart or grows an existing line.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var payload addPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	in := AddInput{ProductID: payload.ProductID, Price: payload.Price}
	if payload.Quantity != nil {
		// omitted quantity keeps the service's default-to-1 behaviour
		in.Quantity = *payload.Quantity
	}
	line, err := h.Svc.Add(RegisterFromRequest(r), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": line})
}

// UpdateQuantity sets a line's quantity, repricing it from the line's own
// unit price.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload quantityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	line, err := h.Svc.UpdateQuantity(RegisterFromRequest(r), productID, payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": line})
}

// Remove drops a line from the cart.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Svc.Remove(RegisterFromRequest(r), productID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyDiscount attaches a discount to a line.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload discountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	line, err := h.Svc.ApplyDiscount(RegisterFromRequest(r), productID, discount.Spec{
		Kind:  payload.Type,
		Value: payload.Value,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": line})
}

// RemoveDiscount strips a line's discount.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	line, err := h.Svc.RemoveDiscount(RegisterFromRequest(r), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": line})
}

// Clear empties the register's cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.Svc.Clear(RegisterFromRequest(r))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
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
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, catalog.ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, discount.ErrInvalidKind),
		errors.Is(err, discount.ErrNonPositiveValue),
		errors.Is(err, discount.ErrPercentageOutOfRange),
		errors.Is(err, discount.ErrExceedsBase):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
