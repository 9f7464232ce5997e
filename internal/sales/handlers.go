package sales

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hermosa/pos-api/internal/common"
	"github.com/hermosa/pos-api/internal/events"
)

// Handler wires the sale history to HTTP.
type Handler struct {
	Svc      *Service
	Events   *events.Bus
	Validate *validator.Validate
}

// List returns the full sale history, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records := h.Svc.List()
	// history is stored oldest first; the registers want the opposite
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": records})
}

// Get returns a single sale.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sale id", nil)
		return
	}
	rec, err := h.Svc.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
}

type refundPayload struct {
	Reason string `json:"reason" validate:"required"`
}

// Refund marks a sale refunded. The transition is one-way and requires a
// reason; stock is not restored.
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid sale id", nil)
		return
	}
	var payload refundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		return
	}
	rec, err := h.Svc.Refund(id, payload.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.Events != nil {
		// best effort; the refund is already committed
		_, _ = h.Events.Emit(r.Context(), events.TopicSaleRefunded, rec.ID, map[string]any{
			"saleId": rec.ID.String(),
			"reason": rec.RefundReason,
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rec})
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
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrAlreadyRefunded):
		common.JSONError(w, http.StatusConflict, "ALREADY_REFUNDED", err.Error(), nil)
	case errors.Is(err, ErrReasonRequired):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
