package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/webbangiay/voucher-service/internal/engine"
	"github.com/webbangiay/voucher-service/internal/models"
	"github.com/webbangiay/voucher-service/internal/service"
)

// --- Request / Response DTOs ---

type ValidateRequest struct {
	Code       string          `json:"code"`
	CustomerID string          `json:"customer_id,omitempty"`
	OrderValue decimal.Decimal `json:"order_value"`
}

type RedeemRequest struct {
	Code       string          `json:"code"`
	CustomerID string          `json:"customer_id"`
	OrderID    string          `json:"order_id"`
	OrderValue decimal.Decimal `json:"order_value"`
}

type AvailableResponse struct {
	Offers []models.Offer `json:"offers"`
}

// --- Handler struct & constructor ---

type VoucherHandler struct {
	svc *service.VoucherService
}

func NewVoucherHandler(svc *service.VoucherService) *VoucherHandler {
	return &VoucherHandler{svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError normalizes every failure payload to a single tagged shape.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// --- Handlers ---

// Validate handles POST /vouchers/validate. Eligibility failures come back
// as 200 with valid=false and a reason; only lookup and data errors are
// reported as HTTP errors.
func (h *VoucherHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	if req.OrderValue.IsNegative() {
		writeError(w, http.StatusBadRequest, "order_value must be non-negative")
		return
	}

	res, err := h.svc.ApplyVoucherByCode(r.Context(), req.Code, req.CustomerID, req.OrderValue, time.Now().UTC())
	if err != nil {
		if errors.Is(err, engine.ErrMalformedVoucher) {
			writeError(w, http.StatusInternalServerError, "malformed_voucher")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup_failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Available handles GET /vouchers/available?customer_id=&order_value=.
func (h *VoucherHandler) Available(w http.ResponseWriter, r *http.Request) {
	customerID := r.URL.Query().Get("customer_id")

	orderValue := decimal.Zero
	if raw := r.URL.Query().Get("order_value"); raw != "" {
		var err error
		orderValue, err = decimal.NewFromString(raw)
		if err != nil || orderValue.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid order_value")
			return
		}
	}

	offers, err := h.svc.ListAvailableVouchers(r.Context(), customerID, orderValue, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed")
		return
	}
	if offers == nil {
		offers = []models.Offer{}
	}

	writeJSON(w, http.StatusOK, AvailableResponse{Offers: offers})
}

// Apply handles POST /vouchers/apply: the order-placement hook that consumes
// one use of the voucher. Invoked once per successfully placed order.
func (h *VoucherHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if req.Code == "" || req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "code and customer_id required")
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order_id")
		return
	}
	if req.OrderValue.IsNegative() {
		writeError(w, http.StatusBadRequest, "order_value must be non-negative")
		return
	}

	usage, err := h.svc.Redeem(r.Context(), req.Code, req.CustomerID, orderID, req.OrderValue, time.Now().UTC())
	if err != nil {
		var notEligible *service.NotEligibleError
		switch {
		case errors.Is(err, service.ErrVoucherNotFound):
			writeError(w, http.StatusNotFound, "voucher_not_found")
		case errors.As(err, &notEligible):
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":  "not_eligible",
				"reason": string(notEligible.Reason),
			})
		case errors.Is(err, engine.ErrMalformedVoucher):
			writeError(w, http.StatusInternalServerError, "malformed_voucher")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, usage)
}
