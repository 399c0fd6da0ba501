package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/webbangiay/voucher-service/internal/cache"
	"github.com/webbangiay/voucher-service/internal/engine"
	"github.com/webbangiay/voucher-service/internal/models"
	"github.com/webbangiay/voucher-service/internal/repository"
)

// VoucherRequest is the admin create/update payload. Dates are calendar
// days in 2006-01-02 form.
type VoucherRequest struct {
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	DiscountType   string           `json:"discount_type"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrderValue  *decimal.Decimal `json:"min_order_value,omitempty"`
	ConditionType  string           `json:"condition_type"`
	ConditionValue *decimal.Decimal `json:"condition_value,omitempty"`
	ConditionDate  string           `json:"condition_date,omitempty"`
	StartDate      string           `json:"start_date"`
	EndDate        string           `json:"end_date"`
	UsageLimit     int              `json:"usage_limit"`
	IsActive       bool             `json:"is_active"`
}

func (req *VoucherRequest) toModel() (*models.Voucher, error) {
	start, err := time.Parse(time.DateOnly, req.StartDate)
	if err != nil {
		return nil, errors.New("invalid start_date; use YYYY-MM-DD")
	}
	end, err := time.Parse(time.DateOnly, req.EndDate)
	if err != nil {
		return nil, errors.New("invalid end_date; use YYYY-MM-DD")
	}

	var conditionDate *time.Time
	if req.ConditionDate != "" {
		d, err := time.Parse(time.DateOnly, req.ConditionDate)
		if err != nil {
			return nil, errors.New("invalid condition_date; use YYYY-MM-DD")
		}
		conditionDate = &d
	}

	return &models.Voucher{
		Code:           engine.NormalizeCode(req.Code),
		Name:           req.Name,
		Description:    req.Description,
		DiscountType:   models.DiscountType(req.DiscountType),
		DiscountValue:  req.DiscountValue,
		MaxDiscount:    req.MaxDiscount,
		MinOrderValue:  req.MinOrderValue,
		ConditionType:  models.ConditionType(req.ConditionType),
		ConditionValue: req.ConditionValue,
		ConditionDate:  conditionDate,
		StartDate:      start,
		EndDate:        end,
		UsageLimit:     req.UsageLimit,
		IsActive:       req.IsActive,
	}, nil
}

type UsageHistoryResponse struct {
	Usages        []models.VoucherUsage `json:"usages"`
	TotalDiscount decimal.Decimal       `json:"total_discount"`
}

// AdminHandler owns the voucher back-office: CRUD, the kill switch and
// redemption history. Every mutation purges the read cache so public
// lookups never serve stale definitions past the TTL.
type AdminHandler struct {
	vouchers *repository.VoucherRepo
	usage    *repository.UsageRepo
	eval     *engine.Evaluator
	cache    *cache.VoucherCache
}

func NewAdminHandler(vouchers *repository.VoucherRepo, usage *repository.UsageRepo, eval *engine.Evaluator, c *cache.VoucherCache) *AdminHandler {
	return &AdminHandler{
		vouchers: vouchers,
		usage:    usage,
		eval:     eval,
		cache:    c,
	}
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.vouchers.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed_list_vouchers")
		return
	}
	if vouchers == nil {
		vouchers = []models.Voucher{}
	}
	writeJSON(w, http.StatusOK, vouchers)
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	v, err := h.vouchers.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed_get_voucher")
		return
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "voucher_not_found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	v, ok := h.decodeVoucher(w, r)
	if !ok {
		return
	}

	if err := h.vouchers.Create(r.Context(), v); err != nil {
		writeError(w, http.StatusInternalServerError, "failed_create_voucher")
		return
	}

	h.cache.Purge()
	writeJSON(w, http.StatusCreated, v)
}

func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, ok := h.decodeVoucher(w, r)
	if !ok {
		return
	}
	v.ID = id

	if err := h.vouchers.Update(r.Context(), v); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "voucher_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed_update_voucher")
		return
	}

	h.cache.Purge()
	writeJSON(w, http.StatusOK, v)
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.vouchers.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "voucher_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed_delete_voucher")
		return
	}

	h.cache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	v, err := h.vouchers.ToggleActive(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "voucher_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed_toggle_voucher")
		return
	}

	h.cache.Purge()
	writeJSON(w, http.StatusOK, v)
}

func (h *AdminHandler) UsageHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	usages, err := h.usage.ListByVoucher(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed_list_usage")
		return
	}
	total, err := h.usage.TotalDiscountByVoucher(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed_list_usage")
		return
	}
	if usages == nil {
		usages = []models.VoucherUsage{}
	}

	writeJSON(w, http.StatusOK, UsageHistoryResponse{Usages: usages, TotalDiscount: total})
}

func (h *AdminHandler) CustomerHistory(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customer id required")
		return
	}

	usages, err := h.usage.ListByCustomer(r.Context(), customerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed_list_usage")
		return
	}
	if usages == nil {
		usages = []models.VoucherUsage{}
	}
	writeJSON(w, http.StatusOK, usages)
}

// decodeVoucher parses and structurally validates the admin payload. A
// record the evaluator rejects is a client error here, before it ever
// reaches storage.
func (h *AdminHandler) decodeVoucher(w http.ResponseWriter, r *http.Request) (*models.Voucher, bool) {
	var req VoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return nil, false
	}

	v, err := req.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := h.eval.ValidateRecord(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return v, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid voucher id")
		return 0, false
	}
	return id, true
}
