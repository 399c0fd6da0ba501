package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webbangiay/voucher-service/internal/cache"
	"github.com/webbangiay/voucher-service/internal/engine"
	"github.com/webbangiay/voucher-service/internal/models"
	"github.com/webbangiay/voucher-service/internal/service"
)

type stubVouchers struct {
	byCode map[string]models.Voucher
}

func (s *stubVouchers) FindByCode(_ context.Context, code string) (*models.Voucher, error) {
	v, ok := s.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := v
	return &cp, nil
}

func (s *stubVouchers) ListActive(context.Context) ([]models.Voucher, error) {
	vouchers := make([]models.Voucher, 0, len(s.byCode))
	for _, v := range s.byCode {
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

func (s *stubVouchers) GetForUpdate(context.Context, *sql.Tx, string) (*models.Voucher, error) {
	return nil, nil
}

func (s *stubVouchers) IncrementUsedCount(context.Context, *sql.Tx, int64) error { return nil }

type stubUsage struct{}

func (stubUsage) HasCustomerUsed(context.Context, int64, string) (bool, error) { return false, nil }
func (stubUsage) HasCustomerUsedTx(context.Context, *sql.Tx, int64, string) (bool, error) {
	return false, nil
}
func (stubUsage) Insert(context.Context, *sql.Tx, *models.VoucherUsage) error { return nil }

type stubHistory struct{}

func (stubHistory) HasCompletedAnyOrder(context.Context, string) (bool, error) { return false, nil }
func (stubHistory) TotalPurchased(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func newTestHandler(vouchers map[string]models.Voucher) *VoucherHandler {
	svc := service.New(nil, &stubVouchers{byCode: vouchers}, stubUsage{}, stubHistory{},
		cache.NewVoucherCache(time.Minute), engine.New(0))
	return NewVoucherHandler(svc)
}

// evergreenVoucher is valid far into the future so tests are not pinned to
// a run date; the handlers read the wall clock.
func evergreenVoucher(id int64, code string) models.Voucher {
	return models.Voucher{
		ID:            id,
		Code:          code,
		Name:          code,
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.RequireFromString("10"),
		ConditionType: models.ConditionAllCustomers,
		StartDate:     time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
	}
}

func TestValidate_Success(t *testing.T) {
	h := newTestHandler(map[string]models.Voucher{"WELCOME10": evergreenVoucher(1, "WELCOME10")})

	body := `{"code":"welcome10","customer_id":"cust-1","order_value":"100000"}`
	req := httptest.NewRequest(http.MethodPost, "/vouchers/validate", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Validate(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var res models.ApplicationResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	require.True(t, res.Valid)
	assert.True(t, res.DiscountAmount.Equal(decimal.RequireFromString("10000")), "got %s", res.DiscountAmount)
}

func TestValidate_CodeNotFound(t *testing.T) {
	h := newTestHandler(map[string]models.Voucher{})

	body := `{"code":"NOPE","customer_id":"cust-1","order_value":"100000"}`
	req := httptest.NewRequest(http.MethodPost, "/vouchers/validate", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Validate(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var res models.ApplicationResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.False(t, res.Valid)
	assert.Equal(t, models.ReasonCodeNotFound, res.Reason)
}

func TestValidate_BadRequest(t *testing.T) {
	h := newTestHandler(map[string]models.Voucher{})

	req := httptest.NewRequest(http.MethodPost, "/vouchers/validate", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	h.Validate(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAvailable_OrdersBestFirst(t *testing.T) {
	big := evergreenVoucher(1, "BIG")
	big.DiscountValue = decimal.RequireFromString("20")
	small := evergreenVoucher(2, "SMALL")

	h := newTestHandler(map[string]models.Voucher{"BIG": big, "SMALL": small})

	req := httptest.NewRequest(http.MethodGet, "/vouchers/available?customer_id=cust-1&order_value=100000", nil)
	rr := httptest.NewRecorder()

	h.Available(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var res AvailableResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	require.Len(t, res.Offers, 2)
	assert.Equal(t, "BIG", res.Offers[0].Voucher.Code)
	assert.Equal(t, "SMALL", res.Offers[1].Voucher.Code)
}

func TestAvailable_InvalidOrderValue(t *testing.T) {
	h := newTestHandler(map[string]models.Voucher{})

	req := httptest.NewRequest(http.MethodGet, "/vouchers/available?order_value=abc", nil)
	rr := httptest.NewRecorder()

	h.Available(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApply_InvalidOrderID(t *testing.T) {
	h := newTestHandler(map[string]models.Voucher{})

	body := `{"code":"X","customer_id":"cust-1","order_id":"not-a-uuid","order_value":"100000"}`
	req := httptest.NewRequest(http.MethodPost, "/vouchers/apply", strings.NewReader(body))
	rr := httptest.NewRecorder()

	h.Apply(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
