package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webbangiay/voucher-service/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// baseVoucher is an active, unconditional 10% voucher valid through 2024.
func baseVoucher() models.Voucher {
	return models.Voucher{
		ID:            1,
		Code:          "WELCOME10",
		Name:          "Welcome 10%",
		DiscountType:  models.DiscountPercentage,
		DiscountValue: dec("10"),
		ConditionType: models.ConditionAllCustomers,
		StartDate:     date(2024, time.January, 1),
		EndDate:       date(2024, time.December, 31),
		UsageLimit:    100,
		UsedCount:     0,
		IsActive:      true,
	}
}

func baseContext() models.EvaluationContext {
	return models.EvaluationContext{
		CustomerID: "cust-1",
		OrderValue: dec("100000"),
		Now:        date(2024, time.June, 15),
	}
}

func TestCheckEligibility_Inactive(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.IsActive = false

	res := e.CheckEligibility(&v, baseContext())
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonInactive, res.Reason)
}

func TestCheckEligibility_DateWindow(t *testing.T) {
	e := New(0)
	v := baseVoucher()

	cases := []struct {
		name   string
		now    time.Time
		valid  bool
		reason models.Reason
	}{
		{"before start", date(2023, time.December, 31), false, models.ReasonOutOfDateRange},
		{"first day", date(2024, time.January, 1), true, ""},
		{"last second of last day", time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC), true, ""},
		{"day after end", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), false, models.ReasonOutOfDateRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ec := baseContext()
			ec.Now = tc.now

			res := e.CheckEligibility(&v, ec)
			assert.Equal(t, tc.valid, res.Valid)
			assert.Equal(t, tc.reason, res.Reason)
		})
	}
}

func TestCheckEligibility_UsageLimit(t *testing.T) {
	e := New(0)

	v := baseVoucher()
	v.UsageLimit = 100
	v.UsedCount = 99
	require.True(t, e.CheckEligibility(&v, baseContext()).Valid)

	v.UsedCount = 100
	res := e.CheckEligibility(&v, baseContext())
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonUsageLimitReached, res.Reason)

	// zero limit means unlimited
	v.UsageLimit = 0
	v.UsedCount = 100000
	assert.True(t, e.CheckEligibility(&v, baseContext()).Valid)
}

func TestCheckEligibility_MinOrderValue(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.MinOrderValue = decp("200000")

	ec := baseContext()
	ec.OrderValue = dec("199999")
	res := e.CheckEligibility(&v, ec)
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonBelowMinOrderValue, res.Reason)

	ec.OrderValue = dec("200000")
	assert.True(t, e.CheckEligibility(&v, ec).Valid)
}

func TestCheckEligibility_FirstOrder(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.ConditionType = models.ConditionFirstOrder

	t.Run("guest never eligible", func(t *testing.T) {
		ec := baseContext()
		ec.CustomerID = ""

		res := e.CheckEligibility(&v, ec)
		require.False(t, res.Valid)
		assert.Equal(t, models.ReasonGuestNotEligible, res.Reason)
	})

	t.Run("returning customer rejected", func(t *testing.T) {
		ec := baseContext()
		ec.Facts.HasCompletedOrder = true

		res := e.CheckEligibility(&v, ec)
		require.False(t, res.Valid)
		assert.Equal(t, models.ReasonNotFirstOrder, res.Reason)
	})

	t.Run("fresh customer eligible", func(t *testing.T) {
		assert.True(t, e.CheckEligibility(&v, baseContext()).Valid)
	})
}

func TestCheckEligibility_TotalPurchased(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.ConditionType = models.ConditionTotalPurchased
	v.ConditionValue = decp("500000")

	ec := baseContext()
	ec.Facts.TotalPurchased = dec("499999")
	res := e.CheckEligibility(&v, ec)
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonInsufficientPurchaseHistory, res.Reason)

	ec.Facts.TotalPurchased = dec("500000")
	assert.True(t, e.CheckEligibility(&v, ec).Valid)

	ec.CustomerID = ""
	res = e.CheckEligibility(&v, ec)
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonGuestNotEligible, res.Reason)
}

func TestCheckEligibility_OrderValueCondition(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.ConditionType = models.ConditionOrderValue
	v.ConditionValue = decp("300000")

	ec := baseContext()
	ec.OrderValue = dec("299999")
	res := e.CheckEligibility(&v, ec)
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonOrderValueTooLow, res.Reason)

	ec.OrderValue = dec("300000")
	assert.True(t, e.CheckEligibility(&v, ec).Valid)
}

// min_order_value and an order_value condition are independent checks that
// must both pass; the min-order check runs first.
func TestCheckEligibility_MinOrderAndConditionAreAdditive(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.MinOrderValue = decp("400000")
	v.ConditionType = models.ConditionOrderValue
	v.ConditionValue = decp("300000")

	ec := baseContext()
	ec.OrderValue = dec("350000")
	res := e.CheckEligibility(&v, ec)
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonBelowMinOrderValue, res.Reason)

	ec.OrderValue = dec("400000")
	assert.True(t, e.CheckEligibility(&v, ec).Valid)
}

func TestCheckEligibility_SpecificDate(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.ConditionType = models.ConditionSpecificDate
	target := date(2024, time.June, 15)
	v.ConditionDate = &target

	ec := baseContext()
	ec.Now = time.Date(2024, time.June, 15, 18, 30, 0, 0, time.UTC)
	assert.True(t, e.CheckEligibility(&v, ec).Valid)

	ec.Now = date(2024, time.June, 16)
	res := e.CheckEligibility(&v, ec)
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonWrongDate, res.Reason)
}

func TestCheckEligibility_AlreadyUsed(t *testing.T) {
	e := New(0)
	v := baseVoucher()

	ec := baseContext()
	ec.Facts.UsedThisVoucher = true

	res := e.CheckEligibility(&v, ec)
	require.False(t, res.Valid)
	assert.Equal(t, models.ReasonAlreadyUsed, res.Reason)
}

func TestCheckEligibility_Deterministic(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	ec := baseContext()

	first := e.CheckEligibility(&v, ec)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, e.CheckEligibility(&v, ec))
	}
}

func TestCalculateDiscount_PercentageCap(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.DiscountValue = dec("20")
	v.MaxDiscount = decp("50000")

	got := e.CalculateDiscount(&v, dec("1000000"))
	assert.True(t, got.Equal(dec("50000")), "raw 200000 must cap to 50000, got %s", got)

	v.MaxDiscount = nil
	got = e.CalculateDiscount(&v, dec("1000000"))
	assert.True(t, got.Equal(dec("200000")), "uncapped, got %s", got)
}

func TestCalculateDiscount_FixedClampedToOrderValue(t *testing.T) {
	e := New(0)
	v := baseVoucher()
	v.DiscountType = models.DiscountFixed
	v.DiscountValue = dec("50000")

	got := e.CalculateDiscount(&v, dec("30000"))
	assert.True(t, got.Equal(dec("30000")), "fixed 50000 on order 30000 must clamp, got %s", got)
}

func TestCalculateDiscount_NeverExceedsOrderValue(t *testing.T) {
	e := New(0)

	percent := baseVoucher()
	percent.DiscountValue = dec("100")

	fixed := baseVoucher()
	fixed.DiscountType = models.DiscountFixed
	fixed.DiscountValue = dec("999999")

	for _, orderValue := range []decimal.Decimal{dec("0"), dec("1"), dec("30000"), dec("1000000")} {
		for _, v := range []models.Voucher{percent, fixed} {
			got := e.CalculateDiscount(&v, orderValue)
			assert.True(t, got.LessThanOrEqual(orderValue),
				"discount %s exceeds order value %s", got, orderValue)
			assert.False(t, got.IsNegative())
		}
	}
}

func TestCalculateDiscount_RoundsHalfUp(t *testing.T) {
	v := baseVoucher() // 10%

	// two minor-unit places: 10% of 100.05 is 10.005, rounds up to 10.01
	got := New(2).CalculateDiscount(&v, dec("100.05"))
	assert.True(t, got.Equal(dec("10.01")), "got %s", got)

	// zero places: 10% of 5 is 0.5, rounds up to 1
	got = New(0).CalculateDiscount(&v, dec("5"))
	assert.True(t, got.Equal(dec("1")), "got %s", got)
}

func TestSortOffers(t *testing.T) {
	mk := func(code, discount string) models.Offer {
		v := baseVoucher()
		v.Code = code
		return models.Offer{Voucher: v, DiscountAmount: dec(discount)}
	}

	offers := []models.Offer{
		mk("SMALL", "30000"),
		mk("BIG", "50000"),
		mk("ZULU", "30000"),
		mk("ALPHA", "30000"),
	}
	SortOffers(offers)

	codes := make([]string, len(offers))
	for i, o := range offers {
		codes[i] = o.Voucher.Code
	}
	assert.Equal(t, []string{"BIG", "ALPHA", "SMALL", "ZULU"}, codes)
}

func TestValidateRecord(t *testing.T) {
	e := New(0)

	t.Run("valid", func(t *testing.T) {
		v := baseVoucher()
		require.NoError(t, e.ValidateRecord(&v))
	})

	cases := []struct {
		name   string
		mutate func(*models.Voucher)
	}{
		{"percentage above 100", func(v *models.Voucher) { v.DiscountValue = dec("120") }},
		{"negative percentage", func(v *models.Voucher) { v.DiscountValue = dec("-5") }},
		{"zero fixed discount", func(v *models.Voucher) {
			v.DiscountType = models.DiscountFixed
			v.DiscountValue = decimal.Zero
		}},
		{"unknown discount type", func(v *models.Voucher) { v.DiscountType = "bogus" }},
		{"start after end", func(v *models.Voucher) {
			v.StartDate = date(2025, time.January, 1)
		}},
		{"negative usage limit", func(v *models.Voucher) { v.UsageLimit = -1 }},
		{"threshold condition without value", func(v *models.Voucher) {
			v.ConditionType = models.ConditionTotalPurchased
			v.ConditionValue = nil
		}},
		{"date condition without date", func(v *models.Voucher) {
			v.ConditionType = models.ConditionSpecificDate
			v.ConditionDate = nil
		}},
		{"unknown condition type", func(v *models.Voucher) { v.ConditionType = "bogus" }},
		{"empty code", func(v *models.Voucher) { v.Code = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := baseVoucher()
			tc.mutate(&v)

			err := e.ValidateRecord(&v)
			require.ErrorIs(t, err, ErrMalformedVoucher)
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SUMMER20", NormalizeCode("  summer20 "))
	assert.Equal(t, "WELCOME10", NormalizeCode("Welcome10"))
}
