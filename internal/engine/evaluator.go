package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/webbangiay/voucher-service/internal/models"
)

// ErrMalformedVoucher marks a voucher record that fails structural
// validation. It is a real error, distinct from any eligibility reason:
// a voucher that "doesn't apply" is an outcome, a voucher that cannot be
// interpreted is a defect.
var ErrMalformedVoucher = errors.New("malformed voucher")

var hundred = decimal.NewFromInt(100)

// Evaluator holds the discount rules for vouchers. It is pure and
// stateless: every method maps its inputs to a result with no side effects
// and no clock or I/O of its own, so concurrent use needs no coordination.
type Evaluator struct {
	// places is the currency's minor-unit precision used when rounding
	// computed discounts (0 for VND, 2 for USD).
	places int32
}

func New(places int32) *Evaluator {
	return &Evaluator{places: places}
}

// NormalizeCode maps user-entered codes to their canonical form. Codes are
// matched case-insensitively by convention.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateRecord checks that a voucher record is interpretable. Callers
// must treat a non-nil result as an internal error, never as "not eligible".
func (e *Evaluator) ValidateRecord(v *models.Voucher) error {
	if v.Code == "" {
		return fmt.Errorf("%w: empty code", ErrMalformedVoucher)
	}

	switch v.DiscountType {
	case models.DiscountPercentage:
		if v.DiscountValue.IsNegative() || v.DiscountValue.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage %s outside [0,100]", ErrMalformedVoucher, v.DiscountValue)
		}
	case models.DiscountFixed:
		if !v.DiscountValue.IsPositive() {
			return fmt.Errorf("%w: fixed discount %s must be positive", ErrMalformedVoucher, v.DiscountValue)
		}
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrMalformedVoucher, v.DiscountType)
	}

	if v.MaxDiscount != nil && v.MaxDiscount.IsNegative() {
		return fmt.Errorf("%w: negative max discount", ErrMalformedVoucher)
	}
	if v.MinOrderValue != nil && v.MinOrderValue.IsNegative() {
		return fmt.Errorf("%w: negative min order value", ErrMalformedVoucher)
	}
	if v.StartDate.After(v.EndDate) {
		return fmt.Errorf("%w: start date after end date", ErrMalformedVoucher)
	}
	if v.UsageLimit < 0 || v.UsedCount < 0 {
		return fmt.Errorf("%w: negative usage counter", ErrMalformedVoucher)
	}

	switch v.ConditionType {
	case models.ConditionAllCustomers, models.ConditionFirstOrder:
	case models.ConditionTotalPurchased, models.ConditionOrderValue:
		if v.ConditionValue == nil {
			return fmt.Errorf("%w: condition %s requires a threshold", ErrMalformedVoucher, v.ConditionType)
		}
		if v.ConditionValue.IsNegative() {
			return fmt.Errorf("%w: negative condition threshold", ErrMalformedVoucher)
		}
	case models.ConditionSpecificDate:
		if v.ConditionDate == nil {
			return fmt.Errorf("%w: condition %s requires a date", ErrMalformedVoucher, v.ConditionType)
		}
	default:
		return fmt.Errorf("%w: unknown condition type %q", ErrMalformedVoucher, v.ConditionType)
	}

	return nil
}

// CheckEligibility runs the ordered eligibility checks and short-circuits on
// the first failure. The order is part of the contract: callers rely on the
// returned reason to tell the user the most fundamental obstacle first.
func (e *Evaluator) CheckEligibility(v *models.Voucher, ec models.EvaluationContext) models.EligibilityResult {
	if !v.IsActive {
		return models.Ineligible(models.ReasonInactive)
	}
	if !withinWindow(ec.Now, v.StartDate, v.EndDate) {
		return models.Ineligible(models.ReasonOutOfDateRange)
	}
	if v.UsageLimitReached() {
		return models.Ineligible(models.ReasonUsageLimitReached)
	}
	if v.MinOrderValue != nil && ec.OrderValue.LessThan(*v.MinOrderValue) {
		return models.Ineligible(models.ReasonBelowMinOrderValue)
	}

	switch v.ConditionType {
	case models.ConditionAllCustomers:
		// unconditional
	case models.ConditionFirstOrder:
		if ec.Guest() {
			return models.Ineligible(models.ReasonGuestNotEligible)
		}
		if ec.Facts.HasCompletedOrder {
			return models.Ineligible(models.ReasonNotFirstOrder)
		}
	case models.ConditionTotalPurchased:
		if ec.Guest() {
			return models.Ineligible(models.ReasonGuestNotEligible)
		}
		if ec.Facts.TotalPurchased.LessThan(*v.ConditionValue) {
			return models.Ineligible(models.ReasonInsufficientPurchaseHistory)
		}
	case models.ConditionOrderValue:
		if ec.OrderValue.LessThan(*v.ConditionValue) {
			return models.Ineligible(models.ReasonOrderValueTooLow)
		}
	case models.ConditionSpecificDate:
		if !sameDay(ec.Now, *v.ConditionDate) {
			return models.Ineligible(models.ReasonWrongDate)
		}
	}

	// One redemption per customer: a returning customer who already used
	// this voucher cannot use it again.
	if !ec.Guest() && ec.Facts.UsedThisVoucher {
		return models.Ineligible(models.ReasonAlreadyUsed)
	}

	return models.Eligible()
}

// CalculateDiscount computes the discount an already-eligible voucher yields
// for the given order value. The result is clamped to the order value (a
// voucher never produces a negative payable total) and rounded half-up to
// the configured minor-unit precision.
func (e *Evaluator) CalculateDiscount(v *models.Voucher, orderValue decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch v.DiscountType {
	case models.DiscountPercentage:
		discount = orderValue.Mul(v.DiscountValue).Div(hundred)
		if v.MaxDiscount != nil && discount.GreaterThan(*v.MaxDiscount) {
			discount = *v.MaxDiscount
		}
	case models.DiscountFixed:
		discount = v.DiscountValue
	}

	if discount.GreaterThan(orderValue) {
		discount = orderValue
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return discount.Round(e.places)
}

// SortOffers orders offers best-first: descending discount, ties broken by
// ascending code so the ordering is deterministic for a given input set.
func SortOffers(offers []models.Offer) {
	sort.Slice(offers, func(i, j int) bool {
		if c := offers[i].DiscountAmount.Cmp(offers[j].DiscountAmount); c != 0 {
			return c > 0
		}
		return offers[i].Voucher.Code < offers[j].Voucher.Code
	})
}

// withinWindow reports whether now falls inside the [start, end] calendar
// window, inclusive on both ends: a voucher ending 2024-12-31 is usable
// through 23:59:59 of that day.
func withinWindow(now, start, end time.Time) bool {
	d := dateOf(now)
	return !d.Before(dateOf(start)) && !d.After(dateOf(end))
}

func sameDay(a, b time.Time) bool {
	return dateOf(a).Equal(dateOf(b))
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
