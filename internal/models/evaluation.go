package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reason identifies why a voucher cannot currently be used. Eligibility
// failures are expected outcomes, not errors; they travel as values.
type Reason string

const (
	ReasonInactive                    Reason = "INACTIVE"
	ReasonOutOfDateRange              Reason = "OUT_OF_DATE_RANGE"
	ReasonUsageLimitReached           Reason = "USAGE_LIMIT_REACHED"
	ReasonBelowMinOrderValue          Reason = "BELOW_MIN_ORDER_VALUE"
	ReasonGuestNotEligible            Reason = "GUEST_NOT_ELIGIBLE"
	ReasonNotFirstOrder               Reason = "NOT_FIRST_ORDER"
	ReasonInsufficientPurchaseHistory Reason = "INSUFFICIENT_PURCHASE_HISTORY"
	ReasonOrderValueTooLow            Reason = "ORDER_VALUE_TOO_LOW"
	ReasonWrongDate                   Reason = "WRONG_DATE"
	ReasonAlreadyUsed                 Reason = "ALREADY_USED"
	ReasonCodeNotFound                Reason = "CODE_NOT_FOUND"
)

// CustomerFacts are the order-history lookups an evaluation depends on.
// They are resolved by the caller before evaluation so the evaluator itself
// stays free of I/O.
type CustomerFacts struct {
	HasCompletedOrder bool
	TotalPurchased    decimal.Decimal
	UsedThisVoucher   bool
}

// EvaluationContext is everything a single evaluation call needs. An empty
// CustomerID means guest checkout. Now is the injected clock; evaluations
// never read the wall clock themselves.
type EvaluationContext struct {
	CustomerID string
	OrderValue decimal.Decimal
	Now        time.Time
	Facts      CustomerFacts
}

// Guest reports whether the context belongs to an unauthenticated customer.
func (c EvaluationContext) Guest() bool { return c.CustomerID == "" }

type EligibilityResult struct {
	Valid  bool   `json:"valid"`
	Reason Reason `json:"reason,omitempty"`
}

func Eligible() EligibilityResult { return EligibilityResult{Valid: true} }

func Ineligible(r Reason) EligibilityResult { return EligibilityResult{Valid: false, Reason: r} }

// ApplicationResult is the outcome of applying a voucher code to an order
// value: either a failure reason or the voucher plus its computed discount.
type ApplicationResult struct {
	Valid          bool            `json:"valid"`
	Reason         Reason          `json:"reason,omitempty"`
	Voucher        *Voucher        `json:"voucher,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Offer pairs an eligible voucher with the discount it would yield for the
// order value it was evaluated against.
type Offer struct {
	Voucher        Voucher         `json:"voucher"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}
