package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type ConditionType string

const (
	ConditionAllCustomers   ConditionType = "all_customers"
	ConditionFirstOrder     ConditionType = "first_order"
	ConditionTotalPurchased ConditionType = "total_purchased"
	ConditionOrderValue     ConditionType = "order_value"
	ConditionSpecificDate   ConditionType = "specific_date"
)

// Voucher is a discount code with eligibility conditions and a usage cap.
// ConditionValue carries the threshold for total_purchased / order_value
// conditions; ConditionDate carries the target day for specific_date.
// StartDate and EndDate are calendar dates; the validity window is inclusive
// on both ends.
type Voucher struct {
	ID             int64            `json:"voucher_id"`
	Code           string           `json:"code"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	DiscountType   DiscountType     `json:"discount_type"`
	DiscountValue  decimal.Decimal  `json:"discount_value"`
	MaxDiscount    *decimal.Decimal `json:"max_discount,omitempty"`
	MinOrderValue  *decimal.Decimal `json:"min_order_value,omitempty"`
	ConditionType  ConditionType    `json:"condition_type"`
	ConditionValue *decimal.Decimal `json:"condition_value,omitempty"`
	ConditionDate  *time.Time       `json:"condition_date,omitempty"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        time.Time        `json:"end_date"`
	UsageLimit     int              `json:"usage_limit"`
	UsedCount      int              `json:"used_count"`
	IsActive       bool             `json:"is_active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// UsageLimitReached reports whether the voucher is exhausted. A limit of
// zero means unlimited use.
func (v *Voucher) UsageLimitReached() bool {
	return v.UsageLimit > 0 && v.UsedCount >= v.UsageLimit
}
