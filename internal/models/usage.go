package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VoucherUsage records one redemption of a voucher against a placed order.
type VoucherUsage struct {
	ID             int64           `json:"usage_id"`
	VoucherID      int64           `json:"voucher_id"`
	CustomerID     string          `json:"customer_id"`
	OrderID        uuid.UUID       `json:"order_id"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	UsedAt         time.Time       `json:"used_at"`
}
