package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderHistoryRepo answers the customer-history questions eligibility
// depends on. The orders table is owned by the order backend; this repo
// only reads the slice of it that voucher conditions need.
type OrderHistoryRepo struct {
	db *sql.DB
}

func NewOrderHistoryRepo(db *sql.DB) *OrderHistoryRepo {
	return &OrderHistoryRepo{db: db}
}

func (r *OrderHistoryRepo) HasCompletedAnyOrder(ctx context.Context, customerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM orders WHERE customer_id = $1 AND status = 'completed')`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, customerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order history: %w", err)
	}
	return exists, nil
}

func (r *OrderHistoryRepo) TotalPurchased(ctx context.Context, customerID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(total_price), 0) FROM orders WHERE customer_id = $1 AND status = 'completed'`

	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, customerID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum purchases: %w", err)
	}
	return total, nil
}
