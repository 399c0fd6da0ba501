package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/webbangiay/voucher-service/internal/models"
)

type UsageRepo struct {
	db *sql.DB
}

func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{db: db}
}

// Insert records a redemption inside the caller's transaction, alongside the
// used_count increment it accounts for.
func (r *UsageRepo) Insert(ctx context.Context, tx *sql.Tx, u *models.VoucherUsage) error {
	query := `
		INSERT INTO voucher_usage (voucher_id, customer_id, order_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING usage_id, used_at
	`
	err := tx.QueryRowContext(ctx, query,
		u.VoucherID,
		u.CustomerID,
		u.OrderID,
		u.DiscountAmount,
	).Scan(&u.ID, &u.UsedAt)
	if err != nil {
		return fmt.Errorf("insert voucher usage: %w", err)
	}
	return nil
}

// HasCustomerUsed reports whether the customer has already redeemed the
// voucher. Non-locking read; redemption re-checks under the row lock.
func (r *UsageRepo) HasCustomerUsed(ctx context.Context, voucherID int64, customerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM voucher_usage WHERE voucher_id = $1 AND customer_id = $2)`

	var used bool
	if err := r.db.QueryRowContext(ctx, query, voucherID, customerID).Scan(&used); err != nil {
		return false, fmt.Errorf("check voucher usage: %w", err)
	}
	return used, nil
}

// HasCustomerUsedTx is the locking-transaction variant used during
// redemption.
func (r *UsageRepo) HasCustomerUsedTx(ctx context.Context, tx *sql.Tx, voucherID int64, customerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM voucher_usage WHERE voucher_id = $1 AND customer_id = $2)`

	var used bool
	if err := tx.QueryRowContext(ctx, query, voucherID, customerID).Scan(&used); err != nil {
		return false, fmt.Errorf("check voucher usage: %w", err)
	}
	return used, nil
}

func (r *UsageRepo) ListByCustomer(ctx context.Context, customerID string) ([]models.VoucherUsage, error) {
	query := `
		SELECT usage_id, voucher_id, customer_id, order_id, discount_amount, used_at
		FROM voucher_usage
		WHERE customer_id = $1
		ORDER BY used_at DESC
	`
	return r.list(ctx, query, customerID)
}

func (r *UsageRepo) ListByVoucher(ctx context.Context, voucherID int64) ([]models.VoucherUsage, error) {
	query := `
		SELECT usage_id, voucher_id, customer_id, order_id, discount_amount, used_at
		FROM voucher_usage
		WHERE voucher_id = $1
		ORDER BY used_at DESC
	`
	return r.list(ctx, query, voucherID)
}

// TotalDiscountByVoucher sums the discount a voucher has handed out across
// all redemptions.
func (r *UsageRepo) TotalDiscountByVoucher(ctx context.Context, voucherID int64) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(discount_amount), 0) FROM voucher_usage WHERE voucher_id = $1`

	var total decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, voucherID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum voucher discounts: %w", err)
	}
	return total, nil
}

func (r *UsageRepo) list(ctx context.Context, query string, arg any) ([]models.VoucherUsage, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list voucher usage: %w", err)
	}
	defer rows.Close()

	var usages []models.VoucherUsage
	for rows.Next() {
		var u models.VoucherUsage
		if err := rows.Scan(&u.ID, &u.VoucherID, &u.CustomerID, &u.OrderID, &u.DiscountAmount, &u.UsedAt); err != nil {
			return nil, fmt.Errorf("scan voucher usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}
