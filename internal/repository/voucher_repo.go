package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/webbangiay/voucher-service/internal/models"
)

// ErrNotFound is returned by mutating operations that target a missing row.
// Read paths signal absence with a nil record instead.
var ErrNotFound = errors.New("not found")

const voucherColumns = `voucher_id, code, name, description, discount_type, discount_value,
	max_discount, min_order_value, condition_type, condition_value, condition_date,
	start_date, end_date, usage_limit, used_count, is_active, created_at, updated_at`

type VoucherRepo struct {
	db *sql.DB
}

func NewVoucherRepo(db *sql.DB) *VoucherRepo {
	return &VoucherRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoucher(row rowScanner) (*models.Voucher, error) {
	var (
		v              models.Voucher
		description    sql.NullString
		maxDiscount    decimal.NullDecimal
		minOrderValue  decimal.NullDecimal
		conditionValue decimal.NullDecimal
		conditionDate  sql.NullTime
	)

	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.Name,
		&description,
		&v.DiscountType,
		&v.DiscountValue,
		&maxDiscount,
		&minOrderValue,
		&v.ConditionType,
		&conditionValue,
		&conditionDate,
		&v.StartDate,
		&v.EndDate,
		&v.UsageLimit,
		&v.UsedCount,
		&v.IsActive,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.Description = description.String
	if maxDiscount.Valid {
		v.MaxDiscount = &maxDiscount.Decimal
	}
	if minOrderValue.Valid {
		v.MinOrderValue = &minOrderValue.Decimal
	}
	if conditionValue.Valid {
		v.ConditionValue = &conditionValue.Decimal
	}
	if conditionDate.Valid {
		v.ConditionDate = &conditionDate.Time
	}

	return &v, nil
}

// FindByCode looks a voucher up by its canonical code. The match is
// case-insensitive; returns (nil, nil) when no voucher carries the code.
func (r *VoucherRepo) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE UPPER(code) = UPPER($1)`

	v, err := scanVoucher(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find voucher by code: %w", err)
	}
	return v, nil
}

func (r *VoucherRepo) GetByID(ctx context.Context, id int64) (*models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE voucher_id = $1`

	v, err := scanVoucher(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get voucher %d: %w", id, err)
	}
	return v, nil
}

// ListActive returns all active vouchers, newest first.
func (r *VoucherRepo) ListActive(ctx context.Context) ([]models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE is_active = TRUE ORDER BY voucher_id DESC`
	return r.list(ctx, query)
}

func (r *VoucherRepo) ListAll(ctx context.Context) ([]models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers ORDER BY voucher_id DESC`
	return r.list(ctx, query)
}

func (r *VoucherRepo) list(ctx context.Context, query string) ([]models.Voucher, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []models.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		vouchers = append(vouchers, *v)
	}
	return vouchers, rows.Err()
}

func (r *VoucherRepo) Create(ctx context.Context, v *models.Voucher) error {
	query := `
		INSERT INTO vouchers
		(code, name, description, discount_type, discount_value, max_discount,
		 min_order_value, condition_type, condition_value, condition_date,
		 start_date, end_date, usage_limit, used_count, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,0,$14,NOW(),NOW())
		RETURNING voucher_id, used_count, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		v.Code,
		v.Name,
		nullString(v.Description),
		v.DiscountType,
		v.DiscountValue,
		nullDecimal(v.MaxDiscount),
		nullDecimal(v.MinOrderValue),
		v.ConditionType,
		nullDecimal(v.ConditionValue),
		nullTime(v.ConditionDate),
		v.StartDate,
		v.EndDate,
		v.UsageLimit,
		v.IsActive,
	).Scan(&v.ID, &v.UsedCount, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create voucher: %w", err)
	}
	return nil
}

func (r *VoucherRepo) Update(ctx context.Context, v *models.Voucher) error {
	query := `
		UPDATE vouchers SET
			code = $2, name = $3, description = $4, discount_type = $5,
			discount_value = $6, max_discount = $7, min_order_value = $8,
			condition_type = $9, condition_value = $10, condition_date = $11,
			start_date = $12, end_date = $13, usage_limit = $14, is_active = $15,
			updated_at = NOW()
		WHERE voucher_id = $1
		RETURNING used_count, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		v.ID,
		v.Code,
		v.Name,
		nullString(v.Description),
		v.DiscountType,
		v.DiscountValue,
		nullDecimal(v.MaxDiscount),
		nullDecimal(v.MinOrderValue),
		v.ConditionType,
		nullDecimal(v.ConditionValue),
		nullTime(v.ConditionDate),
		v.StartDate,
		v.EndDate,
		v.UsageLimit,
		v.IsActive,
	).Scan(&v.UsedCount, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update voucher %d: %w", v.ID, err)
	}
	return nil
}

func (r *VoucherRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vouchers WHERE voucher_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete voucher %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleActive flips the manual kill switch and returns the updated record.
func (r *VoucherRepo) ToggleActive(ctx context.Context, id int64) (*models.Voucher, error) {
	query := `
		UPDATE vouchers SET is_active = NOT is_active, updated_at = NOW()
		WHERE voucher_id = $1
		RETURNING ` + voucherColumns

	v, err := scanVoucher(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("toggle voucher %d: %w", id, err)
	}
	return v, nil
}

// GetForUpdate locks the voucher row for the duration of the transaction.
// Redemption relies on this lock to serialize used_count increments.
func (r *VoucherRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, code string) (*models.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE UPPER(code) = UPPER($1) FOR UPDATE`

	v, err := scanVoucher(tx.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock voucher %q: %w", code, err)
	}
	return v, nil
}

// IncrementUsedCount bumps the redemption counter inside the caller's
// transaction. Must only run while the row is locked via GetForUpdate.
func (r *VoucherRepo) IncrementUsedCount(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE vouchers SET used_count = used_count + 1, updated_at = NOW() WHERE voucher_id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment used count for voucher %d: %w", id, err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
