package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webbangiay/voucher-service/internal/cache"
	"github.com/webbangiay/voucher-service/internal/engine"
	"github.com/webbangiay/voucher-service/internal/models"
	"github.com/webbangiay/voucher-service/pkg/log"
)

// ErrVoucherNotFound is returned by Redeem when the code matches nothing.
// The read paths report the same condition as ReasonCodeNotFound instead,
// because for them an unknown code is an expected outcome.
var ErrVoucherNotFound = errors.New("voucher not found")

// NotEligibleError carries the eligibility reason a redemption failed on.
type NotEligibleError struct {
	Reason models.Reason
}

func (e *NotEligibleError) Error() string {
	return "voucher not eligible: " + string(e.Reason)
}

// VoucherSource is the voucher lookup surface the service consumes.
type VoucherSource interface {
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	ListActive(ctx context.Context) ([]models.Voucher, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, code string) (*models.Voucher, error)
	IncrementUsedCount(ctx context.Context, tx *sql.Tx, id int64) error
}

type UsageSource interface {
	Insert(ctx context.Context, tx *sql.Tx, u *models.VoucherUsage) error
	HasCustomerUsed(ctx context.Context, voucherID int64, customerID string) (bool, error)
	HasCustomerUsedTx(ctx context.Context, tx *sql.Tx, voucherID int64, customerID string) (bool, error)
}

// HistorySource answers customer order-history questions. It is owned by
// the order backend; the service only reads it.
type HistorySource interface {
	HasCompletedAnyOrder(ctx context.Context, customerID string) (bool, error)
	TotalPurchased(ctx context.Context, customerID string) (decimal.Decimal, error)
}

type VoucherService struct {
	db       *sql.DB
	vouchers VoucherSource
	usage    UsageSource
	history  HistorySource
	cache    *cache.VoucherCache
	eval     *engine.Evaluator
}

func New(db *sql.DB, vouchers VoucherSource, usage UsageSource, history HistorySource, c *cache.VoucherCache, eval *engine.Evaluator) *VoucherService {
	return &VoucherService{
		db:       db,
		vouchers: vouchers,
		usage:    usage,
		history:  history,
		cache:    c,
		eval:     eval,
	}
}

// ApplyVoucherByCode resolves a code to a voucher, checks eligibility and
// computes the discount. It has no side effects and is safe to call on
// every order-value change; used_count moves only through Redeem.
func (s *VoucherService) ApplyVoucherByCode(ctx context.Context, code, customerID string, orderValue decimal.Decimal, now time.Time) (models.ApplicationResult, error) {
	code = engine.NormalizeCode(code)

	v, err := s.lookup(ctx, code)
	if err != nil {
		return models.ApplicationResult{}, err
	}
	if v == nil {
		return models.ApplicationResult{Valid: false, Reason: models.ReasonCodeNotFound}, nil
	}

	if err := s.eval.ValidateRecord(v); err != nil {
		return models.ApplicationResult{}, err
	}

	facts, err := s.resolveFacts(ctx, customerID, v.ID)
	if err != nil {
		return models.ApplicationResult{}, err
	}

	ec := models.EvaluationContext{
		CustomerID: customerID,
		OrderValue: orderValue,
		Now:        now,
		Facts:      facts,
	}

	if res := s.eval.CheckEligibility(v, ec); !res.Valid {
		return models.ApplicationResult{Valid: false, Reason: res.Reason}, nil
	}

	return models.ApplicationResult{
		Valid:          true,
		Voucher:        v,
		DiscountAmount: s.eval.CalculateDiscount(v, orderValue),
	}, nil
}

// ListAvailableVouchers filters the active catalog down to vouchers the
// customer can use right now, best discount first. Malformed records are
// skipped and logged rather than failing the whole listing.
func (s *VoucherService) ListAvailableVouchers(ctx context.Context, customerID string, orderValue decimal.Decimal, now time.Time) ([]models.Offer, error) {
	vouchers, err := s.vouchers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active vouchers: %w", err)
	}

	shared, err := s.sharedFacts(ctx, customerID)
	if err != nil {
		return nil, err
	}

	// Per-voucher evaluation fans out because each non-guest candidate
	// needs its own usage lookup. Results land in fixed slots, so the
	// final order depends only on the sort below.
	results := make([]*models.Offer, len(vouchers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i := range vouchers {
		i := i
		g.Go(func() error {
			v := vouchers[i]

			if err := s.eval.ValidateRecord(&v); err != nil {
				log.Warn("skipping malformed voucher", zap.String("code", v.Code), zap.Error(err))
				return nil
			}

			ec := models.EvaluationContext{
				CustomerID: customerID,
				OrderValue: orderValue,
				Now:        now,
				Facts:      shared,
			}

			if res := s.eval.CheckEligibility(&v, ec); !res.Valid {
				return nil
			}

			if customerID != "" {
				used, err := s.usage.HasCustomerUsed(gctx, v.ID, customerID)
				if err != nil {
					return err
				}
				if used {
					return nil
				}
			}

			results[i] = &models.Offer{
				Voucher:        v,
				DiscountAmount: s.eval.CalculateDiscount(&v, orderValue),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	offers := make([]models.Offer, 0, len(results))
	for _, o := range results {
		if o != nil {
			offers = append(offers, *o)
		}
	}
	engine.SortOffers(offers)

	return offers, nil
}

// Redeem consumes one use of a voucher for a placed order. The voucher row
// is locked for the whole transaction so two concurrent checkouts cannot
// both get past the usage limit; this is the only path that mutates
// used_count.
func (s *VoucherService) Redeem(ctx context.Context, code, customerID string, orderID uuid.UUID, orderValue decimal.Decimal, now time.Time) (*models.VoucherUsage, error) {
	code = engine.NormalizeCode(code)

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	v, err := s.vouchers.GetForUpdate(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVoucherNotFound
	}

	if err := s.eval.ValidateRecord(v); err != nil {
		return nil, err
	}

	facts, err := s.sharedFacts(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if customerID != "" {
		used, err := s.usage.HasCustomerUsedTx(ctx, tx, v.ID, customerID)
		if err != nil {
			return nil, err
		}
		facts.UsedThisVoucher = used
	}

	ec := models.EvaluationContext{
		CustomerID: customerID,
		OrderValue: orderValue,
		Now:        now,
		Facts:      facts,
	}

	if res := s.eval.CheckEligibility(v, ec); !res.Valid {
		return nil, &NotEligibleError{Reason: res.Reason}
	}

	usage := &models.VoucherUsage{
		VoucherID:      v.ID,
		CustomerID:     customerID,
		OrderID:        orderID,
		DiscountAmount: s.eval.CalculateDiscount(v, orderValue),
	}

	if err := s.usage.Insert(ctx, tx, usage); err != nil {
		return nil, err
	}
	if err := s.vouchers.IncrementUsedCount(ctx, tx, v.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}
	committed = true

	s.cache.Invalidate(code)

	log.Info("voucher redeemed",
		zap.String("code", code),
		zap.String("customer_id", customerID),
		zap.String("order_id", orderID.String()),
		zap.String("discount", usage.DiscountAmount.String()),
	)

	return usage, nil
}

func (s *VoucherService) lookup(ctx context.Context, code string) (*models.Voucher, error) {
	if v, ok := s.cache.Get(code); ok {
		return v, nil
	}

	v, err := s.vouchers.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup voucher %q: %w", code, err)
	}
	if v != nil {
		s.cache.Set(code, *v)
	}
	return v, nil
}

// sharedFacts resolves the history facts that hold for every voucher in one
// evaluation: first-order status and lifetime purchases. Guests have none.
func (s *VoucherService) sharedFacts(ctx context.Context, customerID string) (models.CustomerFacts, error) {
	if customerID == "" {
		return models.CustomerFacts{}, nil
	}

	hasOrders, err := s.history.HasCompletedAnyOrder(ctx, customerID)
	if err != nil {
		return models.CustomerFacts{}, fmt.Errorf("resolve order history: %w", err)
	}
	total, err := s.history.TotalPurchased(ctx, customerID)
	if err != nil {
		return models.CustomerFacts{}, fmt.Errorf("resolve total purchased: %w", err)
	}

	return models.CustomerFacts{
		HasCompletedOrder: hasOrders,
		TotalPurchased:    total,
	}, nil
}

func (s *VoucherService) resolveFacts(ctx context.Context, customerID string, voucherID int64) (models.CustomerFacts, error) {
	facts, err := s.sharedFacts(ctx, customerID)
	if err != nil {
		return models.CustomerFacts{}, err
	}
	if customerID != "" {
		used, err := s.usage.HasCustomerUsed(ctx, voucherID, customerID)
		if err != nil {
			return models.CustomerFacts{}, fmt.Errorf("resolve voucher usage: %w", err)
		}
		facts.UsedThisVoucher = used
	}
	return facts, nil
}
