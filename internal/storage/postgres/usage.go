package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karatline/storefront/internal/domain/coupon"
)

const (
	getUsageSQL = `SELECT usage_count FROM coupon_usage
		WHERE coupon_id = $1 AND customer_id = $2`

	// Conditional upsert: the DO UPDATE WHERE clause keeps the increment
	// below cap in the same statement, so concurrent redemptions cannot
	// both pass the guard.
	incrementIfBelowSQL = `INSERT INTO coupon_usage (coupon_id, customer_id, usage_count, last_used)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (coupon_id, customer_id) DO UPDATE
		SET usage_count = coupon_usage.usage_count + 1, last_used = NOW()
		WHERE coupon_usage.usage_count < $3`

	redeemConsumeSQL = `UPDATE coupons SET total_usage = total_usage + 1
		WHERE id = $1 AND (is_unlimited OR total_usage < usage_per_coupon)
		RETURNING is_unlimited, usage_per_customer`
)

var (
	_ coupon.UsageLedger     = (*UsageRepository)(nil)
	_ coupon.RedemptionStore = (*UsageRepository)(nil)
)

// UsageRepository implements the usage ledger and the redemption
// transaction backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// GetUsage returns the customer's redemption count for the coupon, zero
// when no record exists yet.
func (r *UsageRepository) GetUsage(ctx context.Context, couponID, customerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, getUsageSQL, couponID, customerID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading usage for coupon %q: %w", couponID, err)
	}
	return count, nil
}

// IncrementIfBelow bumps the customer's count only while it is below cap,
// in a single conditional statement. Returns false when the cap was hit.
func (r *UsageRepository) IncrementIfBelow(ctx context.Context, couponID, customerID string, cap int) (bool, error) {
	tag, err := r.pool.Exec(ctx, incrementIfBelowSQL, couponID, customerID, cap)
	if err != nil {
		return false, fmt.Errorf("incrementing usage for coupon %q: %w", couponID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Redeem commits both counters in one transaction: the coupon-level
// consume, then the per-customer increment when the coupon caps it. Either
// guard losing the race rolls the whole redemption back, so a failed
// redemption never moves a counter.
func (r *UsageRepository) Redeem(ctx context.Context, couponID, customerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning redemption for coupon %q: %w", couponID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		isUnlimited      bool
		usagePerCustomer int
	)
	err = tx.QueryRow(ctx, redeemConsumeSQL, couponID).Scan(&isUnlimited, &usagePerCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrCouponExhausted
		}
		return fmt.Errorf("consuming use for coupon %q: %w", couponID, err)
	}

	if !isUnlimited && usagePerCustomer > 0 {
		tag, err := tx.Exec(ctx, incrementIfBelowSQL, couponID, customerID, usagePerCustomer)
		if err != nil {
			return fmt.Errorf("incrementing usage for coupon %q: %w", couponID, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrCustomerLimitReached
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing redemption for coupon %q: %w", couponID, err)
	}
	return nil
}
