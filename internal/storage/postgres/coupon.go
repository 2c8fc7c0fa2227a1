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
	getCouponByCodeSQL = `SELECT id, code, title, discount_type, amount, minimum_spend,
		is_expired, is_first_order, is_unlimited,
		usage_per_coupon, usage_per_customer, total_usage,
		apply_to_all_products, eligible_items, status
		FROM coupons WHERE UPPER(code) = UPPER($1) AND status = 'enabled'`

	// The WHERE guard makes check-and-increment one atomic statement: two
	// concurrent redemptions of a coupon with one use left cannot both
	// match the row.
	consumeUseSQL = `UPDATE coupons SET total_usage = total_usage + 1
		WHERE id = $1 AND (is_unlimited OR total_usage < usage_per_coupon)`

	upsertCouponSQL = `INSERT INTO coupons (
			id, code, title, discount_type, amount, minimum_spend,
			is_expired, is_first_order, is_unlimited,
			usage_per_coupon, usage_per_customer,
			apply_to_all_products, eligible_items, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			discount_type = EXCLUDED.discount_type,
			amount = EXCLUDED.amount,
			minimum_spend = EXCLUDED.minimum_spend,
			is_expired = EXCLUDED.is_expired,
			is_first_order = EXCLUDED.is_first_order,
			is_unlimited = EXCLUDED.is_unlimited,
			usage_per_coupon = EXCLUDED.usage_per_coupon,
			usage_per_customer = EXCLUDED.usage_per_customer,
			apply_to_all_products = EXCLUDED.apply_to_all_products,
			eligible_items = EXCLUDED.eligible_items,
			status = EXCLUDED.status`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up an enabled coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching enabled coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// ConsumeUse increments total_usage while the coupon has headroom, as one
// guarded statement. Returns false when the cap was already reached.
func (r *CouponRepository) ConsumeUse(ctx context.Context, couponID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, consumeUseSQL, couponID)
	if err != nil {
		return false, fmt.Errorf("consuming use for coupon %q: %w", couponID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Upsert inserts or refreshes a coupon definition. Used by seeding and
// administration flows; never touches total_usage.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, c.Title, string(c.DiscountType), c.Amount, c.MinimumSpend,
		c.IsExpired, c.IsFirstOrder, c.IsUnlimited,
		c.UsagePerCoupon, c.UsagePerCustomer,
		c.ApplyToAllProducts, c.EligibleItems, string(c.Status),
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		status       string
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.Title, &discountType, &c.Amount, &c.MinimumSpend,
		&c.IsExpired, &c.IsFirstOrder, &c.IsUnlimited,
		&c.UsagePerCoupon, &c.UsagePerCustomer, &c.TotalUsage,
		&c.ApplyToAllProducts, &c.EligibleItems, &status,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.Status = coupon.Status(status)
	return c, err
}
