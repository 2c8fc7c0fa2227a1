package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the eligible subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed amount capped at the eligible subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Input validation errors, rejected before any rule evaluation.
var (
	ErrMissingCode     = errors.New("coupon code required")
	ErrEmptyCart       = errors.New("cart items required")
	ErrInvalidSubtotal = errors.New("subtotal must be greater than 0")
)

// Business rule rejections, one per rule, in evaluation order. Callers match
// with errors.Is; the HTTP layer maps each to a stable reason string.
var (
	ErrNotFound             = errors.New("coupon not found")
	ErrExpired              = errors.New("coupon expired")
	ErrBelowMinimumSpend    = errors.New("subtotal below minimum spend")
	ErrNotFirstOrder        = errors.New("coupon is for first orders only")
	ErrCouponExhausted      = errors.New("coupon usage limit reached")
	ErrCustomerLimitReached = errors.New("customer usage limit reached")
	ErrNotApplicableToCart  = errors.New("coupon not applicable to cart items")
)

// Reason returns the stable machine-checkable reason string for a rejection,
// or "" when the error is not a coupon rejection.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrExpired):
		return "Expired"
	case errors.Is(err, ErrBelowMinimumSpend):
		return "BelowMinimumSpend"
	case errors.Is(err, ErrNotFirstOrder):
		return "NotFirstOrder"
	case errors.Is(err, ErrCouponExhausted):
		return "CouponExhausted"
	case errors.Is(err, ErrCustomerLimitReached):
		return "CustomerLimitReached"
	case errors.Is(err, ErrNotApplicableToCart):
		return "NotApplicableToCart"
	}
	return ""
}

// Status gates whether a coupon can be looked up at all.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Coupon is a promotional coupon record as stored. It is a read-only input
// to validation; TotalUsage is only written through ConsumeUse.
type Coupon struct {
	ID           string
	Code         string
	Title        string
	DiscountType DiscountType
	Amount       decimal.Decimal
	MinimumSpend decimal.Decimal

	IsExpired    bool
	IsFirstOrder bool
	IsUnlimited  bool

	UsagePerCoupon   int
	UsagePerCustomer int
	TotalUsage       int

	ApplyToAllProducts bool
	EligibleItems      []string

	Status Status
}

// Summary is the public slice of a coupon returned on successful validation.
type Summary struct {
	ID           string
	Code         string
	Title        string
	DiscountType DiscountType
	Amount       decimal.Decimal
	MinimumSpend decimal.Decimal
}

func (c *Coupon) summary() Summary {
	return Summary{
		ID:           c.ID,
		Code:         c.Code,
		Title:        c.Title,
		DiscountType: c.DiscountType,
		Amount:       c.Amount,
		MinimumSpend: c.MinimumSpend,
	}
}

// CartItem is one priced line of the cart being validated.
type CartItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Cart is the transient priced cart a coupon is validated against. Subtotal
// is precomputed by the caller from the resolved item prices.
type Cart struct {
	Items    []CartItem
	Subtotal decimal.Decimal
}

// Result is a successful validation outcome. DiscountAmount is rounded to
// whole currency units and never exceeds the cart subtotal.
type Result struct {
	Coupon           Summary
	DiscountAmount   decimal.Decimal
	EligibleSubtotal decimal.Decimal
}

// Repository provides coupon lookups and the single controlled mutation of
// the coupon-level usage counter.
type Repository interface {
	// FindByCode resolves a code case-insensitively to an enabled coupon.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ConsumeUse atomically increments total_usage while the coupon still
	// has headroom. Returns false when the cap was already reached.
	ConsumeUse(ctx context.Context, couponID string) (bool, error)
}

// UsageLedger tracks per-(coupon, customer) redemption counts.
type UsageLedger interface {
	// GetUsage returns the customer's redemption count for the coupon,
	// zero when no record exists.
	GetUsage(ctx context.Context, couponID, customerID string) (int, error)
	// IncrementIfBelow increments the count only while it is below cap, as
	// one atomic conditional write. Returns false when the cap was reached.
	IncrementIfBelow(ctx context.Context, couponID, customerID string, cap int) (bool, error)
}

// RedemptionStore commits both usage counters in a single transaction at
// order confirmation, reading the caps from the coupon row itself. Returns
// ErrCouponExhausted or ErrCustomerLimitReached when a guard loses the
// race; neither counter moves in that case.
type RedemptionStore interface {
	Redeem(ctx context.Context, couponID, customerID string) error
}

// OrderHistory supplies the customer's completed order count for the
// first-order rule. Owned by the order subsystem.
type OrderHistory interface {
	CompletedOrderCount(ctx context.Context, customerID string) (int, error)
}
