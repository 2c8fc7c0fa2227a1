package coupon

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validator checks a coupon against a priced cart and customer identity and
// computes the discount. Validation never mutates usage counters; it is an
// advisory preview of what redemption would do.
type Validator struct {
	coupons Repository
	ledger  UsageLedger
	orders  OrderHistory
}

// NewValidator creates a Validator with the required collaborators.
func NewValidator(coupons Repository, ledger UsageLedger, orders OrderHistory) *Validator {
	return &Validator{coupons: coupons, ledger: ledger, orders: orders}
}

// Validate evaluates the rules in fixed order, failing fast: the first
// violated rule is the reason the caller sees. On success it returns the
// coupon summary and the clamped, whole-unit discount amount.
func (v *Validator) Validate(ctx context.Context, code string, cart Cart, customerID string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrMissingCode
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !cart.Subtotal.IsPositive() {
		return nil, ErrInvalidSubtotal
	}

	c, err := v.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := v.checkRules(ctx, c, cart, customerID); err != nil {
		return nil, err
	}

	return buildResult(c, cart)
}

// checkRules runs the ordered eligibility rules shared by validation and
// redemption. Rule order is part of the contract: expiry and minimum spend
// run before first-order, usage caps run after all three.
func (v *Validator) checkRules(ctx context.Context, c *Coupon, cart Cart, customerID string) error {
	if c.IsExpired {
		return ErrExpired
	}
	if cart.Subtotal.LessThan(c.MinimumSpend) {
		return ErrBelowMinimumSpend
	}
	if c.IsFirstOrder {
		count, err := v.orders.CompletedOrderCount(ctx, customerID)
		if err != nil {
			return errors.Wrap(err, "count prior orders")
		}
		if count > 0 {
			return ErrNotFirstOrder
		}
	}
	if !c.IsUnlimited {
		if c.TotalUsage >= c.UsagePerCoupon {
			return ErrCouponExhausted
		}
		if c.UsagePerCustomer > 0 {
			used, err := v.ledger.GetUsage(ctx, c.ID, customerID)
			if err != nil {
				return errors.Wrap(err, "read usage ledger")
			}
			if used >= c.UsagePerCustomer {
				return ErrCustomerLimitReached
			}
		}
	}
	return nil
}

// buildResult computes the eligible subtotal and the clamped discount.
func buildResult(c *Coupon, cart Cart) (*Result, error) {
	eligible := eligibleSubtotal(c, cart)
	if !eligible.IsPositive() {
		return nil, ErrNotApplicableToCart
	}

	var raw decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		raw = eligible.Mul(c.Amount).Div(hundred)
	case DiscountFixed:
		raw = decimal.Min(c.Amount, eligible)
	default:
		return nil, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}

	// Clamp to [0, cart subtotal], then round half-up to whole units.
	amount := decimal.Min(raw, cart.Subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	amount = amount.Round(0)

	return &Result{
		Coupon:           c.summary(),
		DiscountAmount:   amount,
		EligibleSubtotal: eligible,
	}, nil
}

// eligibleSubtotal is the portion of the cart the coupon may discount. With
// a product allow-list only matching line totals count; otherwise the whole
// precomputed subtotal does.
func eligibleSubtotal(c *Coupon, cart Cart) decimal.Decimal {
	if c.ApplyToAllProducts {
		return cart.Subtotal
	}

	allowed := make(map[string]struct{}, len(c.EligibleItems))
	for _, id := range c.EligibleItems {
		allowed[id] = struct{}{}
	}

	sum := decimal.Zero
	for _, item := range cart.Items {
		if _, ok := allowed[item.ProductID]; !ok {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		sum = sum.Add(item.UnitPrice.Mul(qty))
	}
	return sum
}
