package coupon

import (
	"context"
)

// Redeemer commits a coupon use at order confirmation. Validation is
// advisory; the redemption transaction's guards are authoritative, so a
// cart that previewed as valid can still lose the race and come back
// ErrCouponExhausted or ErrCustomerLimitReached here.
type Redeemer struct {
	validator *Validator
	store     RedemptionStore
}

// NewRedeemer creates a Redeemer sharing the validator's rule set.
func NewRedeemer(validator *Validator, store RedemptionStore) *Redeemer {
	return &Redeemer{validator: validator, store: store}
}

// Redeem re-runs the full validation and then commits both usage counters
// atomically. On success the coupon's total usage has increased by exactly
// one; on any failure neither counter has moved.
func (r *Redeemer) Redeem(ctx context.Context, code string, cart Cart, customerID string) (*Result, error) {
	res, err := r.validator.Validate(ctx, code, cart, customerID)
	if err != nil {
		return nil, err
	}

	if err := r.store.Redeem(ctx, res.Coupon.ID, customerID); err != nil {
		return nil, err
	}

	return res, nil
}
