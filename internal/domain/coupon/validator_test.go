package coupon

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	coupon *Coupon
	err    error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _ string) (*Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.coupon, nil
}

func (m *mockCouponRepo) ConsumeUse(_ context.Context, _ string) (bool, error) {
	return true, nil
}

type mockLedger struct {
	usage map[string]int
}

func (m *mockLedger) GetUsage(_ context.Context, couponID, customerID string) (int, error) {
	return m.usage[couponID+"/"+customerID], nil
}

func (m *mockLedger) IncrementIfBelow(_ context.Context, couponID, customerID string, cap int) (bool, error) {
	key := couponID + "/" + customerID
	if m.usage[key] >= cap {
		return false, nil
	}
	if m.usage == nil {
		m.usage = make(map[string]int)
	}
	m.usage[key]++
	return true, nil
}

type mockOrderHistory struct {
	counts map[string]int
}

func (m *mockOrderHistory) CompletedOrderCount(_ context.Context, customerID string) (int, error) {
	return m.counts[customerID], nil
}

func percentCoupon(amount int64) *Coupon {
	return &Coupon{
		ID:                 "c1",
		Code:               "SAVE",
		Title:              "save",
		DiscountType:       DiscountPercentage,
		Amount:             decimal.NewFromInt(amount),
		IsUnlimited:        true,
		ApplyToAllProducts: true,
		Status:             StatusEnabled,
	}
}

func cartOf(subtotal int64, items ...CartItem) Cart {
	return Cart{Items: items, Subtotal: decimal.NewFromInt(subtotal)}
}

func line(id string, qty int, price int64) CartItem {
	return CartItem{ProductID: id, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func TestValidator_InputErrors(t *testing.T) {
	v := NewValidator(&mockCouponRepo{}, &mockLedger{}, &mockOrderHistory{})

	tests := []struct {
		name    string
		code    string
		cart    Cart
		wantErr error
	}{
		{
			name:    "blank code",
			code:    "   ",
			cart:    cartOf(100, line("p1", 1, 100)),
			wantErr: ErrMissingCode,
		},
		{
			name:    "empty cart",
			code:    "SAVE",
			cart:    Cart{Subtotal: decimal.NewFromInt(100)},
			wantErr: ErrEmptyCart,
		},
		{
			name:    "zero subtotal",
			code:    "SAVE",
			cart:    Cart{Items: []CartItem{line("p1", 1, 0)}},
			wantErr: ErrInvalidSubtotal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.code, tt.cart, "cust")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidator_RuleOrder(t *testing.T) {
	// A coupon violating several rules at once must be rejected for the
	// earliest rule in the fixed order.
	c := percentCoupon(10)
	c.IsExpired = true
	c.MinimumSpend = decimal.NewFromInt(10_000)
	c.IsFirstOrder = true
	c.IsUnlimited = false
	c.UsagePerCoupon = 1
	c.TotalUsage = 1

	v := NewValidator(
		&mockCouponRepo{coupon: c},
		&mockLedger{},
		&mockOrderHistory{counts: map[string]int{"cust": 3}},
	)

	_, err := v.Validate(context.Background(), "SAVE", cartOf(100, line("p1", 1, 100)), "cust")
	assert.ErrorIs(t, err, ErrExpired)

	c.IsExpired = false
	_, err = v.Validate(context.Background(), "SAVE", cartOf(100, line("p1", 1, 100)), "cust")
	assert.ErrorIs(t, err, ErrBelowMinimumSpend)

	c.MinimumSpend = decimal.Zero
	_, err = v.Validate(context.Background(), "SAVE", cartOf(100, line("p1", 1, 100)), "cust")
	assert.ErrorIs(t, err, ErrNotFirstOrder)

	c.IsFirstOrder = false
	_, err = v.Validate(context.Background(), "SAVE", cartOf(100, line("p1", 1, 100)), "cust")
	assert.ErrorIs(t, err, ErrCouponExhausted)
}

func TestValidator_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		coupon  *Coupon
		repoErr error
		usage   map[string]int
		orders  map[string]int
		cart    Cart
		wantErr error
	}{
		{
			name:    "unknown code",
			repoErr: ErrNotFound,
			cart:    cartOf(100, line("p1", 1, 100)),
			wantErr: ErrNotFound,
		},
		{
			name: "below minimum spend",
			coupon: func() *Coupon {
				c := percentCoupon(10)
				c.MinimumSpend = decimal.NewFromInt(500)
				return c
			}(),
			cart:    cartOf(499, line("p1", 1, 499)),
			wantErr: ErrBelowMinimumSpend,
		},
		{
			name: "first-order coupon with prior orders",
			coupon: func() *Coupon {
				c := percentCoupon(10)
				c.IsFirstOrder = true
				return c
			}(),
			orders:  map[string]int{"cust": 1},
			cart:    cartOf(100, line("p1", 1, 100)),
			wantErr: ErrNotFirstOrder,
		},
		{
			name: "coupon exhausted",
			coupon: func() *Coupon {
				c := percentCoupon(10)
				c.IsUnlimited = false
				c.UsagePerCoupon = 5
				c.TotalUsage = 5
				return c
			}(),
			cart:    cartOf(100, line("p1", 1, 100)),
			wantErr: ErrCouponExhausted,
		},
		{
			name: "customer limit reached",
			coupon: func() *Coupon {
				c := percentCoupon(10)
				c.IsUnlimited = false
				c.UsagePerCoupon = 100
				c.UsagePerCustomer = 2
				return c
			}(),
			usage:   map[string]int{"c1/cust": 2},
			cart:    cartOf(100, line("p1", 1, 100)),
			wantErr: ErrCustomerLimitReached,
		},
		{
			name: "allow-list matches nothing in cart",
			coupon: func() *Coupon {
				c := percentCoupon(10)
				c.ApplyToAllProducts = false
				c.EligibleItems = []string{"other"}
				return c
			}(),
			cart:    cartOf(100, line("p1", 1, 100)),
			wantErr: ErrNotApplicableToCart,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(
				&mockCouponRepo{coupon: tt.coupon, err: tt.repoErr},
				&mockLedger{usage: tt.usage},
				&mockOrderHistory{counts: tt.orders},
			)

			_, err := v.Validate(context.Background(), "SAVE", tt.cart, "cust")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotEmpty(t, Reason(err))
		})
	}
}

func TestValidator_Discounts(t *testing.T) {
	tests := []struct {
		name   string
		coupon *Coupon
		cart   Cart
		want   int64
	}{
		{
			name:   "percentage of whole cart",
			coupon: percentCoupon(10),
			cart:   cartOf(2500, line("p1", 1, 2500)),
			want:   250,
		},
		{
			name:   "percentage rounds half up",
			coupon: percentCoupon(15),
			cart:   cartOf(1230, line("p1", 1, 1230)),
			// 15% of 1230 = 184.5, rounds to 185.
			want: 185,
		},
		{
			name: "fixed capped by eligible subtotal",
			coupon: func() *Coupon {
				c := percentCoupon(0)
				c.DiscountType = DiscountFixed
				c.Amount = decimal.NewFromInt(500)
				return c
			}(),
			cart: cartOf(300, line("p1", 1, 300)),
			want: 300,
		},
		{
			name: "allow-list restricts eligible subtotal",
			coupon: func() *Coupon {
				c := percentCoupon(50)
				c.ApplyToAllProducts = false
				c.EligibleItems = []string{"p1"}
				return c
			}(),
			cart: cartOf(1000, line("p1", 2, 200), line("p2", 1, 600)),
			// 50% of the eligible 400, not of the 1000 subtotal.
			want: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(&mockCouponRepo{coupon: tt.coupon}, &mockLedger{}, &mockOrderHistory{})

			res, err := v.Validate(context.Background(), "SAVE", tt.cart, "cust")
			require.NoError(t, err)
			assert.True(t, res.DiscountAmount.Equal(decimal.NewFromInt(tt.want)),
				"got %s want %d", res.DiscountAmount, tt.want)
			assert.Equal(t, "c1", res.Coupon.ID)
		})
	}
}

func TestValidator_DiscountNeverExceedsSubtotal(t *testing.T) {
	c := percentCoupon(0)
	c.DiscountType = DiscountFixed
	c.Amount = decimal.NewFromInt(900)
	c.ApplyToAllProducts = false
	c.EligibleItems = []string{"p1", "p2"}

	// Eligible lines sum above the caller-provided subtotal; the clamp must
	// bind to the subtotal.
	cart := Cart{
		Items:    []CartItem{line("p1", 1, 400), line("p2", 1, 400)},
		Subtotal: decimal.NewFromInt(700),
	}

	v := NewValidator(&mockCouponRepo{coupon: c}, &mockLedger{}, &mockOrderHistory{})
	res, err := v.Validate(context.Background(), "SAVE", cart, "cust")
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.Equal(decimal.NewFromInt(700)), "got %s", res.DiscountAmount)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "NotFound", Reason(ErrNotFound))
	assert.Equal(t, "Expired", Reason(ErrExpired))
	assert.Equal(t, "BelowMinimumSpend", Reason(ErrBelowMinimumSpend))
	assert.Equal(t, "NotFirstOrder", Reason(ErrNotFirstOrder))
	assert.Equal(t, "CouponExhausted", Reason(ErrCouponExhausted))
	assert.Equal(t, "CustomerLimitReached", Reason(ErrCustomerLimitReached))
	assert.Equal(t, "NotApplicableToCart", Reason(ErrNotApplicableToCart))
	assert.Empty(t, Reason(ErrMissingCode))
}
