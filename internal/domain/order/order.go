package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a captured customer order with its priced cart snapshot.
type Order struct {
	ID         string
	CustomerID string
	Items      []Line
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	Status     string
	PaymentRef string
	CreatedAt  time.Time
}

// Line is a single priced line item of a captured order.
type Line struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Repository defines persistence operations for captured orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	// CompletedOrderCount returns how many confirmed orders the customer
	// already has; feeds the first-order coupon rule.
	CompletedOrderCount(ctx context.Context, customerID string) (int, error)
}
