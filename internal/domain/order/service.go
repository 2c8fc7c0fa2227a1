package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/karatline/storefront/internal/domain/catalog"
	"github.com/karatline/storefront/internal/domain/coupon"
	"github.com/karatline/storefront/internal/domain/pricing"
)

// Sentinel errors for order capture validation.
var (
	ErrEmptyItems      = fmt.Errorf("items required")
	ErrMissingCustomer = fmt.Errorf("customer id required")
)

// ItemNotFoundError indicates a requested catalog item does not exist.
type ItemNotFoundError struct {
	ProductID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.ProductID)
}

// CaptureRequest holds the input for capturing an order.
type CaptureRequest struct {
	CustomerID string
	Items      []RequestedItem
	CouponCode string
	PaymentRef string
}

// RequestedItem is one requested line, before pricing.
type RequestedItem struct {
	ProductID string
	Quantity  int
}

// CaptureResult holds the output of a successfully captured order.
type CaptureResult struct {
	Order  *Order
	Coupon *coupon.Result
}

// Service encapsulates order capture: price the cart via the resolver,
// redeem the coupon, persist the order. Order lifecycle beyond capture is
// out of its hands.
type Service struct {
	catalog  catalog.Repository
	resolver *pricing.Resolver
	redeemer *coupon.Redeemer
	orders   Repository
}

// NewService creates an order Service with the required dependencies.
func NewService(
	cat catalog.Repository,
	resolver *pricing.Resolver,
	redeemer *coupon.Redeemer,
	orders Repository,
) *Service {
	return &Service{
		catalog:  cat,
		resolver: resolver,
		redeemer: redeemer,
		orders:   orders,
	}
}

// Capture validates the request, prices every line through the resolver,
// redeems the coupon when one is supplied, and persists the order with a
// payment-capture stamp. Redemption is authoritative: a coupon that
// previewed as valid can still be rejected here.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error) {
	if req.CustomerID == "" {
		return nil, ErrMissingCustomer
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get catalog items: %w", err)
	}

	itemMap := make(map[string]catalog.Item, len(fetched))
	for _, it := range fetched {
		itemMap[it.ID] = it
	}

	// Price each line and build the cart snapshot.
	lines := make([]Line, len(req.Items))
	cartItems := make([]coupon.CartItem, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		rec, ok := itemMap[item.ProductID]
		if !ok {
			return nil, &ItemNotFoundError{ProductID: item.ProductID}
		}

		quote := s.resolver.ResolvePrice(ctx, rec)
		qty := decimal.NewFromInt(int64(item.Quantity))

		lines[i] = Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: quote.DisplayPrice,
		}
		cartItems[i] = coupon.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: quote.DisplayPrice,
		}
		subtotal = subtotal.Add(quote.DisplayPrice.Mul(qty))
	}

	// Redeem the coupon against the priced cart when a code is supplied.
	var couponRes *coupon.Result
	discount := decimal.Zero
	if req.CouponCode != "" {
		couponRes, err = s.redeemer.Redeem(ctx, req.CouponCode, coupon.Cart{
			Items:    cartItems,
			Subtotal: subtotal,
		}, req.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("redeem coupon: %w", err)
		}
		discount = couponRes.DiscountAmount
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		Items:      lines,
		Subtotal:   subtotal,
		Discount:   discount,
		Total:      total,
		CouponCode: req.CouponCode,
		Status:     "confirmed",
		PaymentRef: req.PaymentRef,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return &CaptureResult{Order: o, Coupon: couponRes}, nil
}
