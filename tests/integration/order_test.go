//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

const testAPIKey = "integration-test-key"

// uniqueCustomer returns a customer id no previous test run has used, so
// first-order and per-customer coupon state starts clean.
func uniqueCustomer(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestValidateCoupon_Fixed(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", validateRequest{
		CouponCode: "FESTIVE500",
		CustomerID: uniqueCustomer("validate"),
		Subtotal:   31200,
		Items: []requestItem{
			{ProductID: "itm-pendant-legacy-price", Quantity: 1, UnitPrice: 31200},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateResponse](t, resp)
	if !body.Valid {
		t.Fatalf("expected valid, got reason %q", body.Reason)
	}
	if body.DiscountAmount != 500 {
		t.Errorf("discountAmount: got %v, want 500", body.DiscountAmount)
	}
	if body.Coupon.Code != "FESTIVE500" {
		t.Errorf("coupon code: got %q", body.Coupon.Code)
	}
}

func TestValidateCoupon_CaseInsensitive(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", validateRequest{
		CouponCode: "festive500",
		CustomerID: uniqueCustomer("case"),
		Subtotal:   31200,
		Items: []requestItem{
			{ProductID: "itm-pendant-legacy-price", Quantity: 1, UnitPrice: 31200},
		},
	})
	defer resp.Body.Close()

	body := decodeJSON[validateResponse](t, resp)
	if !body.Valid {
		t.Fatalf("lowercase code must validate, got reason %q", body.Reason)
	}
}

func TestValidateCoupon_BelowMinimumSpend(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", validateRequest{
		CouponCode: "FESTIVE500",
		CustomerID: uniqueCustomer("minspend"),
		Subtotal:   400,
		Items: []requestItem{
			{ProductID: "itm-silver-anklet", Quantity: 1, UnitPrice: 400},
		},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateResponse](t, resp)
	if body.Valid {
		t.Fatal("expected invalid")
	}
	if body.Reason != "BelowMinimumSpend" {
		t.Errorf("reason: got %q, want BelowMinimumSpend", body.Reason)
	}
}

func TestValidateCoupon_UnknownCode(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", validateRequest{
		CouponCode: "NOPE",
		CustomerID: uniqueCustomer("unknown"),
		Subtotal:   1000,
		Items: []requestItem{
			{ProductID: "itm-silver-anklet", Quantity: 1, UnitPrice: 1000},
		},
	})
	defer resp.Body.Close()

	body := decodeJSON[validateResponse](t, resp)
	if body.Valid {
		t.Fatal("expected invalid")
	}
	if body.Reason != "NotFound" {
		t.Errorf("reason: got %q, want NotFound", body.Reason)
	}
}

func TestCreateOrder_RequiresAPIKey(t *testing.T) {
	resp := doPost(t, "/api/orders", orderRequest{
		CustomerID: uniqueCustomer("noauth"),
		Items:      []requestItem{{ProductID: "itm-gold-studs-legacy", Quantity: 1}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateOrder(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", orderRequest{
		CustomerID: uniqueCustomer("order"),
		Items:      []requestItem{{ProductID: "itm-gold-studs-legacy", Quantity: 2}},
		PaymentRef: "pay-integration-1",
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.ID == "" {
		t.Error("order id must be set")
	}
	if o.Status != "confirmed" {
		t.Errorf("status: got %q", o.Status)
	}
	if o.Subtotal != 43000 {
		t.Errorf("subtotal: got %v, want 43000", o.Subtotal)
	}
	if o.Total != 43000 {
		t.Errorf("total: got %v, want 43000", o.Total)
	}
}

func TestCreateOrder_WithCoupon(t *testing.T) {
	customer := uniqueCustomer("coupon-order")

	resp := doPostWithAuth(t, "/api/orders", orderRequest{
		CustomerID: customer,
		CouponCode: "WELCOME10",
		Items:      []requestItem{{ProductID: "itm-gold-studs-legacy", Quantity: 1}},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	o := decodeJSON[orderResponse](t, resp)
	if o.Discount != 2150 {
		t.Errorf("discount: got %v, want 2150", o.Discount)
	}
	if o.Total != 19350 {
		t.Errorf("total: got %v, want 19350", o.Total)
	}
}

func TestCreateOrder_FirstOrderCouponRejectedOnSecondOrder(t *testing.T) {
	customer := uniqueCustomer("second-order")

	// First order without a coupon establishes order history.
	first := doPostWithAuth(t, "/api/orders", orderRequest{
		CustomerID: customer,
		Items:      []requestItem{{ProductID: "itm-gold-studs-legacy", Quantity: 1}},
	}, testAPIKey)
	first.Body.Close()
	if first.StatusCode != http.StatusCreated {
		t.Fatalf("setup order failed: %d", first.StatusCode)
	}

	// WELCOME10 is first-order-only and must now be rejected.
	resp := doPostWithAuth(t, "/api/orders", orderRequest{
		CustomerID: customer,
		CouponCode: "WELCOME10",
		Items:      []requestItem{{ProductID: "itm-gold-studs-legacy", Quantity: 1}},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestCreateOrder_UnknownItem(t *testing.T) {
	resp := doPostWithAuth(t, "/api/orders", orderRequest{
		CustomerID: uniqueCustomer("ghost"),
		Items:      []requestItem{{ProductID: "no-such-item", Quantity: 1}},
	}, testAPIKey)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
