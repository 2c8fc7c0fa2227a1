package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/karatline/storefront/internal/domain/auth"
	"github.com/karatline/storefront/internal/domain/catalog"
	"github.com/karatline/storefront/internal/domain/coupon"
	"github.com/karatline/storefront/internal/domain/order"
	"github.com/karatline/storefront/internal/domain/pricing"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type mockCatalog struct {
	items map[string]catalog.Item
}

func (m *mockCatalog) GetByID(_ context.Context, id string) (*catalog.Item, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &item, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockCatalog) ListRateCarriers(context.Context, int) ([]catalog.RateCarrier, error) {
	return nil, nil
}

type mockCouponRepo struct {
	coupon *coupon.Coupon
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	if m.coupon == nil || !strings.EqualFold(m.coupon.Code, code) {
		return nil, coupon.ErrNotFound
	}
	return m.coupon, nil
}

func (m *mockCouponRepo) ConsumeUse(context.Context, string) (bool, error) { return true, nil }

type mockUsageStore struct {
	redeemErr error
}

func (m *mockUsageStore) GetUsage(context.Context, string, string) (int, error) { return 0, nil }
func (m *mockUsageStore) IncrementIfBelow(context.Context, string, string, int) (bool, error) {
	return true, nil
}
func (m *mockUsageStore) Redeem(context.Context, string, string) error { return m.redeemErr }

type mockOrderRepo struct {
	created []*order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) CompletedOrderCount(context.Context, string) (int, error) { return 0, nil }

type nopSnapshots struct{}

func (nopSnapshots) Load(context.Context) (*pricing.MetalRates, error) { return nil, nil }
func (nopSnapshots) Save(context.Context, pricing.MetalRates) error    { return nil }

func newTestServer(t *testing.T, items map[string]catalog.Item, c *coupon.Coupon) (*httptest.Server, *mockOrderRepo) {
	t.Helper()

	cat := &mockCatalog{items: items}
	usage := &mockUsageStore{}
	orders := &mockOrderRepo{}

	rates := pricing.NewRateProvider(nopSnapshots{}, cat, 0, zap.NewNop())
	resolver := pricing.NewResolver(rates)
	validator := coupon.NewValidator(&mockCouponRepo{coupon: c}, usage, orders)
	redeemer := coupon.NewRedeemer(validator, usage)
	orderSvc := order.NewService(cat, resolver, redeemer, orders)

	h := New(cat, resolver, rates, validator, orderSvc)
	mux := http.NewServeMux()
	h.Register(mux, func(next http.Handler) http.Handler { return next })

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, orders
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string, out any) int {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestItemPrice(t *testing.T) {
	srv, _ := newTestServer(t, map[string]catalog.Item{
		"ring": {
			ID:           "ring",
			Name:         "Gold Ring",
			SellingPrice: d(21500),
			RegularPrice: d(23900),
			MRP:          d(25000),
		},
	}, nil)

	var got struct {
		ID           string          `json:"id"`
		SellingPrice decimal.Decimal `json:"sellingPrice"`
		DisplayPrice decimal.Decimal `json:"displayPrice"`
		HasDiscount  bool            `json:"hasDiscount"`
	}
	status := getJSON(t, srv, "/api/items/ring/price", &got)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ring", got.ID)
	assert.True(t, got.SellingPrice.Equal(d(21500)))
	assert.True(t, got.DisplayPrice.Equal(d(21500)))
	assert.True(t, got.HasDiscount)
}

func TestItemPrice_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	var got struct {
		Code int `json:"code"`
	}
	status := getJSON(t, srv, "/api/items/ghost/price", &got)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestMetalRates(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	var got struct {
		Gold   decimal.Decimal `json:"gold"`
		Source string          `json:"source"`
	}
	status := getJSON(t, srv, "/api/rates", &got)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, got.Gold.IsPositive())
	assert.Equal(t, "fallback-default", got.Source)
}

func validPercentCoupon() *coupon.Coupon {
	return &coupon.Coupon{
		ID:                 "c1",
		Code:               "SAVE10",
		Title:              "10% off",
		DiscountType:       coupon.DiscountPercentage,
		Amount:             d(10),
		IsUnlimited:        true,
		ApplyToAllProducts: true,
		Status:             coupon.StatusEnabled,
	}
}

func TestValidateCoupon(t *testing.T) {
	srv, _ := newTestServer(t, nil, validPercentCoupon())

	body := `{
		"couponCode": "save10",
		"customerId": "cust",
		"subtotal": 2500,
		"items": [{"productId": "ring", "quantity": 1, "unitPrice": 2500}]
	}`

	var got struct {
		Valid          bool            `json:"valid"`
		DiscountAmount decimal.Decimal `json:"discountAmount"`
		Coupon         struct {
			Code string `json:"code"`
		} `json:"coupon"`
	}
	status := postJSON(t, srv, "/api/coupons/validate", body, &got)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, got.Valid)
	assert.True(t, got.DiscountAmount.Equal(d(250)))
	assert.Equal(t, "SAVE10", got.Coupon.Code)
}

func TestValidateCoupon_RejectionReasons(t *testing.T) {
	expired := validPercentCoupon()
	expired.IsExpired = true

	tests := []struct {
		name       string
		coupon     *coupon.Coupon
		code       string
		wantReason string
	}{
		{"unknown code", nil, "BOGUS", "NotFound"},
		{"expired", expired, "SAVE10", "Expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, nil, tt.coupon)

			body := `{
				"couponCode": "` + tt.code + `",
				"customerId": "cust",
				"subtotal": 2500,
				"items": [{"productId": "ring", "quantity": 1, "unitPrice": 2500}]
			}`

			var got struct {
				Valid  bool   `json:"valid"`
				Reason string `json:"reason"`
			}
			status := postJSON(t, srv, "/api/coupons/validate", body, &got)

			assert.Equal(t, http.StatusOK, status)
			assert.False(t, got.Valid)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestValidateCoupon_BadInput(t *testing.T) {
	srv, _ := newTestServer(t, nil, validPercentCoupon())

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing code", `{"customerId":"c","subtotal":100,"items":[{"productId":"p","quantity":1,"unitPrice":100}]}`},
		{"empty cart", `{"couponCode":"SAVE10","customerId":"c","subtotal":100,"items":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Code int `json:"code"`
			}
			status := postJSON(t, srv, "/api/coupons/validate", tt.body, &got)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestCaptureOrder(t *testing.T) {
	srv, orders := newTestServer(t, map[string]catalog.Item{
		"ring": {ID: "ring", Name: "Gold Ring", SellingPrice: d(8000)},
	}, validPercentCoupon())

	body := `{
		"customerId": "cust",
		"couponCode": "SAVE10",
		"items": [{"productId": "ring", "quantity": 1}]
	}`

	var got struct {
		ID       string          `json:"id"`
		Status   string          `json:"status"`
		Subtotal decimal.Decimal `json:"subtotal"`
		Discount decimal.Decimal `json:"discount"`
		Total    decimal.Decimal `json:"total"`
	}
	status := postJSON(t, srv, "/api/orders", body, &got)

	assert.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "confirmed", got.Status)
	assert.True(t, got.Subtotal.Equal(d(8000)))
	assert.True(t, got.Discount.Equal(d(800)))
	assert.True(t, got.Total.Equal(d(7200)))
	assert.Len(t, orders.created, 1)
}

func TestCaptureOrder_CouponRejected(t *testing.T) {
	expired := validPercentCoupon()
	expired.IsExpired = true
	srv, orders := newTestServer(t, map[string]catalog.Item{
		"ring": {ID: "ring", SellingPrice: d(8000)},
	}, expired)

	body := `{
		"customerId": "cust",
		"couponCode": "SAVE10",
		"items": [{"productId": "ring", "quantity": 1}]
	}`

	var got struct {
		Reason string `json:"reason"`
	}
	status := postJSON(t, srv, "/api/orders", body, &got)

	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "Expired", got.Reason)
	assert.Empty(t, orders.created)
}

type mockAPIKeys struct {
	hash string
}

var errUnknownKey = errors.New("api key not found")

func (m *mockAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if hash != m.hash {
		return nil, errUnknownKey
	}
	return &auth.APIKeyInfo{ID: "k1", KeyHash: m.hash}, nil
}

func TestRequireAPIKey(t *testing.T) {
	pepper := []byte("pepper")
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte("secret-key"))
	hash := hex.EncodeToString(mac.Sum(nil))

	sec := NewSecurityHandler(&mockAPIKeys{hash: hash}, pepper)
	protected := sec.RequireAPIKey(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("api_key", "wrong")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("api_key", "secret-key")
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
