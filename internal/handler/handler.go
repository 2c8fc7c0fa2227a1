// Package handler exposes the pricing and coupon core over HTTP. Request
// and response bodies are encoded with go-faster/jx so decimal values
// survive the boundary without float round-trips.
package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/karatline/storefront/internal/domain/catalog"
	"github.com/karatline/storefront/internal/domain/coupon"
	"github.com/karatline/storefront/internal/domain/order"
	"github.com/karatline/storefront/internal/domain/pricing"
)

// maxBodyBytes caps request bodies; carts and orders are small.
const maxBodyBytes = 1 << 20

// Handler wires the domain services to their HTTP routes.
type Handler struct {
	catalog   catalog.Repository
	resolver  *pricing.Resolver
	rates     *pricing.RateProvider
	validator *coupon.Validator
	orders    *order.Service
}

// New constructs a Handler with the required domain dependencies.
func New(
	cat catalog.Repository,
	resolver *pricing.Resolver,
	rates *pricing.RateProvider,
	validator *coupon.Validator,
	orders *order.Service,
) *Handler {
	return &Handler{
		catalog:   cat,
		resolver:  resolver,
		rates:     rates,
		validator: validator,
		orders:    orders,
	}
}

// Register mounts all API routes on mux. requireKey wraps the routes that
// commit money movement.
func (h *Handler) Register(mux *http.ServeMux, requireKey func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/items/{id}/price", h.itemPrice)
	mux.HandleFunc("GET /api/rates", h.metalRates)
	mux.HandleFunc("POST /api/coupons/validate", h.validateCoupon)
	mux.Handle("POST /api/orders", requireKey(http.HandlerFunc(h.captureOrder)))
}

// readBody reads a size-capped request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unreadable request body")
		return nil, false
	}
	return body, true
}

// writeJSON writes an encoded jx document with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(e.Bytes()); err != nil {
		zctx.From(r.Context()).Debug("response write failed", zap.Error(err))
	}
}

// writeError writes the shared {code, message} error body.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	writeJSON(w, r, status, &e)
}

// encDecimal writes a decimal as a raw JSON number.
func encDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

// decDecimal reads a JSON number into a decimal without a float round-trip.
func decDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
