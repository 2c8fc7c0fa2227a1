package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/karatline/storefront/internal/domain/coupon"
	"github.com/karatline/storefront/internal/domain/order"
)

func decodeCaptureRequest(body []byte) (*order.CaptureRequest, error) {
	var req order.CaptureRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customerId":
			s, err := d.Str()
			req.CustomerID = s
			return err
		case "couponCode":
			s, err := d.Str()
			req.CouponCode = s
			return err
		case "paymentRef":
			s, err := d.Str()
			req.PaymentRef = s
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var item order.RequestedItem
				err := d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "productId":
						s, err := d.Str()
						item.ProductID = s
						return err
					case "quantity":
						n, err := d.Int()
						item.Quantity = n
						return err
					default:
						return d.Skip()
					}
				})
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// captureOrder prices the cart, redeems the coupon, and persists the order.
func (h *Handler) captureOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := decodeCaptureRequest(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := h.orders.Capture(ctx, *req)
	if err != nil {
		h.writeCaptureError(w, r, err)
		return
	}

	o := res.Order
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("subtotal", func(e *jx.Encoder) { encDecimal(e, o.Subtotal) })
		e.Field("discount", func(e *jx.Encoder) { encDecimal(e, o.Discount) })
		e.Field("total", func(e *jx.Encoder) { encDecimal(e, o.Total) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, line := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("productId", func(e *jx.Encoder) { e.Str(line.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(line.Quantity) })
						e.Field("unitPrice", func(e *jx.Encoder) { encDecimal(e, line.UnitPrice) })
					})
				}
			})
		})
		if res.Coupon != nil {
			e.Field("coupon", func(e *jx.Encoder) { encCouponSummary(e, res.Coupon.Coupon) })
		}
	})
	writeJSON(w, r, http.StatusCreated, &e)
}

// writeCaptureError maps capture failures to statuses: input problems and
// coupon rejections are the client's fault, the rest is ours.
func (h *Handler) writeCaptureError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *order.ItemNotFoundError
		invalidQty *order.InvalidQuantityError
	)
	switch {
	case errors.Is(err, order.ErrEmptyItems),
		errors.Is(err, order.ErrMissingCustomer),
		errors.As(err, &invalidQty):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &notFound):
		writeError(w, r, http.StatusNotFound, notFound.Error())
	default:
		if reason := coupon.Reason(err); reason != "" {
			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnprocessableEntity) })
				e.Field("message", func(e *jx.Encoder) { e.Str("coupon rejected") })
				e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
			})
			writeJSON(w, r, http.StatusUnprocessableEntity, &e)
			return
		}
		zctx.From(r.Context()).Error("capture order", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
