package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/karatline/storefront/internal/domain/coupon"
)

// validateRequest is the decoded body of POST /api/coupons/validate.
type validateRequest struct {
	Code       string
	CustomerID string
	Cart       coupon.Cart
}

func decodeValidateRequest(body []byte) (*validateRequest, error) {
	var req validateRequest
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "couponCode":
			s, err := d.Str()
			req.Code = s
			return err
		case "customerId":
			s, err := d.Str()
			req.CustomerID = s
			return err
		case "subtotal":
			v, err := decDecimal(d)
			req.Cart.Subtotal = v
			return err
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeCartItem(d)
				if err != nil {
					return err
				}
				req.Cart.Items = append(req.Cart.Items, item)
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

func decodeCartItem(d *jx.Decoder) (coupon.CartItem, error) {
	var item coupon.CartItem
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
		case "unitPrice":
			v, err := decDecimal(d)
			item.UnitPrice = v
			return err
		default:
			return d.Skip()
		}
	})
	return item, err
}

// validateCoupon previews a coupon against a priced cart. Rule rejections
// come back as 200 with valid=false and a stable reason; only malformed
// input and infrastructure failures use error statuses.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := readBody(w, r)
	if !ok {
		return
	}
	req, err := decodeValidateRequest(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := h.validator.Validate(ctx, req.Code, req.Cart, req.CustomerID)
	if err != nil {
		switch {
		case errors.Is(err, coupon.ErrMissingCode),
			errors.Is(err, coupon.ErrEmptyCart),
			errors.Is(err, coupon.ErrInvalidSubtotal):
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		if reason := coupon.Reason(err); reason != "" {
			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("valid", func(e *jx.Encoder) { e.Bool(false) })
				e.Field("reason", func(e *jx.Encoder) { e.Str(reason) })
			})
			writeJSON(w, r, http.StatusOK, &e)
			return
		}

		zctx.From(ctx).Error("validate coupon", zap.String("code", req.Code), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("valid", func(e *jx.Encoder) { e.Bool(true) })
		e.Field("discountAmount", func(e *jx.Encoder) { encDecimal(e, res.DiscountAmount) })
		e.Field("eligibleSubtotal", func(e *jx.Encoder) { encDecimal(e, res.EligibleSubtotal) })
		e.Field("coupon", func(e *jx.Encoder) { encCouponSummary(e, res.Coupon) })
	})
	writeJSON(w, r, http.StatusOK, &e)
}

func encCouponSummary(e *jx.Encoder, s coupon.Summary) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(s.ID) })
		e.Field("code", func(e *jx.Encoder) { e.Str(s.Code) })
		e.Field("title", func(e *jx.Encoder) { e.Str(s.Title) })
		e.Field("discountType", func(e *jx.Encoder) { e.Str(string(s.DiscountType)) })
		e.Field("amount", func(e *jx.Encoder) { encDecimal(e, s.Amount) })
		e.Field("minimumSpend", func(e *jx.Encoder) { encDecimal(e, s.MinimumSpend) })
	})
}
