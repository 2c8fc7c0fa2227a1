package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/karatline/storefront/internal/domain/catalog"
)

// itemPrice resolves and returns the quote for one catalog item.
func (h *Handler) itemPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id := r.PathValue("id")
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "item id required")
		return
	}

	item, err := h.catalog.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "item not found")
			return
		}
		zctx.From(ctx).Error("get catalog item", zap.String("id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	quote := h.resolver.ResolvePrice(ctx, *item)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(item.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(item.Name) })
		e.Field("sellingPrice", func(e *jx.Encoder) { encDecimal(e, quote.SellingPrice) })
		e.Field("regularPrice", func(e *jx.Encoder) { encDecimal(e, quote.RegularPrice) })
		e.Field("mrp", func(e *jx.Encoder) { encDecimal(e, quote.MRP) })
		e.Field("displayPrice", func(e *jx.Encoder) { encDecimal(e, quote.DisplayPrice) })
		e.Field("originalPrice", func(e *jx.Encoder) { encDecimal(e, quote.OriginalPrice) })
		e.Field("hasDiscount", func(e *jx.Encoder) { e.Bool(quote.HasDiscount) })
		e.Field("discountPercent", func(e *jx.Encoder) { encDecimal(e, quote.DiscountPercent) })
	})
	writeJSON(w, r, http.StatusOK, &e)
}

// metalRates returns the current per-gram rate snapshot with its provenance.
func (h *Handler) metalRates(w http.ResponseWriter, r *http.Request) {
	rates := h.rates.ResolveRates(r.Context())

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("gold", func(e *jx.Encoder) { encDecimal(e, rates.Gold) })
		e.Field("silver", func(e *jx.Encoder) { encDecimal(e, rates.Silver) })
		e.Field("platinum", func(e *jx.Encoder) { encDecimal(e, rates.Platinum) })
		e.Field("source", func(e *jx.Encoder) { e.Str(string(rates.Source)) })
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(rates.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")) })
	})
	writeJSON(w, r, http.StatusOK, &e)
}
