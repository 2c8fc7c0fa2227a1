package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/karatline/storefront/internal/domain/catalog"
)

// Quote is the resolved price view of one catalog item. All values are in
// the store's base currency unit; display rounding is the caller's job.
type Quote struct {
	SellingPrice  decimal.Decimal
	RegularPrice  decimal.Decimal
	MRP           decimal.Decimal
	DisplayPrice  decimal.Decimal
	OriginalPrice decimal.Decimal
	HasDiscount   bool
	// DiscountPercent is the stored discount field, returned verbatim. It
	// is not recomputed from the MRP/selling gap and may disagree with it.
	DiscountPercent decimal.Decimal
}

// Resolver computes item quotes, pulling live metal rates from the provider
// only for items that opt into live pricing.
type Resolver struct {
	rates *RateProvider
}

// NewResolver creates a Resolver backed by the given rate provider.
func NewResolver(rates *RateProvider) *Resolver {
	return &Resolver{rates: rates}
}

// ResolvePrice resolves the quote for one item. Rates are only fetched when
// the item has live pricing enabled, so cache-miss derivation cost is never
// paid for fixed-price items.
func (r *Resolver) ResolvePrice(ctx context.Context, item catalog.Item) Quote {
	var rates MetalRates
	if item.LivePriceEnabled {
		rates = r.rates.ResolveRates(ctx)
	}
	return Resolve(item, rates)
}

// Resolve computes the quote for an item against a fixed rate snapshot.
// It is a pure function: same item and rates, same quote. Absent or invalid
// stored values degrade to zero, never to an error.
func Resolve(item catalog.Item, rates MetalRates) Quote {
	q := Quote{DiscountPercent: positiveOrZero(item.DiscountPercent)}

	if item.LivePriceEnabled {
		if calculated := liveComponentPrice(item, rates); calculated.IsPositive() {
			q.SellingPrice = calculated
			q.RegularPrice = calculated
			q.MRP = calculated
			if item.MRP.GreaterThan(calculated) {
				q.MRP = item.MRP
			}
			return finishQuote(q)
		}
	}

	// Legacy stored price chain, first positive wins.
	actualPrice := firstPositive(item.Price, item.Subtotal, item.TotalAmount)

	q.SellingPrice = firstPositive(item.SellingPrice, item.RegularPrice, actualPrice)
	q.RegularPrice = firstPositive(item.RegularPrice, actualPrice, q.SellingPrice)
	q.MRP = firstPositive(item.MRP, q.RegularPrice)

	return finishQuote(q)
}

// liveComponentPrice computes weight x rate + making charge + tax. It
// returns zero when no component contributes a positive amount.
func liveComponentPrice(item catalog.Item, rates MetalRates) decimal.Decimal {
	metalCost := metalCost(item, rates)
	making := positiveOrZero(item.MakingCharge)
	tax := positiveOrZero(item.TaxAmount)

	if !metalCost.IsPositive() && !making.IsPositive() && !tax.IsPositive() {
		return decimal.Zero
	}
	return metalCost.Add(making).Add(tax)
}

// metalCost sums weight x per-gram rate over the item's metal content.
// Component-level rate overrides win over the snapshot rate; items without
// components use the item-level metal fields.
func metalCost(item catalog.Item, rates MetalRates) decimal.Decimal {
	if len(item.Components) > 0 {
		cost := decimal.Zero
		for _, c := range item.Components {
			rate := c.RatePerGram
			if !rate.IsPositive() {
				rate = rates.Rate(c.Metal)
			}
			if c.WeightGrams.IsPositive() && rate.IsPositive() {
				cost = cost.Add(c.WeightGrams.Mul(rate))
			}
		}
		return cost
	}

	rate := item.MetalRate
	if !rate.IsPositive() {
		rate = rates.Rate(item.MetalType)
	}
	if !item.WeightGrams.IsPositive() || !rate.IsPositive() {
		return decimal.Zero
	}
	return item.WeightGrams.Mul(rate)
}

// finishQuote derives the display-facing fields shared by both branches.
func finishQuote(q Quote) Quote {
	q.DisplayPrice = firstPositive(q.SellingPrice, q.RegularPrice)
	q.OriginalPrice = firstPositive(q.MRP, q.RegularPrice)
	q.HasDiscount = q.OriginalPrice.GreaterThan(q.DisplayPrice)
	return q
}

// firstPositive returns the first strictly positive value, or zero.
func firstPositive(values ...decimal.Decimal) decimal.Decimal {
	for _, v := range values {
		if v.IsPositive() {
			return v
		}
	}
	return decimal.Zero
}

func positiveOrZero(v decimal.Decimal) decimal.Decimal {
	if v.IsPositive() {
		return v
	}
	return decimal.Zero
}
