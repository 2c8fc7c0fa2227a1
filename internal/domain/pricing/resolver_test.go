package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/karatline/storefront/internal/domain/catalog"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testRates() MetalRates {
	return MetalRates{
		Gold:     d(6000),
		Silver:   d(80),
		Platinum: d(3100),
		Source:   SourceStored,
	}
}

func TestResolve_LiveComponentPrice(t *testing.T) {
	item := catalog.Item{
		LivePriceEnabled: true,
		MetalType:        catalog.MetalGold,
		WeightGrams:      decimal.NewFromFloat(8.5),
		MakingCharge:     d(4200),
		TaxAmount:        d(1680),
	}

	q := Resolve(item, testRates())

	// 8.5 x 6000 + 4200 + 1680 = 56880.
	want := d(56880)
	assert.True(t, q.SellingPrice.Equal(want), "selling %s", q.SellingPrice)
	assert.True(t, q.RegularPrice.Equal(want))
	assert.True(t, q.MRP.Equal(want))
	assert.True(t, q.DisplayPrice.Equal(want))
	assert.False(t, q.HasDiscount)
}

func TestResolve_LivePriceKeepsHigherStoredMRP(t *testing.T) {
	item := catalog.Item{
		LivePriceEnabled: true,
		MetalType:        catalog.MetalGold,
		WeightGrams:      decimal.NewFromFloat(8.5),
		MakingCharge:     d(4200),
		TaxAmount:        d(1680),
		MRP:              d(62000),
	}

	q := Resolve(item, testRates())

	assert.True(t, q.SellingPrice.Equal(d(56880)))
	assert.True(t, q.MRP.Equal(d(62000)))
	assert.True(t, q.OriginalPrice.Equal(d(62000)))
	assert.True(t, q.HasDiscount)
}

func TestResolve_ItemRateOverridesSnapshot(t *testing.T) {
	item := catalog.Item{
		LivePriceEnabled: true,
		MetalType:        catalog.MetalGold,
		WeightGrams:      d(2),
		MetalRate:        d(6500),
	}

	q := Resolve(item, testRates())

	assert.True(t, q.SellingPrice.Equal(d(13000)), "got %s", q.SellingPrice)
}

func TestResolve_ComponentRates(t *testing.T) {
	item := catalog.Item{
		LivePriceEnabled: true,
		MakingCharge:     d(2600),
		TaxAmount:        d(510),
		Components: []catalog.Component{
			// Explicit per-component rate wins over the snapshot.
			{Metal: catalog.MetalGold, WeightGrams: decimal.NewFromFloat(2.4), RatePerGram: d(6150)},
			// No override: snapshot silver rate applies.
			{Metal: catalog.MetalSilver, WeightGrams: d(11)},
		},
	}

	q := Resolve(item, testRates())

	// 2.4 x 6150 + 11 x 80 + 2600 + 510 = 18750.
	assert.True(t, q.SellingPrice.Equal(d(18750)), "got %s", q.SellingPrice)
}

func TestResolve_LiveFallsBackToStoredChain(t *testing.T) {
	// Live pricing enabled but nothing contributes: the stored chain applies.
	item := catalog.Item{
		LivePriceEnabled: true,
		SellingPrice:     d(21500),
		RegularPrice:     d(23900),
		MRP:              d(25000),
	}

	q := Resolve(item, MetalRates{})

	assert.True(t, q.SellingPrice.Equal(d(21500)))
	assert.True(t, q.RegularPrice.Equal(d(23900)))
	assert.True(t, q.MRP.Equal(d(25000)))
	assert.True(t, q.HasDiscount)
}

func TestResolve_StoredFallbackChains(t *testing.T) {
	tests := []struct {
		name        string
		item        catalog.Item
		wantSelling int64
		wantRegular int64
		wantMRP     int64
	}{
		{
			name: "full price set",
			item: catalog.Item{
				SellingPrice: d(21500),
				RegularPrice: d(23900),
				MRP:          d(25000),
			},
			wantSelling: 21500,
			wantRegular: 23900,
			wantMRP:     25000,
		},
		{
			name: "regular backfills selling",
			item: catalog.Item{
				RegularPrice: d(23900),
			},
			wantSelling: 23900,
			wantRegular: 23900,
			wantMRP:     23900,
		},
		{
			name: "legacy price field only",
			item: catalog.Item{
				Price: d(31200),
			},
			wantSelling: 31200,
			wantRegular: 31200,
			wantMRP:     31200,
		},
		{
			name: "legacy subtotal before total amount",
			item: catalog.Item{
				Subtotal:    d(900),
				TotalAmount: d(1000),
			},
			wantSelling: 900,
			wantRegular: 900,
			wantMRP:     900,
		},
		{
			name: "negative stored values degrade to zero",
			item: catalog.Item{
				SellingPrice: d(-5),
			},
			wantSelling: 0,
			wantRegular: 0,
			wantMRP:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Resolve(tt.item, MetalRates{})
			assert.True(t, q.SellingPrice.Equal(d(tt.wantSelling)), "selling %s", q.SellingPrice)
			assert.True(t, q.RegularPrice.Equal(d(tt.wantRegular)), "regular %s", q.RegularPrice)
			assert.True(t, q.MRP.Equal(d(tt.wantMRP)), "mrp %s", q.MRP)
		})
	}
}

func TestResolve_DiscountPercentVerbatim(t *testing.T) {
	// The stored discount percent is echoed back even when it disagrees with
	// the actual MRP/selling gap.
	item := catalog.Item{
		SellingPrice:    d(900),
		MRP:             d(1000),
		DiscountPercent: d(25),
	}

	q := Resolve(item, MetalRates{})

	assert.True(t, q.DiscountPercent.Equal(d(25)))
	assert.True(t, q.HasDiscount)
}

func TestResolve_Pure(t *testing.T) {
	item := catalog.Item{
		LivePriceEnabled: true,
		MetalType:        catalog.MetalGold,
		WeightGrams:      d(3),
		MakingCharge:     d(100),
	}
	rates := testRates()

	first := Resolve(item, rates)
	second := Resolve(item, rates)

	assert.Equal(t, first, second)
}
