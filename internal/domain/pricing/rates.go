package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/karatline/storefront/internal/domain/catalog"
)

// RateSource records where a rate snapshot came from.
type RateSource string

const (
	// SourceStored means the snapshot was read back from the cache as-is.
	SourceStored RateSource = "stored"
	// SourceDerived means at least one rate was recovered from recently
	// updated catalog records.
	SourceDerived RateSource = "derived-from-catalog"
	// SourceFallback means at least one rate came from the built-in
	// constants because neither the cache nor the catalog had one.
	SourceFallback RateSource = "fallback-default"
)

// Default per-gram rates, used when no stored or catalog-derived rate is
// available. A rate of zero must never escape the provider.
var (
	defaultGoldRate     = decimal.NewFromInt(6000)
	defaultSilverRate   = decimal.NewFromInt(80)
	defaultPlatinumRate = decimal.NewFromInt(3100)
)

// MetalRates is the per-gram rate snapshot for every supported metal.
type MetalRates struct {
	Gold      decimal.Decimal
	Silver    decimal.Decimal
	Platinum  decimal.Decimal
	Source    RateSource
	UpdatedAt time.Time
}

// Rate returns the per-gram rate for the given metal.
func (r MetalRates) Rate(m catalog.Metal) decimal.Decimal {
	switch m {
	case catalog.MetalGold:
		return r.Gold
	case catalog.MetalSilver:
		return r.Silver
	case catalog.MetalPlatinum:
		return r.Platinum
	}
	return decimal.Zero
}

func (r *MetalRates) set(m catalog.Metal, v decimal.Decimal) {
	switch m {
	case catalog.MetalGold:
		r.Gold = v
	case catalog.MetalSilver:
		r.Silver = v
	case catalog.MetalPlatinum:
		r.Platinum = v
	}
}

// complete reports whether every metal has a positive rate.
func (r MetalRates) complete() bool {
	return r.Gold.IsPositive() && r.Silver.IsPositive() && r.Platinum.IsPositive()
}

// SnapshotStore persists the single rate snapshot. Load returns (nil, nil)
// when no snapshot exists yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*MetalRates, error)
	Save(ctx context.Context, rates MetalRates) error
}

// RateProvider resolves current per-gram metal rates: stored snapshot first,
// then recently updated catalog records, then fixed defaults. Whatever it
// derives is written back so the next call short-circuits.
type RateProvider struct {
	snapshots SnapshotStore
	catalog   catalog.Repository
	lg        *zap.Logger
	now       func() time.Time

	// scanWindow bounds the catalog scan on a snapshot miss.
	scanWindow int
}

// NewRateProvider creates a RateProvider over the given snapshot store and
// catalog. scanWindow bounds the number of catalog records inspected on a
// cache miss; values <= 0 fall back to 200.
func NewRateProvider(snapshots SnapshotStore, cat catalog.Repository, scanWindow int, lg *zap.Logger) *RateProvider {
	if scanWindow <= 0 {
		scanWindow = 200
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &RateProvider{
		snapshots:  snapshots,
		catalog:    cat,
		lg:         lg,
		now:        time.Now,
		scanWindow: scanWindow,
	}
}

// ResolveRates returns a positive per-gram rate for every supported metal.
// It never fails: store and catalog errors degrade to the default constants.
func (p *RateProvider) ResolveRates(ctx context.Context) MetalRates {
	snap, err := p.snapshots.Load(ctx)
	if err != nil {
		p.lg.Warn("rate snapshot read failed", zap.Error(err))
	}
	if snap != nil && snap.complete() {
		snap.Source = SourceStored
		return *snap
	}

	rates := MetalRates{Source: SourceDerived, UpdatedAt: p.now()}
	if snap != nil {
		// Carry over whatever positive rates the partial snapshot had.
		for _, m := range catalog.Metals {
			if v := snap.Rate(m); v.IsPositive() {
				rates.set(m, v)
			}
		}
	}

	if !rates.complete() {
		p.deriveFromCatalog(ctx, &rates)
	}

	for _, m := range catalog.Metals {
		if !rates.Rate(m).IsPositive() {
			rates.set(m, defaultRate(m))
			rates.Source = SourceFallback
		}
	}

	// Best effort: the in-memory result is already valid, so a failed
	// write only costs the next caller another derivation.
	if err := p.snapshots.Save(ctx, rates); err != nil {
		p.lg.Warn("rate snapshot write failed", zap.Error(err))
	}

	return rates
}

// deriveFromCatalog fills missing rates from a bounded, recency-ordered
// window of catalog records, stopping as soon as every metal is covered.
func (p *RateProvider) deriveFromCatalog(ctx context.Context, rates *MetalRates) {
	carriers, err := p.catalog.ListRateCarriers(ctx, p.scanWindow)
	if err != nil {
		p.lg.Warn("catalog rate scan failed", zap.Error(err))
		return
	}

	for _, c := range carriers {
		if rates.complete() {
			return
		}
		if c.RatePerGram.IsPositive() && !rates.Rate(c.Metal).IsPositive() {
			rates.set(c.Metal, c.RatePerGram)
		}
		for _, comp := range c.Components {
			if comp.RatePerGram.IsPositive() && !rates.Rate(comp.Metal).IsPositive() {
				rates.set(comp.Metal, comp.RatePerGram)
			}
		}
	}
}

func defaultRate(m catalog.Metal) decimal.Decimal {
	switch m {
	case catalog.MetalSilver:
		return defaultSilverRate
	case catalog.MetalPlatinum:
		return defaultPlatinumRate
	default:
		return defaultGoldRate
	}
}
