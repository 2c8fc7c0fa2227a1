package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog item does not exist.
var ErrNotFound = errors.New("catalog item not found")

// Metal identifies a supported precious metal.
type Metal string

const (
	MetalGold     Metal = "gold"
	MetalSilver   Metal = "silver"
	MetalPlatinum Metal = "platinum"
)

// Metals lists every supported metal in a stable order.
var Metals = []Metal{MetalGold, MetalSilver, MetalPlatinum}

// Component is one metal part of a composite item. RatePerGram, when
// positive, overrides the item-level rate for that metal.
type Component struct {
	Metal       Metal           `json:"metal"`
	WeightGrams decimal.Decimal `json:"weightGrams"`
	RatePerGram decimal.Decimal `json:"ratePerGram"`
}

// Item is a catalog record as stored. The price columns span several
// pricing eras of the product record; resolution order lives in the
// pricing package, not here.
type Item struct {
	ID       string
	SKU      string
	Name     string
	Category string

	MetalType   Metal
	WeightGrams decimal.Decimal
	Purity      string
	// MetalRate is an explicit per-gram rate carried by the record itself.
	MetalRate     decimal.Decimal
	MakingCharge decimal.Decimal
	TaxAmount    decimal.Decimal

	LivePriceEnabled bool

	SellingPrice decimal.Decimal
	RegularPrice decimal.Decimal
	MRP          decimal.Decimal
	// Legacy stored price fields, oldest last.
	Price       decimal.Decimal
	Subtotal    decimal.Decimal
	TotalAmount decimal.Decimal

	// DiscountPercent is read back verbatim by the price resolver; it is
	// not kept consistent with the MRP/selling gap.
	DiscountPercent decimal.Decimal

	Components []Component
}

// RateCarrier is the slice of an item the rate provider scans: the metals
// it carries and any explicit per-gram rates attached to them.
type RateCarrier struct {
	Metal       Metal
	RatePerGram decimal.Decimal
	Components  []Component
}

// Repository defines read operations for the catalog.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Item, error)
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
	// ListRateCarriers returns up to limit recently updated items that carry
	// an explicit per-gram metal rate, most recently updated first.
	ListRateCarriers(ctx context.Context, limit int) ([]RateCarrier, error)
}
