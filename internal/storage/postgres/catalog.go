package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karatline/storefront/internal/domain/catalog"
)

const itemColumns = `id, sku, name, category, metal_type, weight_grams, purity,
	metal_rate, making_charge, tax_amount, live_price_enabled,
	selling_price, regular_price, mrp, price, subtotal, total_amount,
	discount_percent, components`

const (
	getItemSQL = `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = $1`

	getItemsSQL = `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = ANY($1)`

	listRateCarriersSQL = `SELECT metal_type, metal_rate, components
		FROM catalog_items
		WHERE metal_rate > 0 OR components @> '[{}]'::jsonb
		ORDER BY updated_at DESC
		LIMIT $1`

	upsertItemSQL = `INSERT INTO catalog_items (
			id, sku, name, category, metal_type, weight_grams, purity,
			metal_rate, making_charge, tax_amount, live_price_enabled,
			selling_price, regular_price, mrp, price, subtotal, total_amount,
			discount_percent, components, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NOW())
		ON CONFLICT (sku) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			metal_type = EXCLUDED.metal_type,
			weight_grams = EXCLUDED.weight_grams,
			purity = EXCLUDED.purity,
			metal_rate = EXCLUDED.metal_rate,
			making_charge = EXCLUDED.making_charge,
			tax_amount = EXCLUDED.tax_amount,
			live_price_enabled = EXCLUDED.live_price_enabled,
			selling_price = EXCLUDED.selling_price,
			regular_price = EXCLUDED.regular_price,
			mrp = EXCLUDED.mrp,
			price = EXCLUDED.price,
			subtotal = EXCLUDED.subtotal,
			total_amount = EXCLUDED.total_amount,
			discount_percent = EXCLUDED.discount_percent,
			components = EXCLUDED.components,
			updated_at = NOW()`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByID fetches a single catalog item.
// Returns catalog.ErrNotFound when the id does not exist.
func (r *CatalogRepository) GetByID(ctx context.Context, id string) (*catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}

	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %q: %w", id, err)
	}
	return &item, nil
}

// GetByIDs fetches all items matching ids in a single query. Missing ids are
// simply absent from the result; callers decide whether that is an error.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting %d items: %w", len(ids), err)
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("getting %d items: %w", len(ids), err)
	}
	return items, nil
}

// ListRateCarriers returns up to limit recently updated items that carry an
// explicit per-gram metal rate, most recent first.
func (r *CatalogRepository) ListRateCarriers(ctx context.Context, limit int) ([]catalog.RateCarrier, error) {
	rows, err := r.pool.Query(ctx, listRateCarriersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing rate carriers: %w", err)
	}

	carriers, err := pgx.CollectRows(rows, scanRateCarrier)
	if err != nil {
		return nil, fmt.Errorf("listing rate carriers: %w", err)
	}
	return carriers, nil
}

// Upsert inserts or refreshes a catalog item keyed by SKU. Used by the
// ingest and seed tools; the API surface never writes the catalog.
func (r *CatalogRepository) Upsert(ctx context.Context, item catalog.Item) error {
	componentsJSON, err := json.Marshal(item.Components)
	if err != nil {
		return fmt.Errorf("marshaling components for %q: %w", item.SKU, err)
	}

	_, err = r.pool.Exec(ctx, upsertItemSQL,
		item.ID, item.SKU, item.Name, item.Category,
		string(item.MetalType), item.WeightGrams, item.Purity,
		item.MetalRate, item.MakingCharge, item.TaxAmount, item.LivePriceEnabled,
		item.SellingPrice, item.RegularPrice, item.MRP,
		item.Price, item.Subtotal, item.TotalAmount,
		item.DiscountPercent, componentsJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting item %q: %w", item.SKU, err)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (catalog.Item, error) {
	var (
		item           catalog.Item
		metalType      string
		componentsJSON []byte
	)
	err := row.Scan(
		&item.ID, &item.SKU, &item.Name, &item.Category,
		&metalType, &item.WeightGrams, &item.Purity,
		&item.MetalRate, &item.MakingCharge, &item.TaxAmount, &item.LivePriceEnabled,
		&item.SellingPrice, &item.RegularPrice, &item.MRP,
		&item.Price, &item.Subtotal, &item.TotalAmount,
		&item.DiscountPercent, &componentsJSON,
	)
	if err != nil {
		return item, err
	}
	item.MetalType = catalog.Metal(metalType)
	if len(componentsJSON) > 0 {
		if err := json.Unmarshal(componentsJSON, &item.Components); err != nil {
			return item, fmt.Errorf("unmarshaling components: %w", err)
		}
	}
	return item, nil
}

func scanRateCarrier(row pgx.CollectableRow) (catalog.RateCarrier, error) {
	var (
		c              catalog.RateCarrier
		metalType      string
		componentsJSON []byte
	)
	err := row.Scan(&metalType, &c.RatePerGram, &componentsJSON)
	if err != nil {
		return c, err
	}
	c.Metal = catalog.Metal(metalType)
	if len(componentsJSON) > 0 {
		if err := json.Unmarshal(componentsJSON, &c.Components); err != nil {
			return c, fmt.Errorf("unmarshaling components: %w", err)
		}
	}
	return c, nil
}
