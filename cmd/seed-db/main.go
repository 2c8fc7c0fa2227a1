// Command seed-db loads demo catalog items, a set of demo coupons, and a
// hashed API key into the database. Meant for local development and demo
// environments, not production.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/karatline/storefront/db"
	"github.com/karatline/storefront/internal/domain/auth"
	"github.com/karatline/storefront/internal/domain/catalog"
	"github.com/karatline/storefront/internal/domain/coupon"
	"github.com/karatline/storefront/internal/storage/postgres"
)

// catalogJSON mirrors the embedded seed file layout.
type catalogJSON struct {
	ID              string              `json:"id"`
	SKU             string              `json:"sku"`
	Name            string              `json:"name"`
	Category        string              `json:"category"`
	MetalType       string              `json:"metalType"`
	WeightGrams     decimal.Decimal     `json:"weightGrams"`
	Purity          string              `json:"purity"`
	MetalRate       decimal.Decimal     `json:"metalRate"`
	MakingCharge    decimal.Decimal     `json:"makingCharge"`
	TaxAmount       decimal.Decimal     `json:"taxAmount"`
	LivePrice       bool                `json:"livePriceEnabled"`
	SellingPrice    decimal.Decimal     `json:"sellingPrice"`
	RegularPrice    decimal.Decimal     `json:"regularPrice"`
	MRP             decimal.Decimal     `json:"mrp"`
	Price           decimal.Decimal     `json:"price"`
	DiscountPercent decimal.Decimal     `json:"discountPercent"`
	Components      []catalog.Component `json:"components"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "", "path to catalog JSON file (defaults to the embedded demo catalog)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or KARAT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KARAT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("KARAT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or KARAT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("KARAT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, postgres.NewCatalogRepository(pool), catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCatalog(ctx context.Context, repo *postgres.CatalogRepository, catalogFile string) error {
	data := db.SeedCatalog
	if catalogFile != "" {
		slog.Info("reading catalog file", slog.String("path", catalogFile))
		var err error
		data, err = os.ReadFile(catalogFile)
		if err != nil {
			return errors.Wrap(err, "read catalog file")
		}
	}

	var records []catalogJSON
	if err := json.Unmarshal(data, &records); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("upserting catalog items", slog.Int("count", len(records)))

	for _, rec := range records {
		item := catalog.Item{
			ID:               rec.ID,
			SKU:              rec.SKU,
			Name:             rec.Name,
			Category:         rec.Category,
			MetalType:        catalog.Metal(rec.MetalType),
			WeightGrams:      rec.WeightGrams,
			Purity:           rec.Purity,
			MetalRate:        rec.MetalRate,
			MakingCharge:     rec.MakingCharge,
			TaxAmount:        rec.TaxAmount,
			LivePriceEnabled: rec.LivePrice,
			SellingPrice:     rec.SellingPrice,
			RegularPrice:     rec.RegularPrice,
			MRP:              rec.MRP,
			Price:            rec.Price,
			DiscountPercent:  rec.DiscountPercent,
			Components:       rec.Components,
		}
		if err := repo.Upsert(ctx, item); err != nil {
			return errors.Wrapf(err, "upsert item %s", rec.SKU)
		}

		slog.Info("upserted item", slog.String("sku", rec.SKU), slog.String("name", rec.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding demo coupons")

	coupons := []coupon.Coupon{
		{
			ID:                 "welcome10",
			Code:               "WELCOME10",
			Title:              "Welcome: 10% off your first order",
			DiscountType:       coupon.DiscountPercentage,
			Amount:             decimal.NewFromInt(10),
			MinimumSpend:       decimal.NewFromInt(1000),
			IsFirstOrder:       true,
			UsagePerCoupon:     10000,
			UsagePerCustomer:   1,
			ApplyToAllProducts: true,
			Status:             coupon.StatusEnabled,
		},
		{
			ID:                 "festive500",
			Code:               "FESTIVE500",
			Title:              "Festive season: flat 500 off",
			DiscountType:       coupon.DiscountFixed,
			Amount:             decimal.NewFromInt(500),
			MinimumSpend:       decimal.NewFromInt(5000),
			IsUnlimited:        true,
			ApplyToAllProducts: true,
			Status:             coupon.StatusEnabled,
		},
	}

	for _, c := range coupons {
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("title", c.Title))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: keyHash,
		Name:    "Default test key",
		Scopes:  []string{"create_order"},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"), slog.String("name", "Default test key"))

	return nil
}
