// Command catalog-ingest loads vendor catalog feeds into the database.
//
// Feeds are gzip-compressed JSON Lines files, one catalog record per line,
// as exported by the jewellery vendors' PIM systems. Feeds are listed in
// priority order: when the same SKU appears in several feeds, the first
// feed's record wins. Feeds are parsed concurrently; writes are serialized
// through a single upsert loop.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/karatline/storefront/internal/domain/catalog"
	"github.com/karatline/storefront/internal/storage/postgres"
)

const (
	// bloomCapacity sizes the SKU filter for the largest vendor exports.
	bloomCapacity = 5_000_000
	bloomFPR      = 0.0001
	progressEvery = 50_000
)

// feedRecord mirrors one JSONL line of a vendor feed.
type feedRecord struct {
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

// parsedFeed holds one feed's records in file order.
type parsedFeed struct {
	path    string
	records []feedRecord
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing vendor *.jsonl.gz feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "list feeds")
	}
	if len(files) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds in %s", dataDir)
	}
	// Priority order is lexicographic file order: vendors prefix their
	// exports with a sequence number.
	sort.Strings(files)

	slog.Info("parsing feeds", slog.Int("files", len(files)))

	feeds, err := parseFeeds(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse feeds")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeFeeds(ctx, postgres.NewCatalogRepository(pool), feeds); err != nil {
		return errors.Wrap(err, "write catalog")
	}

	return nil
}

// parseFeeds decompresses and parses every feed concurrently.
func parseFeeds(ctx context.Context, files []string) ([]parsedFeed, error) {
	feeds := make([]parsedFeed, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(parseFeedFile(ctx, i, path, feeds))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return feeds, nil
}

func parseFeedFile(ctx context.Context, idx int, path string, feeds []parsedFeed) func() error {
	return func() error {
		feed := parsedFeed{path: path}
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) error {
			if strings.TrimSpace(line) == "" {
				return nil
			}
			var rec feedRecord
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				return errors.Wrapf(err, "parse record %d", count+1)
			}
			if rec.SKU == "" {
				return errors.Errorf("record %d has no sku", count+1)
			}
			feed.records = append(feed.records, rec)
			count++
			if count%progressEvery == 0 {
				slog.Info("parse progress", slog.String("feed", path), slog.Uint64("records", count))
			}
			return nil
		}); err != nil {
			return errors.Wrapf(err, "stream %s", path)
		}

		slog.Info("feed parsed", slog.String("feed", path), slog.Uint64("records", count))

		feeds[idx] = feed
		return nil
	}
}

// writeFeeds upserts records feed by feed in priority order. The bloom
// filter front-runs the seen-set lookup so most duplicate checks never touch
// the exact map; a positive filter hit is confirmed against the map because
// the filter can report SKUs it never saw.
func writeFeeds(ctx context.Context, repo *postgres.CatalogRepository, feeds []parsedFeed) error {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	seen := make(map[string]struct{})

	var written, skipped int
	for _, feed := range feeds {
		for _, rec := range feed.records {
			if err := ctx.Err(); err != nil {
				return err
			}

			if filter.TestString(rec.SKU) {
				if _, dup := seen[rec.SKU]; dup {
					skipped++
					continue
				}
			}
			filter.AddString(rec.SKU)
			seen[rec.SKU] = struct{}{}

			if err := repo.Upsert(ctx, toItem(rec)); err != nil {
				return errors.Wrapf(err, "upsert %s from %s", rec.SKU, feed.path)
			}
			written++

			if written%1000 == 0 {
				slog.Info("write progress", slog.Int("written", written), slog.Int("skipped", skipped))
			}
		}
	}

	slog.Info("catalog written", slog.Int("written", written), slog.Int("skipped_duplicates", skipped))
	return nil
}

func toItem(rec feedRecord) catalog.Item {
	return catalog.Item{
		ID:               uuid.NewSHA1(uuid.NameSpaceOID, []byte(rec.SKU)).String(),
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
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(scanner.Text()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}
