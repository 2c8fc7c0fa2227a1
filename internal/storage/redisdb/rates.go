// Package redisdb holds the Redis-backed stores: today only the metal-rate
// snapshot document.
package redisdb

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/karatline/storefront/internal/domain/pricing"
)

// snapshotKey is the single key holding the current rate snapshot. It is
// overwritten in place and never deleted.
const snapshotKey = "pricing:metal-rates"

// NewClient builds a Redis client from a URL, with sane dial/read/write
// timeouts, and verifies connectivity with a ping.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ pricing.SnapshotStore = (*RateSnapshotStore)(nil)

// RateSnapshotStore persists the metal-rate snapshot as a JSON document in
// Redis.
type RateSnapshotStore struct {
	client *redis.Client
}

// NewRateSnapshotStore returns a store over the given client.
func NewRateSnapshotStore(client *redis.Client) *RateSnapshotStore {
	return &RateSnapshotStore{client: client}
}

// Load reads the current snapshot. Returns (nil, nil) when none exists.
func (s *RateSnapshotStore) Load(ctx context.Context) (*pricing.MetalRates, error) {
	raw, err := s.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get snapshot")
	}

	rates, err := decodeSnapshot(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return rates, nil
}

// Save overwrites the snapshot in place.
func (s *RateSnapshotStore) Save(ctx context.Context, rates pricing.MetalRates) error {
	if err := s.client.Set(ctx, snapshotKey, encodeSnapshot(rates), 0).Err(); err != nil {
		return errors.Wrap(err, "set snapshot")
	}
	return nil
}

func encodeSnapshot(rates pricing.MetalRates) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("gold", func(e *jx.Encoder) { e.Str(rates.Gold.String()) })
		e.Field("silver", func(e *jx.Encoder) { e.Str(rates.Silver.String()) })
		e.Field("platinum", func(e *jx.Encoder) { e.Str(rates.Platinum.String()) })
		e.Field("source", func(e *jx.Encoder) { e.Str(string(rates.Source)) })
		e.Field("updatedAt", func(e *jx.Encoder) { e.Str(rates.UpdatedAt.UTC().Format(time.RFC3339)) })
	})
	return e.Bytes()
}

func decodeSnapshot(raw []byte) (*pricing.MetalRates, error) {
	var rates pricing.MetalRates
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "gold":
			return decodeRate(d, &rates.Gold)
		case "silver":
			return decodeRate(d, &rates.Silver)
		case "platinum":
			return decodeRate(d, &rates.Platinum)
		case "source":
			s, err := d.Str()
			if err != nil {
				return err
			}
			rates.Source = pricing.RateSource(s)
			return nil
		case "updatedAt":
			s, err := d.Str()
			if err != nil {
				return err
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return errors.Wrap(err, "parse updatedAt")
			}
			rates.UpdatedAt = t
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &rates, nil
}

func decodeRate(d *jx.Decoder, out *decimal.Decimal) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return errors.Wrapf(err, "parse rate %q", s)
	}
	*out = v
	return nil
}
