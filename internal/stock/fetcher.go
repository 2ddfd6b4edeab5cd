package stock

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
)

// Source retrieves a posted value from the market-data source.
type Source interface {
	GetOpening(ctx context.Context, date model.Date) (decimal.Decimal, error)
}

// Store is the persistent tier beneath the cache.
type Store interface {
	GetValue(ctx context.Context, date model.Date) (decimal.Decimal, bool, error)
	PutValue(ctx context.Context, date model.Date, v decimal.Decimal) error
}

// FetcherConfig holds fetcher configuration.
type FetcherConfig struct {
	Timeout  time.Duration  // per source call (default: 30s)
	Exchange *time.Location // market calendar zone (default: America/New_York)
}

// Fetcher resolves market values through the cache, store and source tiers.
type Fetcher struct {
	cfg    FetcherConfig
	cache  *Cache
	store  Store // optional
	source Source
	logger *slog.Logger
	now    func() time.Time
}

// NewFetcher creates a Fetcher. store may be nil.
func NewFetcher(cfg FetcherConfig, cache *Cache, source Source, store Store, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Exchange == nil {
		cfg.Exchange = ExchangeLocation()
	}
	return &Fetcher{
		cfg:    cfg,
		cache:  cache,
		store:  store,
		source: source,
		logger: logger,
		now:    time.Now,
	}
}

// ExchangeLocation returns the New York zone, or a fixed UTC-5 zone when the
// tz database is unavailable.
func ExchangeLocation() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// Fetch returns the value posted for date. Errors are *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, date model.Date) (decimal.Decimal, error) {
	if date.After(model.DateOf(f.now().In(f.cfg.Exchange))) {
		return decimal.Decimal{}, &FetchError{Kind: KindNotYetPosted, Date: date}
	}

	v, err := f.cache.GetOrLoad(ctx, date, f.load)
	if err != nil {
		return decimal.Decimal{}, classify(date, err)
	}
	return v, nil
}

// load is the cache miss path: store first, then the source.
func (f *Fetcher) load(ctx context.Context, date model.Date) (decimal.Decimal, error) {
	if f.store != nil {
		start := time.Now()
		v, ok, err := f.store.GetValue(ctx, date)
		switch {
		case err != nil:
			metrics.RecordFetch("store", "error", time.Since(start))
			f.logger.Warn("store lookup failed", "date", date, "err", err)
		case ok:
			metrics.RecordFetch("store", "ok", time.Since(start))
			return v, nil
		default:
			metrics.RecordFetch("store", "miss", time.Since(start))
		}
	}

	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	v, err := f.source.GetOpening(sctx, date)
	if err != nil {
		fe := classify(date, err)
		metrics.RecordFetch("source", fe.Kind.String(), time.Since(start))
		f.logger.Debug("source fetch failed", "date", date, "kind", fe.Kind, "err", err)
		return decimal.Decimal{}, fe
	}
	metrics.RecordFetch("source", "ok", time.Since(start))

	if f.store != nil {
		if err := f.store.PutValue(ctx, date, v); err != nil {
			f.logger.Warn("store write failed", "date", date, "err", err)
		}
	}
	return v, nil
}
