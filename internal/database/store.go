package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
	"github.com/rickgao/geohash/internal/stock"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const schema = `
CREATE TABLE IF NOT EXISTS market_values (
	stock_date DATE PRIMARY KEY,
	value      NUMERIC(12, 2) NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// MarketStore persists posted market values. It implements stock.Store.
type MarketStore struct {
	db     DB
	logger *slog.Logger
}

// NewMarketStore creates a MarketStore.
func NewMarketStore(db DB, logger *slog.Logger) *MarketStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketStore{db: db, logger: logger}
}

// EnsureSchema creates the market_values table if it does not exist.
func (s *MarketStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create market_values: %w", err)
	}
	return nil
}

// GetValue returns the stored value for date. ok is false when none is stored.
func (s *MarketStore) GetValue(ctx context.Context, date model.Date) (decimal.Decimal, bool, error) {
	var text string
	err := s.db.QueryRow(ctx,
		`SELECT value::text FROM market_values WHERE stock_date = $1`,
		date.String(),
	).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("select %s: %w", date, err)
	}

	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("parse stored value %q: %w", text, err)
	}
	return v, true, nil
}

// PutValue stores v for date. An existing row is kept; if it holds a
// different value the error wraps stock.ErrConflictingValue.
func (s *MarketStore) PutValue(ctx context.Context, date model.Date, v decimal.Decimal) error {
	ct, err := s.db.Exec(ctx, `
		INSERT INTO market_values (stock_date, value)
		VALUES ($1, $2::numeric)
		ON CONFLICT (stock_date) DO NOTHING
	`, date.String(), v.StringFixed(2))
	if err != nil {
		return fmt.Errorf("insert %s: %w", date, err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}
	return s.checkConflict(ctx, date, v)
}

// Row is one stored market value.
type Row struct {
	Date  model.Date
	Value decimal.Decimal
}

// PutValues stores rows in one batch and returns how many already existed.
func (s *MarketStore) PutValues(ctx context.Context, rows []Row) (conflicts int, err error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO market_values (stock_date, value)
			VALUES ($1, $2::numeric)
			ON CONFLICT (stock_date) DO NOTHING
		`, r.Date.String(), r.Value.StringFixed(2))
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return conflicts, fmt.Errorf("batch insert: %w", err)
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}

func (s *MarketStore) checkConflict(ctx context.Context, date model.Date, v decimal.Decimal) error {
	stored, ok, err := s.GetValue(ctx, date)
	if err != nil {
		return err
	}
	if !ok || stored.Equal(v) {
		return nil
	}
	metrics.RecordCacheConflict()
	s.logger.Warn("conflicting market value",
		"date", date,
		"stored", stored.StringFixed(2),
		"new", v.StringFixed(2),
	)
	return fmt.Errorf("%w: %s stored %s, got %s", stock.ErrConflictingValue, date, stored.StringFixed(2), v.StringFixed(2))
}
