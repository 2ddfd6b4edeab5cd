package stock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/api"
	"github.com/rickgao/geohash/internal/model"
)

// fakeSource serves values from a map and counts calls. Missing dates are
// reported as not available unless err is set.
type fakeSource struct {
	mu     sync.Mutex
	values map[model.Date]decimal.Decimal
	err    error
	calls  atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{values: make(map[model.Date]decimal.Decimal)}
}

func (s *fakeSource) set(date model.Date, v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[date] = decimal.RequireFromString(v)
}

func (s *fakeSource) GetOpening(_ context.Context, date model.Date) (decimal.Decimal, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return decimal.Zero, s.err
	}
	v, ok := s.values[date]
	if !ok {
		return decimal.Zero, fmt.Errorf("get opening %s: %w", date, api.ErrNotAvailable)
	}
	return v, nil
}

type fakeStore struct {
	mu     sync.Mutex
	values map[model.Date]decimal.Decimal
	puts   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[model.Date]decimal.Decimal)}
}

func (s *fakeStore) GetValue(_ context.Context, date model.Date) (decimal.Decimal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[date]
	return v, ok, nil
}

func (s *fakeStore) PutValue(_ context.Context, date model.Date, v decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[date] = v
	s.puts++
	return nil
}
