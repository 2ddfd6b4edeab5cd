package stock

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/api"
	"github.com/rickgao/geohash/internal/model"
)

// fixedNow is a Wednesday afternoon in New York.
var fixedNow = time.Date(2024, time.March, 13, 18, 0, 0, 0, time.UTC)

func newTestFetcher(t *testing.T, source Source, store Store) *Fetcher {
	t.Helper()
	f := NewFetcher(FetcherConfig{Timeout: time.Second}, newTestCache(t, 16), source, store, nil)
	f.now = func() time.Time { return fixedNow }
	return f
}

func TestFetcher_FutureDateSkipsNetwork(t *testing.T) {
	src := newFakeSource()
	f := newTestFetcher(t, src, nil)

	_, err := f.Fetch(context.Background(), model.NewDate(2024, time.March, 14))
	if !errors.Is(err, ErrNotYetPosted) {
		t.Fatalf("error = %v, want ErrNotYetPosted", err)
	}
	if src.calls.Load() != 0 {
		t.Errorf("source calls = %d, want 0", src.calls.Load())
	}
}

func TestFetcher_FutureUsesExchangeZone(t *testing.T) {
	src := newFakeSource()
	f := newTestFetcher(t, src, nil)
	// 02:00 UTC on the 14th is still the 13th in New York.
	f.now = func() time.Time { return time.Date(2024, time.March, 14, 2, 0, 0, 0, time.UTC) }

	_, err := f.Fetch(context.Background(), model.NewDate(2024, time.March, 14))
	if !errors.Is(err, ErrNotYetPosted) {
		t.Fatalf("error = %v, want ErrNotYetPosted", err)
	}
	if src.calls.Load() != 0 {
		t.Errorf("source calls = %d, want 0", src.calls.Load())
	}
}

func TestFetcher_CacheHitSkipsNetwork(t *testing.T) {
	src := newFakeSource()
	date := model.NewDate(2024, time.March, 12)
	src.set(date, "39005.49")
	f := newTestFetcher(t, src, nil)

	for i := 0; i < 3; i++ {
		v, err := f.Fetch(context.Background(), date)
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if !v.Equal(decimal.RequireFromString("39005.49")) {
			t.Errorf("value = %s, want 39005.49", v)
		}
	}
	if src.calls.Load() != 1 {
		t.Errorf("source calls = %d, want 1", src.calls.Load())
	}
}

func TestFetcher_StoreTier(t *testing.T) {
	date := model.NewDate(2024, time.March, 12)

	t.Run("store hit skips source", func(t *testing.T) {
		src := newFakeSource()
		store := newFakeStore()
		store.values[date] = decimal.RequireFromString("39005.49")
		f := newTestFetcher(t, src, store)

		if _, err := f.Fetch(context.Background(), date); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if src.calls.Load() != 0 {
			t.Errorf("source calls = %d, want 0", src.calls.Load())
		}
		if f.cache.Len() != 1 {
			t.Errorf("cache Len() = %d, want 1", f.cache.Len())
		}
	})

	t.Run("source success writes store", func(t *testing.T) {
		src := newFakeSource()
		src.set(date, "39005.49")
		store := newFakeStore()
		f := newTestFetcher(t, src, store)

		if _, err := f.Fetch(context.Background(), date); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if store.puts != 1 {
			t.Errorf("store puts = %d, want 1", store.puts)
		}
	})
}

func TestFetcher_FailureNotCached(t *testing.T) {
	src := newFakeSource()
	date := model.NewDate(2024, time.March, 13)
	f := newTestFetcher(t, src, nil)

	if _, err := f.Fetch(context.Background(), date); !errors.Is(err, ErrNotYetPosted) {
		t.Fatalf("error = %v, want ErrNotYetPosted", err)
	}

	src.set(date, "39043.32")
	v, err := f.Fetch(context.Background(), date)
	if err != nil {
		t.Fatalf("Fetch after posting failed: %v", err)
	}
	if !v.Equal(decimal.RequireFromString("39043.32")) {
		t.Errorf("value = %s, want 39043.32", v)
	}
}

func TestFetcher_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
		code model.ResponseCode
	}{
		{
			name: "not available",
			err:  api.ErrNotAvailable,
			want: ErrNotYetPosted, code: model.ResponseNotYetPosted,
		},
		{
			name: "404",
			err:  &api.APIError{StatusCode: http.StatusNotFound},
			want: ErrNotYetPosted, code: model.ResponseNotYetPosted,
		},
		{
			name: "dns failure",
			err:  &net.DNSError{Err: "no such host", Name: "geo.crox.net"},
			want: ErrNoConnection, code: model.ResponseNoConnection,
		},
		{
			name: "dial failure",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: network is unreachable")},
			want: ErrNoConnection, code: model.ResponseNoConnection,
		},
		{
			name: "server error",
			err:  &api.APIError{StatusCode: http.StatusBadGateway},
			want: ErrNetwork, code: model.ResponseNetworkError,
		},
		{
			name: "malformed body",
			err:  api.ErrMalformedValue,
			want: ErrNetwork, code: model.ResponseNetworkError,
		},
		{
			name: "read timeout",
			err:  &net.OpError{Op: "read", Net: "tcp", Err: errors.New("i/o timeout")},
			want: ErrNetwork, code: model.ResponseNetworkError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.err = tt.err
			f := newTestFetcher(t, src, nil)

			_, err := f.Fetch(context.Background(), model.NewDate(2024, time.March, 12))
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if got := CodeOf(err); got != tt.code {
				t.Errorf("CodeOf = %v, want %v", got, tt.code)
			}

			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("error %T is not *FetchError", err)
			}
			if !errors.Is(fe, tt.err) && !errors.Is(err, tt.err) {
				t.Errorf("FetchError does not wrap source error %v", tt.err)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != model.ResponseOK {
		t.Errorf("CodeOf(nil) = %v, want ok", CodeOf(nil))
	}
	if CodeOf(errors.New("other")) != model.ResponseNetworkError {
		t.Errorf("CodeOf(other) = %v, want network_error", CodeOf(errors.New("other")))
	}
}
