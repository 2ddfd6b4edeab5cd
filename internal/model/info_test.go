package model

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewInfo_Accessors(t *testing.T) {
	g := MustGraticule(37, -122)
	date := NewDate(2005, time.May, 26)

	info := NewInfo(InfoParams{
		Graticule: &g,
		Date:      date,
		StockDate: date,
		Value:     decimal.RequireFromString("10458.68"),
		Latitude:  37.857713,
		Longitude: -122.544543,
		Retro:     true,
	})

	if info.IsGlobalhash() {
		t.Error("IsGlobalhash() = true, want false")
	}
	if got := info.Graticule(); got == nil || *got != g {
		t.Errorf("Graticule() = %v, want %v", got, g)
	}
	if !info.IsRetro() {
		t.Error("IsRetro() = false, want true")
	}
	if info.Date() != date {
		t.Errorf("Date() = %v, want %v", info.Date(), date)
	}

	// Mutating the returned pointer must not leak into the Info.
	p := info.Graticule()
	*p = MustGraticule(1, 1)
	if got := info.Graticule(); *got != g {
		t.Errorf("Graticule() after mutation = %v, want %v", got, g)
	}
}

func TestNewInfo_Globalhash(t *testing.T) {
	info := NewInfo(InfoParams{
		Globalhash: true,
		Date:       NewDate(2020, time.January, 2),
	})

	if !info.IsGlobalhash() {
		t.Error("IsGlobalhash() = false, want true")
	}
	if info.Graticule() != nil {
		t.Errorf("Graticule() = %v, want nil", info.Graticule())
	}
}

func TestNewInfo_InvalidCellState(t *testing.T) {
	g := MustGraticule(1, 2)

	tests := []struct {
		name string
		p    InfoParams
	}{
		{name: "graticule and globalhash", p: InfoParams{Graticule: &g, Globalhash: true}},
		{name: "neither", p: InfoParams{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				err, ok := r.(error)
				if !ok || !errors.Is(err, ErrInvalidCellState) {
					t.Errorf("panic = %v, want ErrInvalidCellState", r)
				}
			}()
			NewInfo(tt.p)
		})
	}
}

func TestInfo_ParamsRoundTrip(t *testing.T) {
	g := MustGraticule(-33, 151)
	orig := NewInfo(InfoParams{
		Graticule: &g,
		Date:      NewDate(2021, time.March, 3),
		StockDate: NewDate(2021, time.March, 2),
		Value:     decimal.RequireFromString("31391.52"),
		Latitude:  -33.5,
		Longitude: 151.25,
	})

	back := NewInfo(orig.Params())
	if !back.Equal(orig) {
		t.Errorf("NewInfo(Params()) = %v, want %v", back, orig)
	}
}

func TestDate(t *testing.T) {
	t.Run("parse and format", func(t *testing.T) {
		d, err := ParseDate("2008-05-27")
		if err != nil {
			t.Fatalf("ParseDate failed: %v", err)
		}
		if d.String() != "2008-05-27" {
			t.Errorf("String() = %q, want %q", d.String(), "2008-05-27")
		}
	})

	t.Run("add days crosses month", func(t *testing.T) {
		d := NewDate(2024, time.March, 1).AddDays(-1)
		if d != NewDate(2024, time.February, 29) {
			t.Errorf("AddDays(-1) = %v, want 2024-02-29", d)
		}
	})

	t.Run("request id is stable per day", func(t *testing.T) {
		a := DateOf(time.Date(2024, time.June, 1, 3, 0, 0, 0, time.UTC))
		b := DateOf(time.Date(2024, time.June, 1, 22, 0, 0, 0, time.UTC))
		if a.RequestID() != b.RequestID() {
			t.Errorf("RequestID differs for same day: %d vs %d", a.RequestID(), b.RequestID())
		}
		if a.RequestID() == a.AddDays(1).RequestID() {
			t.Error("RequestID collides across days")
		}
	})

	t.Run("bad input", func(t *testing.T) {
		if _, err := ParseDate("2024/01/01"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestFlags(t *testing.T) {
	f := FlagUserInitiated | FlagIncludeNearby

	if !f.Has(FlagUserInitiated) {
		t.Error("Has(FlagUserInitiated) = false")
	}
	if f.Has(FlagAlarm) {
		t.Error("Has(FlagAlarm) = true")
	}
	if f.String() != "user|nearby" {
		t.Errorf("String() = %q, want %q", f.String(), "user|nearby")
	}
	if Flags(0).String() != "none" {
		t.Errorf("String() = %q, want %q", Flags(0).String(), "none")
	}
}
