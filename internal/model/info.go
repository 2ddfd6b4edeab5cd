package model

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidCellState marks an Info built with contradictory cell flags. It is
// only ever raised through panic.
var ErrInvalidCellState = errors.New("invalid cell state")

// InfoParams carries the fields of an Info under construction.
type InfoParams struct {
	Graticule  *Graticule // nil for a Globalhash
	Globalhash bool
	Date       Date            // adventure date
	StockDate  Date            // date the market value was posted for
	Value      decimal.Decimal // market value that seeded the hash
	Latitude   float64
	Longitude  float64
	Retro      bool
}

// Info is a computed destination. It is immutable once built.
type Info struct {
	graticule  Graticule
	globalhash bool
	date       Date
	stockDate  Date
	value      decimal.Decimal
	lat        float64
	lon        float64
	retro      bool
}

// NewInfo builds an Info. It panics with ErrInvalidCellState when a graticule
// is supplied together with the Globalhash flag, or when neither is.
func NewInfo(p InfoParams) Info {
	if p.Graticule != nil && p.Globalhash {
		panic(fmt.Errorf("%w: graticule %s with globalhash flag", ErrInvalidCellState, p.Graticule))
	}
	if p.Graticule == nil && !p.Globalhash {
		panic(fmt.Errorf("%w: no graticule and no globalhash flag", ErrInvalidCellState))
	}

	info := Info{
		globalhash: p.Globalhash,
		date:       p.Date,
		stockDate:  p.StockDate,
		value:      p.Value,
		lat:        p.Latitude,
		lon:        p.Longitude,
		retro:      p.Retro,
	}
	if p.Graticule != nil {
		info.graticule = *p.Graticule
	}
	return info
}

// Graticule returns the cell, or nil for a Globalhash.
func (i Info) Graticule() *Graticule {
	if i.globalhash {
		return nil
	}
	g := i.graticule
	return &g
}

func (i Info) IsGlobalhash() bool { return i.globalhash }

func (i Info) Date() Date { return i.date }

func (i Info) StockDate() Date { return i.stockDate }

func (i Info) Value() decimal.Decimal { return i.value }

func (i Info) Latitude() float64 { return i.lat }

func (i Info) Longitude() float64 { return i.lon }

// IsRetro reports whether the adventure date was not today when computed.
func (i Info) IsRetro() bool { return i.retro }

// Params returns the fields of i, suitable for re-encoding.
func (i Info) Params() InfoParams {
	return InfoParams{
		Graticule:  i.Graticule(),
		Globalhash: i.globalhash,
		Date:       i.date,
		StockDate:  i.stockDate,
		Value:      i.value,
		Latitude:   i.lat,
		Longitude:  i.lon,
		Retro:      i.retro,
	}
}

// Equal reports whether two Infos describe the same destination.
func (i Info) Equal(o Info) bool {
	return i.graticule == o.graticule &&
		i.globalhash == o.globalhash &&
		i.date == o.date &&
		i.stockDate == o.stockDate &&
		i.value.Equal(o.value) &&
		i.lat == o.lat &&
		i.lon == o.lon &&
		i.retro == o.retro
}

func (i Info) String() string {
	cell := "globalhash"
	if !i.globalhash {
		cell = i.graticule.String()
	}
	return fmt.Sprintf("%s %s (%.6f, %.6f)", i.date, cell, i.lat, i.lon)
}
