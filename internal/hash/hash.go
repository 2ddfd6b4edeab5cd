package hash

import (
	"crypto/md5"
	"encoding/binary"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/model"
)

// RuleChangeDate is the first adventure date the 30W rule applies to.
var RuleChangeDate = model.NewDate(2008, time.May, 27)

// StockDate returns the date whose market value seeds the hash for the given
// adventure date and cell. A nil g (or globalhash) means the whole globe.
func StockDate(date model.Date, g *model.Graticule, globalhash bool) model.Date {
	stock := date
	if Uses30W(date, g, globalhash) {
		stock = stock.AddDays(-1)
	}

	switch stock.Weekday() {
	case time.Saturday:
		stock = stock.AddDays(-1)
	case time.Sunday:
		stock = stock.AddDays(-2)
	}
	return stock
}

// Uses30W reports whether the previous day's value applies.
func Uses30W(date model.Date, g *model.Graticule, globalhash bool) bool {
	if date.Before(RuleChangeDate) {
		return false
	}
	if globalhash || g == nil {
		return true
	}
	return g.Uses30W()
}

// Fractions returns the latitude and longitude fractions for a date and
// market value. Both are in [0,1).
func Fractions(date model.Date, value decimal.Decimal) (float64, float64) {
	sum := md5.Sum([]byte(date.String() + "-" + value.StringFixed(2)))
	return fraction(sum[:8]), fraction(sum[8:])
}

// fraction reads 8 bytes as a big-endian binary fraction, keeping 53 bits so
// the result is exactly representable and strictly below one.
func fraction(b []byte) float64 {
	u := binary.BigEndian.Uint64(b)
	return float64(u>>11) / (1 << 53)
}

// Compute builds the Info for a date, cell and market value. The value must be
// the one posted on StockDate(date, g, globalhash). today decides the retro flag.
func Compute(date model.Date, g *model.Graticule, globalhash bool, value decimal.Decimal, today model.Date) model.Info {
	if g == nil {
		globalhash = true
	}
	fLat, fLon := Fractions(date, value)

	p := model.InfoParams{
		Date:      date,
		StockDate: StockDate(date, g, globalhash),
		Value:     value,
		Retro:     !date.Equal(today),
	}

	if globalhash {
		p.Globalhash = true
		p.Latitude = fLat*180 - 90
		p.Longitude = fLon*360 - 180
		return model.NewInfo(p)
	}

	cell := *g
	p.Graticule = &cell
	p.Latitude = applyBand(cell.LatitudeMagnitude(), cell.IsSouth(), fLat)
	p.Longitude = applyBand(cell.LongitudeMagnitude(), cell.IsWest(), fLon)
	return model.NewInfo(p)
}

func applyBand(mag int, negative bool, f float64) float64 {
	v := float64(mag) + f
	if negative {
		return -v
	}
	return v
}

// Nearby returns the eight graticules surrounding g, north-west first and
// row by row. Cells past a pole are omitted.
func Nearby(g model.Graticule) []model.Graticule {
	out := make([]model.Graticule, 0, 8)
	for dLat := 1; dLat >= -1; dLat-- {
		for dLon := -1; dLon <= 1; dLon++ {
			if dLat == 0 && dLon == 0 {
				continue
			}
			if n, ok := g.Offset(dLat, dLon); ok {
				out = append(out, n)
			}
		}
	}
	return out
}
