package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Graticule bounds (band magnitudes).
const (
	MaxLatitude  = 89
	MaxLongitude = 179
)

var (
	ErrLatitudeRange  = errors.New("graticule latitude out of range")
	ErrLongitudeRange = errors.New("graticule longitude out of range")
)

// Graticule is a one-degree cell. Values are immutable and comparable.
type Graticule struct {
	lat   int // 0..89
	lon   int // 0..179
	south bool
	west  bool
}

// NewGraticule builds a graticule from signed degrees. Negative zero cannot be
// expressed with ints; use NewGraticuleHemispheres or ParseGraticule for that.
func NewGraticule(lat, lon int) (Graticule, error) {
	return NewGraticuleHemispheres(abs(lat), lat < 0, abs(lon), lon < 0)
}

// NewGraticuleHemispheres builds a graticule from magnitudes and hemisphere flags.
func NewGraticuleHemispheres(lat int, south bool, lon int, west bool) (Graticule, error) {
	if lat < 0 || lat > MaxLatitude {
		return Graticule{}, fmt.Errorf("%w: %d", ErrLatitudeRange, lat)
	}
	if lon < 0 || lon > MaxLongitude {
		return Graticule{}, fmt.Errorf("%w: %d", ErrLongitudeRange, lon)
	}
	return Graticule{lat: lat, lon: lon, south: south, west: west}, nil
}

// MustGraticule is NewGraticule that panics on error. Intended for constants and tests.
func MustGraticule(lat, lon int) Graticule {
	g, err := NewGraticule(lat, lon)
	if err != nil {
		panic(err)
	}
	return g
}

// ParseGraticule parses strings such as "37" and "-0".
func ParseGraticule(lat, lon string) (Graticule, error) {
	latMag, south, err := parseBand(lat)
	if err != nil {
		return Graticule{}, fmt.Errorf("parse latitude: %w", err)
	}
	lonMag, west, err := parseBand(lon)
	if err != nil {
		return Graticule{}, fmt.Errorf("parse longitude: %w", err)
	}
	return NewGraticuleHemispheres(latMag, south, lonMag, west)
}

// ParseGraticuleString parses "LAT LON" or "LAT,LON".
func ParseGraticuleString(s string) (Graticule, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) != 2 {
		return Graticule{}, fmt.Errorf("graticule %q: want two fields", s)
	}
	return ParseGraticule(fields[0], fields[1])
}

// GraticuleFromCoordinates returns the graticule containing the given point.
func GraticuleFromCoordinates(lat, lon float64) Graticule {
	if lon >= 180 {
		lon -= 360
	}
	g := Graticule{
		lat:   int(math.Abs(lat)),
		lon:   int(math.Abs(lon)),
		south: math.Signbit(lat),
		west:  math.Signbit(lon),
	}
	if g.lat > MaxLatitude {
		g.lat = MaxLatitude
	}
	if g.lon > MaxLongitude {
		g.lon = MaxLongitude
	}
	return g
}

// Latitude returns the signed latitude. A southern zero band returns 0; check IsSouth.
func (g Graticule) Latitude() int {
	if g.south {
		return -g.lat
	}
	return g.lat
}

// Longitude returns the signed longitude. A western zero band returns 0; check IsWest.
func (g Graticule) Longitude() int {
	if g.west {
		return -g.lon
	}
	return g.lon
}

// LatitudeMagnitude returns the unsigned latitude band.
func (g Graticule) LatitudeMagnitude() int { return g.lat }

// LongitudeMagnitude returns the unsigned longitude band.
func (g Graticule) LongitudeMagnitude() int { return g.lon }

func (g Graticule) IsSouth() bool { return g.south }

func (g Graticule) IsWest() bool { return g.west }

// Uses30W reports whether the cell lies east of 30W, where the previous day's
// market value seeds the hash.
func (g Graticule) Uses30W() bool {
	return !g.west || g.lon < 30
}

// LatitudeString formats the latitude band, keeping "-0".
func (g Graticule) LatitudeString() string {
	return formatBand(g.lat, g.south)
}

// LongitudeString formats the longitude band, keeping "-0".
func (g Graticule) LongitudeString() string {
	return formatBand(g.lon, g.west)
}

func (g Graticule) String() string {
	return g.LatitudeString() + " " + g.LongitudeString()
}

// Offset returns the graticule dLat bands north and dLon bands east of g.
// Longitude wraps around the antimeridian. Returns false past a pole.
func (g Graticule) Offset(dLat, dLon int) (Graticule, bool) {
	li := bandIndex(g.lat, g.south) + dLat
	if li < -(MaxLatitude+1) || li > MaxLatitude {
		return Graticule{}, false
	}

	oi := bandIndex(g.lon, g.west) + dLon
	oi = ((oi+180)%360+360)%360 - 180

	latMag, south := fromBandIndex(li)
	lonMag, west := fromBandIndex(oi)
	return Graticule{lat: latMag, lon: lonMag, south: south, west: west}, true
}

// bandIndex maps a band to a contiguous index: "-0" is -1, "-1" is -2, and so on.
func bandIndex(mag int, negative bool) int {
	if negative {
		return -(mag + 1)
	}
	return mag
}

func fromBandIndex(i int) (int, bool) {
	if i < 0 {
		return -i - 1, true
	}
	return i, false
}

func parseBand(s string) (int, bool, error) {
	s = strings.TrimSpace(s)
	negative := strings.HasPrefix(s, "-")
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+"))
	if err != nil {
		return 0, false, err
	}
	if n < 0 {
		return 0, false, fmt.Errorf("band %q: bad sign", s)
	}
	return n, negative, nil
}

func formatBand(mag int, negative bool) string {
	if negative {
		return "-" + strconv.Itoa(mag)
	}
	return strconv.Itoa(mag)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// MarshalText encodes the graticule as "LAT LON".
func (g Graticule) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText decodes "LAT LON" or "LAT,LON".
func (g *Graticule) UnmarshalText(text []byte) error {
	parsed, err := ParseGraticuleString(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
