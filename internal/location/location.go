// Package location holds device location fixes and the distance helpers the
// modes use to react to them.
package location

import (
	"math"
	"time"

	"github.com/rickgao/geohash/internal/model"
)

const (
	// EarthRadius is the mean radius in meters.
	EarthRadius = 6371008.8

	// LowAccuracyThreshold is the accuracy (meters) past which a fix is too
	// coarse to report distances from.
	LowAccuracyThreshold = 64.0

	// DefaultStaleness is how old a fix may be and still count as fresh.
	DefaultStaleness = 5 * time.Minute
)

// Fix is a single location reading.
type Fix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters, 0 when unknown
	Time      time.Time
}

// Source supplies the last known fix.
type Source interface {
	LastKnown() (Fix, bool)
}

// IsFresh reports whether f is no older than staleness at now.
func (f Fix) IsFresh(now time.Time, staleness time.Duration) bool {
	if f.Time.IsZero() {
		return false
	}
	return now.Sub(f.Time) <= staleness
}

// IsAccurate reports whether the fix is within LowAccuracyThreshold.
func (f Fix) IsAccurate() bool {
	return f.Accuracy > 0 && f.Accuracy <= LowAccuracyThreshold
}

// Graticule returns the cell containing the fix.
func (f Fix) Graticule() model.Graticule {
	return model.GraticuleFromCoordinates(f.Latitude, f.Longitude)
}

// DistanceTo returns the great-circle distance in meters to a point.
func (f Fix) DistanceTo(lat, lon float64) float64 {
	return Distance(f.Latitude, f.Longitude, lat, lon)
}

// Distance returns the haversine distance in meters between two points.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	dφ := (lat2 - lat1) * math.Pi / 180
	dλ := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dφ/2)*math.Sin(dφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(dλ/2)*math.Sin(dλ/2)
	return 2 * EarthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Closest returns the index of the Info nearest to f, or -1 for none.
func Closest(f Fix, infos []model.Info) int {
	best := -1
	bestDist := math.Inf(1)
	for i, info := range infos {
		if d := f.DistanceTo(info.Latitude(), info.Longitude()); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
