// Package model defines shared value types used across the geohash service.
//
// Conventions:
//   - Graticules store band magnitudes plus hemisphere flags so "-0" survives
//   - A nil *Graticule means Globalhash (the whole globe is eligible)
//   - Dates are calendar days with no time zone; RequestID is UTC-midnight millis
//   - Market values are shopspring decimals, formatted with two places
package model
