// Package hash computes geohashing destinations.
//
// Algorithm:
//   - The stock date is derived from the adventure date: cells east of 30W and
//     every Globalhash use the previous day's value from 2008-05-27 on, then
//     weekends fall back to Friday
//   - MD5 of "YYYY-MM-DD-VALUE" (adventure date, value with two decimals) seeds
//     two fractions in [0,1): the first half of the digest for latitude, the
//     second half for longitude
//   - Cells add the fractions to the band magnitude, keeping the band's sign
//   - Globalhash scales the fractions to the whole globe
//
// Everything in this package is pure and safe for concurrent use.
package hash
