// Package database provides the PostgreSQL tier beneath the stock cache.
//
// Market values are immutable once posted, so the table is append-only:
//   - market_values: one row per stock date, written with ON CONFLICT DO
//     NOTHING
//   - A second, different value for a stored date is reported as a conflict
//     and never overwrites the first
package database
