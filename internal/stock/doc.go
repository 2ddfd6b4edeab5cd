// Package stock resolves market values and turns requests into responses.
//
// Pipeline:
//   - Cache: bounded LRU of posted values, one in-flight load per date
//   - Fetcher: cache, then the persistent store, then the market-data source;
//     failures are classified as not-yet-posted, no-connection or network
//   - Service: non-blocking Submit onto a growable queue, worker goroutines
//     compute the Info (and nearby Infos) and call the request's handler
//
// A cached value never changes. A later conflicting value is rejected with
// ErrConflictingValue and logged as an upstream data error.
package stock
