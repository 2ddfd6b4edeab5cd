// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Stock cache hit/miss counts and value conflicts
//   - Fetch outcomes and latency per tier (store, source)
//   - Service queue depth and response codes
//   - Correlator outstanding requests and discards
//   - Channel sessions and background prefetch runs
package metrics
