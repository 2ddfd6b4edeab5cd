// Package poller implements background prefetching of market values.
//
// The Prefetch Poller:
//   - Runs on a cron schedule in the exchange's time zone
//   - Requests today's and yesterday's destinations for each configured
//     graticule (and the Globalhash when enabled) with the alarm flag, so
//     the stock cache is warm before anyone asks
//   - Bounds concurrent submissions with a semaphore
//   - Records every outcome in metrics; failures are only logged
package poller
