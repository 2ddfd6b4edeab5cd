package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geohash"

var (
	// Registry holds the application collectors.
	Registry = prometheus.NewRegistry()

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock_cache",
			Name:      "lookups_total",
			Help:      "Stock cache lookups by result.",
		},
		[]string{"result"},
	)

	cacheConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock_cache",
			Name:      "conflicts_total",
			Help:      "Puts rejected because a different value was already cached.",
		},
	)

	fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "fetches_total",
			Help:      "Market value fetches by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stock",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of market value fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"tier"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "queue_depth",
			Help:      "Requests waiting for a worker.",
		},
	)

	responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "service",
			Name:      "responses_total",
			Help:      "Responses produced by the stock service.",
		},
		[]string{"code", "alarm"},
	)

	outstanding = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "correlator",
			Name:      "outstanding_requests",
			Help:      "Requests issued and not yet resolved.",
		},
	)

	discards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "correlator",
			Name:      "discards_total",
			Help:      "Responses dropped by the correlator.",
		},
		[]string{"reason"},
	)

	sessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "sessions",
			Help:      "Open request/response channel sessions.",
		},
	)

	prefetchRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "runs_total",
			Help:      "Background prefetch runs.",
		},
		[]string{"success"},
	)

	prefetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "run_duration_seconds",
			Help:      "Duration of background prefetch runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(
		cacheLookups,
		cacheConflicts,
		fetches,
		fetchDuration,
		queueDepth,
		responses,
		outstanding,
		discards,
		sessions,
		prefetchRuns,
		prefetchDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordCacheLookup counts a stock cache lookup.
func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// RecordCacheConflict counts a rejected conflicting put.
func RecordCacheConflict() {
	cacheConflicts.Inc()
}

// RecordFetch records a fetch against one tier ("store" or "source").
func RecordFetch(tier, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	fetches.WithLabelValues(tier, outcome).Inc()
	fetchDuration.WithLabelValues(tier).Observe(duration.Seconds())
}

// SetQueueDepth reports the service queue length.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// RecordResponse counts a service response.
func RecordResponse(code string, alarm bool) {
	responses.WithLabelValues(code, strconv.FormatBool(alarm)).Inc()
}

// SetOutstanding reports the correlator's outstanding set size.
func SetOutstanding(n int) {
	outstanding.Set(float64(n))
}

// RecordDiscard counts a dropped response ("stale", "alarm", "superseded").
func RecordDiscard(reason string) {
	discards.WithLabelValues(reason).Inc()
}

// SessionOpened and SessionClosed track channel sessions.
func SessionOpened() { sessions.Inc() }

func SessionClosed() { sessions.Dec() }

// RecordPrefetch records a background prefetch run.
func RecordPrefetch(success bool, duration time.Duration) {
	prefetchRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
	prefetchDuration.Observe(duration.Seconds())
}
