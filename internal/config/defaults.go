package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultSourceURL          = "http://geo.crox.net/djia"
	DefaultSourceTimeout      = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultRetryBackoff       = 500 * time.Millisecond
	DefaultUserAgent          = "geohash-stockd"
	DefaultCacheEntries       = 512
	DefaultWorkers            = 4
	DefaultQueueSize          = 64
	DefaultFetchTimeout       = 45 * time.Second
	DefaultBackgroundSchedule = "*/15 * * * MON-FRI"
	DefaultBackgroundDays     = 2
	DefaultPollConcurrency    = 4
	DefaultStaleness          = 5 * time.Minute
	DefaultLanguage           = "en"
	DefaultLastMode           = "expedition"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultListenAddr         = ":8080"
	DefaultWSPath             = "/ws"
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *Config) applyDefaults() {
	// Source defaults
	if c.Source.URL == "" {
		c.Source.URL = DefaultSourceURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = DefaultSourceTimeout
	}
	if c.Source.MaxRetries == 0 {
		c.Source.MaxRetries = DefaultMaxRetries
	}
	if c.Source.RetryBackoff == 0 {
		c.Source.RetryBackoff = DefaultRetryBackoff
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = DefaultUserAgent
	}

	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultCacheEntries
	}

	// Service defaults
	if c.Service.Workers == 0 {
		c.Service.Workers = DefaultWorkers
	}
	if c.Service.QueueSize == 0 {
		c.Service.QueueSize = DefaultQueueSize
	}
	if c.Service.FetchTimeout == 0 {
		c.Service.FetchTimeout = DefaultFetchTimeout
	}

	// Background defaults
	if c.Background.Schedule == "" {
		c.Background.Schedule = DefaultBackgroundSchedule
	}
	if c.Background.Days == 0 {
		c.Background.Days = DefaultBackgroundDays
	}
	if c.Background.Concurrency == 0 {
		c.Background.Concurrency = DefaultPollConcurrency
	}

	if c.Location.Staleness == 0 {
		c.Location.Staleness = DefaultStaleness
	}
	if c.Location.Language == "" {
		c.Location.Language = DefaultLanguage
	}
	if c.State.LastMode == "" {
		c.State.LastMode = DefaultLastMode
	}

	applyDBDefaults(&c.Database.DBConfig)

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.WSPath == "" {
		c.Server.WSPath = DefaultWSPath
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
