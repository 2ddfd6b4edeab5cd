// Package config loads the YAML configuration shared by the geohash binaries.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rickgao/geohash/internal/model"
)

// Config is the top-level configuration.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Source     SourceConfig     `yaml:"source"`
	Cache      CacheConfig      `yaml:"cache"`
	Service    ServiceConfig    `yaml:"service"`
	Background BackgroundConfig `yaml:"background"`
	Location   LocationConfig   `yaml:"location"`
	State      StateConfig      `yaml:"state"`
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstanceConfig identifies this process in logs.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourceConfig points at the market-data source.
type SourceConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	UserAgent    string        `yaml:"user_agent"`
}

// CacheConfig sizes the in-memory stock cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// ServiceConfig sizes the stock service.
type ServiceConfig struct {
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// BackgroundConfig drives the prefetch poller.
type BackgroundConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Schedule    string   `yaml:"schedule"`
	Graticules  []string `yaml:"graticules"` // "LAT LON", e.g. "52 -0"
	Globalhash  bool     `yaml:"globalhash"`
	Days        int      `yaml:"days"`
	Concurrency int      `yaml:"concurrency"`
}

// ParsedGraticules parses Graticules.
func (b BackgroundConfig) ParsedGraticules() ([]model.Graticule, error) {
	out := make([]model.Graticule, 0, len(b.Graticules))
	for _, s := range b.Graticules {
		g, err := model.ParseGraticuleString(s)
		if err != nil {
			return nil, fmt.Errorf("graticule %q: %w", s, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// LocationConfig tunes how location fixes are used.
type LocationConfig struct {
	Staleness    time.Duration `yaml:"staleness"`
	ClosestPoint bool          `yaml:"closest_point"`
	Language     string        `yaml:"language"`
}

// StateConfig is the state carried between runs.
type StateConfig struct {
	Path          string `yaml:"path"` // file the CLI persists its session to (optional)
	LastGraticule string `yaml:"last_graticule"`
	Globalhash    bool   `yaml:"globalhash"`
	LastMode      string `yaml:"last_mode"`
}

// Graticule parses LastGraticule. It returns nil when unset.
func (s StateConfig) Graticule() (*model.Graticule, error) {
	if strings.TrimSpace(s.LastGraticule) == "" {
		return nil, nil
	}
	g, err := model.ParseGraticuleString(s.LastGraticule)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// DatabaseConfig enables the persistent market-value store.
type DatabaseConfig struct {
	Enabled  bool `yaml:"enabled"`
	DBConfig `yaml:",inline"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ServerConfig configures the WebSocket listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	WSPath     string `yaml:"ws_path"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// Load reads a YAML file, expanding ${VAR} references from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads the file and fills unset fields with defaults.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads, applies defaults and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a file.
func Default() *Config {
	cfg := &Config{Instance: InstanceConfig{ID: "geohash"}}
	cfg.applyDefaults()
	return cfg
}
