package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	u, err := url.Parse(c.Source.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("source.url must be an http(s) URL, got %q", c.Source.URL)
	}
	if c.Source.MaxRetries < 0 {
		return errors.New("source.max_retries must be >= 0")
	}

	if c.Cache.MaxEntries < 1 {
		return errors.New("cache.max_entries must be >= 1")
	}

	if c.Service.Workers < 1 {
		return errors.New("service.workers must be >= 1")
	}
	if c.Service.QueueSize < 1 {
		return errors.New("service.queue_size must be >= 1")
	}

	if c.Background.Enabled {
		if _, err := cron.ParseStandard(c.Background.Schedule); err != nil {
			return fmt.Errorf("background.schedule: %w", err)
		}
		if _, err := c.Background.ParsedGraticules(); err != nil {
			return fmt.Errorf("background.graticules: %w", err)
		}
		if len(c.Background.Graticules) == 0 && !c.Background.Globalhash {
			return errors.New("background needs graticules or globalhash when enabled")
		}
		if c.Background.Concurrency < 1 {
			return errors.New("background.concurrency must be >= 1")
		}
	}

	if c.Location.Staleness <= 0 {
		return errors.New("location.staleness must be > 0")
	}

	if _, err := c.State.Graticule(); err != nil {
		return fmt.Errorf("state.last_graticule: %w", err)
	}
	switch c.State.LastMode {
	case "", "expedition", "cell_selection":
	default:
		return fmt.Errorf("state.last_mode must be expedition or cell_selection, got %q", c.State.LastMode)
	}

	if c.Database.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("server.ws_path must start with /, got %q", c.Server.WSPath)
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
