package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-stockd
source:
  url: http://localhost:9999/djia
  timeout: 5s
background:
  enabled: true
  graticules: ["52 13", "40,-74", "-0 -0"]
database:
  enabled: true
  host: localhost
  port: 5432
  name: geohash
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-stockd" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-stockd")
	}
	if cfg.Source.URL != "http://localhost:9999/djia" {
		t.Errorf("Source.URL = %q", cfg.Source.URL)
	}
	if cfg.Source.Timeout != 5*time.Second {
		t.Errorf("Source.Timeout = %v, want 5s", cfg.Source.Timeout)
	}
	if !cfg.Database.Enabled || cfg.Database.Host != "localhost" {
		t.Errorf("Database = %+v", cfg.Database)
	}

	cells, err := cfg.Background.ParsedGraticules()
	if err != nil {
		t.Fatalf("ParsedGraticules failed: %v", err)
	}
	var got []string
	for _, g := range cells {
		got = append(got, g.String())
	}
	if strings.Join(got, "|") != "52 13|40 -74|-0 -0" {
		t.Errorf("graticules = %v", got)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_SOURCE", "https://example.com/djia")

	yaml := `
instance:
  id: test-stockd
source:
  url: ${TEST_SOURCE}
database:
  host: localhost
  name: geohash
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
	if cfg.Source.URL != "https://example.com/djia" {
		t.Errorf("Source.URL = %q", cfg.Source.URL)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "instance:\n  id: test-stockd\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Source.URL != DefaultSourceURL {
		t.Errorf("Source.URL = %q, want default %q", cfg.Source.URL, DefaultSourceURL)
	}
	if cfg.Source.Timeout != DefaultSourceTimeout {
		t.Errorf("Source.Timeout = %v, want default %v", cfg.Source.Timeout, DefaultSourceTimeout)
	}
	if cfg.Service.Workers != DefaultWorkers {
		t.Errorf("Service.Workers = %d, want default %d", cfg.Service.Workers, DefaultWorkers)
	}
	if cfg.Background.Schedule != DefaultBackgroundSchedule {
		t.Errorf("Background.Schedule = %q, want default %q", cfg.Background.Schedule, DefaultBackgroundSchedule)
	}
	if cfg.Location.Staleness != DefaultStaleness {
		t.Errorf("Location.Staleness = %v, want default %v", cfg.Location.Staleness, DefaultStaleness)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Server.WSPath != DefaultWSPath {
		t.Errorf("Server.WSPath = %q, want default %q", cfg.Server.WSPath, DefaultWSPath)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	t.Run("invalid", func(t *testing.T) {
		path := writeTempFile(t, "instance:\n  id: x\nsource:\n  url: ftp://example.com\n")
		if _, err := LoadAndValidate(path); err == nil || !strings.Contains(err.Error(), "source.url") {
			t.Errorf("LoadAndValidate error = %v, want source.url", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadAndValidate(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := writeTempFile(t, "instance: [\n")
		if _, err := LoadAndValidate(path); err == nil {
			t.Error("expected error")
		}
	})
}

func TestDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Service.Workers = 0 },
			wantErr: "service.workers must be >= 1",
		},
		{
			name: "bad schedule",
			mutate: func(c *Config) {
				c.Background.Enabled = true
				c.Background.Globalhash = true
				c.Background.Schedule = "whenever"
			},
			wantErr: "background.schedule",
		},
		{
			name: "bad background graticule",
			mutate: func(c *Config) {
				c.Background.Enabled = true
				c.Background.Graticules = []string{"95 10"}
			},
			wantErr: "background.graticules",
		},
		{
			name:    "background without targets",
			mutate:  func(c *Config) { c.Background.Enabled = true },
			wantErr: "background needs graticules or globalhash when enabled",
		},
		{
			name:    "bad last graticule",
			mutate:  func(c *Config) { c.State.LastGraticule = "north" },
			wantErr: "state.last_graticule",
		},
		{
			name:    "bad last mode",
			mutate:  func(c *Config) { c.State.LastMode = "map" },
			wantErr: `state.last_mode must be expedition or cell_selection, got "map"`,
		},
		{
			name: "database missing password",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, DBConfig: DBConfig{Host: "localhost", Name: "db", User: "user"}}
			},
			wantErr: "database.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: true, DBConfig: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "disabled database is not checked",
			mutate:  func(c *Config) { c.Database = DatabaseConfig{} },
			wantErr: "",
		},
		{
			name:    "relative ws path",
			mutate:  func(c *Config) { c.Server.WSPath = "ws" },
			wantErr: `server.ws_path must start with /, got "ws"`,
		},
		{
			name:    "metrics port",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name: "valid config",
			mutate: func(c *Config) {
				c.Background.Enabled = true
				c.Background.Graticules = []string{"52 13"}
				c.State.LastGraticule = "52 13"
				c.State.LastMode = "cell_selection"
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
			} else if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestStateConfig_Graticule(t *testing.T) {
	g, err := StateConfig{}.Graticule()
	if err != nil || g != nil {
		t.Errorf("empty Graticule() = %v, %v; want nil, nil", g, err)
	}

	g, err = StateConfig{LastGraticule: "-33 151"}.Graticule()
	if err != nil {
		t.Fatalf("Graticule failed: %v", err)
	}
	if g.String() != "-33 151" {
		t.Errorf("Graticule() = %s, want -33 151", g)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
