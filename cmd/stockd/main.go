package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/geohash/internal/api"
	"github.com/rickgao/geohash/internal/config"
	"github.com/rickgao/geohash/internal/connection"
	"github.com/rickgao/geohash/internal/database"
	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
	"github.com/rickgao/geohash/internal/poller"
	"github.com/rickgao/geohash/internal/stock"
	"github.com/rickgao/geohash/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	backfill := flag.Int("backfill", 0, "store the last N days of market values and exit (requires database)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting stockd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}
	logger = logger.With("instance_id", cfg.Instance.ID)

	logger.Info("configuration loaded",
		"source_url", cfg.Source.URL,
		"database", cfg.Database.Enabled,
		"background", cfg.Background.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var (
		pool  *pgxpool.Pool
		store *database.MarketStore
	)
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		var err error
		pool, err = database.Connect(ctx, cfg.Database.DBConfig)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store = database.NewMarketStore(pool, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
	}

	client := api.NewClient(
		cfg.Source.URL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Source.Timeout),
		api.WithRetries(cfg.Source.MaxRetries, cfg.Source.RetryBackoff),
		api.WithUserAgent(cfg.Source.UserAgent),
	)

	if *backfill > 0 {
		if store == nil {
			logger.Error("backfill needs database.enabled")
			os.Exit(1)
		}
		if err := runBackfill(ctx, client, store, *backfill, logger); err != nil {
			logger.Error("backfill failed", "error", err)
			os.Exit(1)
		}
		return
	}

	cache, err := stock.NewCache(cfg.Cache.MaxEntries, logger)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}

	var storeTier stock.Store
	if store != nil {
		storeTier = store
	}
	fetcher := stock.NewFetcher(stock.FetcherConfig{Timeout: cfg.Source.Timeout}, cache, client, storeTier, logger)

	service := stock.NewService(stock.ServiceConfig{
		Workers:      cfg.Service.Workers,
		QueueSize:    cfg.Service.QueueSize,
		FetchTimeout: cfg.Service.FetchTimeout,
		Location:     stock.ExchangeLocation(),
	}, fetcher, logger)
	if err := service.Start(ctx); err != nil {
		logger.Error("failed to start stock service", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		service.Stop(shutdownCtx)
	}()

	if cfg.Background.Enabled {
		cells, err := cfg.Background.ParsedGraticules()
		if err != nil {
			logger.Error("invalid background graticules", "error", err)
			os.Exit(1)
		}
		p, err := poller.New(poller.Config{
			Schedule:    cfg.Background.Schedule,
			Graticules:  cells,
			Globalhash:  cfg.Background.Globalhash,
			Days:        cfg.Background.Days,
			Concurrency: cfg.Background.Concurrency,
			RunOnStart:  true,
		}, service, nil, logger)
		if err != nil {
			logger.Error("failed to create poller", "error", err)
			os.Exit(1)
		}
		if err := p.Start(ctx); err != nil {
			logger.Error("failed to start poller", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			p.Stop(shutdownCtx)
		}()
	}

	wsServer := connection.NewServer(connection.ServerConfig{Path: cfg.Server.WSPath}, service, logger)
	mux := wsServer.Mux()
	mux.Handle("/health", healthHandler(pool, service, wsServer))

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting websocket server", "addr", cfg.Server.ListenAddr, "path", cfg.Server.WSPath)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("websocket server error", "error", err)
			cancel()
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, metrics.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	logger.Info("stockd running",
		"ws_url", fmt.Sprintf("ws://localhost%s%s", cfg.Server.ListenAddr, cfg.Server.WSPath),
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	wsServer.Close()
	httpServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("stockd stopped")
}

// runBackfill stores the values posted over the last days trading days.
func runBackfill(ctx context.Context, client *api.Client, store *database.MarketStore, days int, logger *slog.Logger) error {
	today := model.Today(stock.ExchangeLocation())

	var rows []database.Row
	for i := 0; i < days; i++ {
		date := today.AddDays(-i)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		v, err := client.GetOpening(ctx, date)
		if errors.Is(err, api.ErrNotAvailable) {
			logger.Info("no value posted", "date", date)
			continue
		}
		if err != nil {
			return fmt.Errorf("fetch %s: %w", date, err)
		}
		rows = append(rows, database.Row{Date: date, Value: v})
	}

	conflicts, err := store.PutValues(ctx, rows)
	if err != nil {
		return err
	}
	logger.Info("backfill complete", "stored", len(rows)-conflicts, "existing", conflicts)
	return nil
}

// healthHandler reports service, session and database state.
func healthHandler(pool *pgxpool.Pool, service *stock.Service, ws *connection.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := service.Stats()
		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status: "healthy",
			Components: map[string]interface{}{
				"service": map[string]interface{}{
					"pending":  stats.Pending,
					"capacity": stats.Capacity,
				},
				"sessions": ws.Sessions(),
			},
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "degraded"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})
}
