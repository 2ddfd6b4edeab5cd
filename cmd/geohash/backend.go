package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/geohash/internal/api"
	"github.com/rickgao/geohash/internal/connection"
	"github.com/rickgao/geohash/internal/model"
	"github.com/rickgao/geohash/internal/stock"
)

// backend sends requests to a stock service. Responses go to the handler the
// backend was opened with.
type backend struct {
	dispatch func(model.Request) error
	close    func()
}

// Dispatch implements correlator.Dispatcher.
func (b *backend) Dispatch(req model.Request) error {
	return b.dispatch(req)
}

func openBackend(ctx context.Context, handler stock.Handler) (*backend, error) {
	if remoteURL != "" {
		return openRemote(ctx, handler)
	}
	return openLocal(ctx, handler)
}

// openLocal runs an in-process stock service against the configured source.
func openLocal(ctx context.Context, handler stock.Handler) (*backend, error) {
	client := api.NewClient(
		cfg.Source.URL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Source.Timeout),
		api.WithRetries(cfg.Source.MaxRetries, cfg.Source.RetryBackoff),
		api.WithUserAgent(cfg.Source.UserAgent),
	)
	cache, err := stock.NewCache(cfg.Cache.MaxEntries, logger)
	if err != nil {
		return nil, err
	}
	fcfg, scfg := localConfigs(time.Local)
	fetcher := stock.NewFetcher(fcfg, cache, client, nil, logger)

	svc := stock.NewService(scfg, fetcher, logger)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("start stock service: %w", err)
	}

	return &backend{
		dispatch: func(req model.Request) error {
			return svc.Submit(req, handler)
		},
		close: func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			svc.Stop(stopCtx)
		},
	}, nil
}

// localConfigs builds the in-process fetcher and service settings. Whether a
// value can be posted yet follows the exchange calendar; "today" for the
// retro flag and banners follows the user's zone.
func localConfigs(user *time.Location) (stock.FetcherConfig, stock.ServiceConfig) {
	fcfg := stock.FetcherConfig{
		Timeout:  cfg.Source.Timeout,
		Exchange: stock.ExchangeLocation(),
	}
	scfg := stock.ServiceConfig{
		Workers:      cfg.Service.Workers,
		QueueSize:    cfg.Service.QueueSize,
		FetchTimeout: cfg.Service.FetchTimeout,
		Location:     user,
	}
	return fcfg, scfg
}

// openRemote connects to a stockd server.
func openRemote(ctx context.Context, handler stock.Handler) (*backend, error) {
	ccfg := connection.DefaultClientConfig()
	ccfg.URL = remoteURL
	ccfg.UserAgent = cfg.Source.UserAgent

	client := connection.NewClient(ccfg, logger)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	remote := connection.NewRemote(client, handler, logger)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := remote.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("remote session ended", "error", err)
		}
	}()

	return &backend{
		dispatch: remote.Dispatch,
		close: func() {
			cancel()
			client.Close()
			<-done
		},
	}, nil
}
