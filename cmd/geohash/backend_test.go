package main

import (
	"testing"
	"time"

	"github.com/rickgao/geohash/internal/config"
	"github.com/rickgao/geohash/internal/stock"
)

func TestLocalConfigs_Zones(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = config.Default()

	user := time.FixedZone("UTC+10", 10*60*60)
	fcfg, scfg := localConfigs(user)

	if fcfg.Exchange == nil || fcfg.Exchange.String() != stock.ExchangeLocation().String() {
		t.Errorf("fetcher Exchange = %v, want %v", fcfg.Exchange, stock.ExchangeLocation())
	}
	if scfg.Location != user {
		t.Errorf("service Location = %v, want %v", scfg.Location, user)
	}
	if fcfg.Timeout != cfg.Source.Timeout {
		t.Errorf("fetcher Timeout = %v, want %v", fcfg.Timeout, cfg.Source.Timeout)
	}
	if scfg.Workers != cfg.Service.Workers || scfg.QueueSize != cfg.Service.QueueSize {
		t.Errorf("service pool = %d/%d, want %d/%d", scfg.Workers, scfg.QueueSize, cfg.Service.Workers, cfg.Service.QueueSize)
	}
}
