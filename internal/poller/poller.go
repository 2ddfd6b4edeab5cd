package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
	"github.com/rickgao/geohash/internal/stock"
)

// Submitter queues a request. *stock.Service implements it.
type Submitter interface {
	Submit(req model.Request, handler stock.Handler) error
}

// Sink receives every prefetch response after it has been recorded. Alarm
// responses handed to a Correlator are discarded there.
type Sink func(model.Response)

// Config holds poller configuration.
type Config struct {
	Schedule    string            // cron spec (default: every 15 minutes on weekdays)
	Graticules  []model.Graticule // cells to keep warm
	Globalhash  bool              // also prefetch the Globalhash
	Days        int               // days back from today to prefetch, today included (default: 2)
	Concurrency int               // max in-flight submissions (default: 4)
	Timeout     time.Duration     // per-response wait (default: 1m)
	Location    *time.Location    // zone for the schedule and "today" (default: America/New_York)
	RunOnStart  bool              // poll once immediately on Start
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Schedule:    "*/15 * * * MON-FRI",
		Days:        2,
		Concurrency: 4,
		Timeout:     time.Minute,
		Location:    stock.ExchangeLocation(),
	}
}

// Poller periodically prefetches destinations through the stock service.
type Poller struct {
	cfg     Config
	service Submitter
	sink    Sink
	logger  *slog.Logger
	now     func() time.Time

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. sink may be nil.
func New(cfg Config, service Submitter, sink Sink, logger *slog.Logger) (*Poller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	p := &Poller{
		cfg:     cfg,
		service: service,
		sink:    sink,
		logger:  logger.With("component", "poller"),
		now:     time.Now,
	}
	p.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger{p.logger}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{p.logger})),
	)
	if _, err := p.cron.AddFunc(cfg.Schedule, p.pollAll); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
	}
	return p, nil
}

// Start begins the schedule.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	if p.cfg.RunOnStart {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.pollAll()
		}()
	}
	p.cron.Start()

	p.logger.Info("prefetch poller started",
		"schedule", p.cfg.Schedule,
		"graticules", len(p.cfg.Graticules),
		"globalhash", p.cfg.Globalhash,
	)
	return nil
}

// Stop halts the schedule and waits for a running poll to finish.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	cronDone := p.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("prefetch poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests returns the prefetch requests for the given day.
func (p *Poller) Requests(today model.Date) []model.Request {
	var reqs []model.Request
	for d := 0; d < p.cfg.Days; d++ {
		date := today.AddDays(-d)
		for _, g := range p.cfg.Graticules {
			reqs = append(reqs, model.NewRequest(&g, date, model.FlagAlarm))
		}
		if p.cfg.Globalhash {
			reqs = append(reqs, model.NewRequest(nil, date, model.FlagAlarm))
		}
	}
	return reqs
}

// pollAll submits every prefetch request with bounded concurrency.
func (p *Poller) pollAll() {
	start := time.Now()
	today := model.DateOf(p.now().In(p.cfg.Location))

	reqs := p.Requests(today)
	if len(reqs) == 0 {
		p.logger.Debug("nothing to prefetch")
		return
	}

	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, req := range reqs {
		wg.Add(1)
		go func(req model.Request) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.prefetch(req); err != nil {
				p.logger.Debug("prefetch failed",
					"date", req.Date,
					"graticule", req.Graticule,
					"err", err,
				)
				failed.Add(1)
				return
			}
			fetched.Add(1)
		}(req)
	}

	wg.Wait()

	p.logger.Info("prefetch cycle complete",
		"requests", len(reqs),
		"fetched", fetched.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
}

// prefetch submits one request and waits for its response.
func (p *Poller) prefetch(req model.Request) error {
	start := time.Now()
	result := make(chan model.Response, 1)

	if err := p.service.Submit(req, func(resp model.Response) { result <- resp }); err != nil {
		metrics.RecordPrefetch(false, time.Since(start))
		return fmt.Errorf("submit: %w", err)
	}

	timer := time.NewTimer(p.cfg.Timeout)
	defer timer.Stop()

	select {
	case resp := <-result:
		ok := resp.Code == model.ResponseOK
		metrics.RecordPrefetch(ok, time.Since(start))
		if p.sink != nil {
			p.sink(resp)
		}
		if !ok {
			return fmt.Errorf("lookup %s", resp.Code)
		}
		return nil
	case <-timer.C:
		metrics.RecordPrefetch(false, time.Since(start))
		return fmt.Errorf("no response within %s", p.cfg.Timeout)
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// cronLogger routes cron's logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
