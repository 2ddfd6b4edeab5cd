package stock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/geohash/internal/hash"
	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
)

// Valuer resolves the market value for a stock date.
type Valuer interface {
	Fetch(ctx context.Context, date model.Date) (decimal.Decimal, error)
}

// Handler receives the response for a submitted request. It is called from a
// worker goroutine.
type Handler func(model.Response)

// ServiceConfig holds service configuration.
type ServiceConfig struct {
	Workers      int            // concurrent requests (default: 4)
	QueueSize    int            // initial queue capacity (default: 64)
	FetchTimeout time.Duration  // per request, nearby included (default: 45s)
	Location     *time.Location // zone deciding "today" for the retro flag (default: Local)
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers:      4,
		QueueSize:    64,
		FetchTimeout: 45 * time.Second,
		Location:     time.Local,
	}
}

type job struct {
	req     model.Request
	handler Handler
	queued  time.Time
}

// Service computes Infos for requests on worker goroutines.
type Service struct {
	cfg    ServiceConfig
	values Valuer
	queue  *queue[job]
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a Service. Call Start before Submit results are processed.
func NewService(cfg ServiceConfig, values Valuer, logger *slog.Logger) *Service {
	def := DefaultServiceConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:    cfg,
		values: values,
		queue:  newQueue[job](cfg.QueueSize),
		logger: logger,
		now:    time.Now,
	}
}

// Start launches the workers.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.logger.Info("stock service started", "workers", s.cfg.Workers)
	return nil
}

// Stop closes the queue and waits for the workers to drain it. If ctx ends
// first, in-flight fetches are cancelled.
func (s *Service) Stop(ctx context.Context) error {
	s.queue.close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Info("stock service stopped")
		return nil
	case <-ctx.Done():
		if s.cancel != nil {
			s.cancel()
		}
		return ctx.Err()
	}
}

// Submit enqueues a request without blocking. handler is called exactly once
// with the response unless the service is stopped first.
func (s *Service) Submit(req model.Request, handler Handler) error {
	if !s.queue.push(job{req: req, handler: handler, queued: s.now()}) {
		return ErrServiceStopped
	}
	metrics.SetQueueDepth(s.queue.len())
	return nil
}

// Stats returns queue statistics.
func (s *Service) Stats() QueueStats {
	return s.queue.stats()
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	for {
		j, ok := s.queue.pop()
		if !ok {
			return
		}
		metrics.SetQueueDepth(s.queue.len())

		resp := s.Process(s.ctx, j.req)
		metrics.RecordResponse(resp.Code.String(), resp.Flags.Has(model.FlagAlarm))

		s.logger.Debug("request processed",
			"worker", id,
			"id", j.req.ID,
			"date", j.req.Date,
			"code", resp.Code,
			"wait", time.Since(j.queued),
		)

		if j.handler != nil {
			j.handler(resp)
		}
	}
}

// Process resolves a single request synchronously.
func (s *Service) Process(ctx context.Context, req model.Request) model.Response {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	resp := model.Response{
		RequestID: req.ID,
		Flags:     req.Flags,
		Date:      req.Date,
		Graticule: req.Graticule,
	}

	today := model.DateOf(s.now().In(s.cfg.Location))
	info, err := s.compute(ctx, req.Date, req.Graticule, today)
	if err != nil {
		resp.Code = CodeOf(err)
		s.logger.Debug("request failed", "id", req.ID, "date", req.Date, "err", err)
		return resp
	}
	resp.Code = model.ResponseOK
	resp.Info = &info

	if req.Flags.Has(model.FlagIncludeNearby) && req.Graticule != nil {
		resp.Nearby = s.nearby(ctx, req.Date, *req.Graticule, today)
	}
	return resp
}

func (s *Service) compute(ctx context.Context, date model.Date, g *model.Graticule, today model.Date) (model.Info, error) {
	globalhash := g == nil
	v, err := s.values.Fetch(ctx, hash.StockDate(date, g, globalhash))
	if err != nil {
		return model.Info{}, err
	}
	return hash.Compute(date, g, globalhash, v, today), nil
}

// nearby computes the surrounding cells. Cells on the other side of 30W use a
// different stock date, so each one is fetched on its own. Failed cells are
// left out.
func (s *Service) nearby(ctx context.Context, date model.Date, g model.Graticule, today model.Date) []model.Info {
	cells := hash.Nearby(g)
	results := make([]*model.Info, len(cells))

	var eg errgroup.Group
	eg.SetLimit(s.cfg.Workers)
	for i, cell := range cells {
		eg.Go(func() error {
			info, err := s.compute(ctx, date, &cell, today)
			if err != nil {
				s.logger.Debug("nearby cell failed", "graticule", cell, "date", date, "err", err)
				return nil
			}
			results[i] = &info
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]model.Info, 0, len(cells))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
