package correlator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/geohash/internal/metrics"
	"github.com/rickgao/geohash/internal/model"
)

// ErrNoDispatcher is returned by Issue when no dispatcher is configured.
var ErrNoDispatcher = errors.New("no dispatcher configured")

// Dispatcher sends a request towards the stock service. The response must
// eventually come back through Resolve.
type Dispatcher interface {
	Dispatch(req model.Request) error
}

// DispatchFunc is a function adapter for Dispatcher.
type DispatchFunc func(model.Request) error

func (f DispatchFunc) Dispatch(req model.Request) error {
	return f(req)
}

// Consumer receives accepted responses. It should check IsCurrent(epoch)
// under its own lock before acting.
type Consumer interface {
	HandleInfo(epoch uint64, info model.Info, nearby []model.Info, flags model.Flags)
	HandleLookupFailure(epoch uint64, code model.ResponseCode, date model.Date, flags model.Flags)
}

// Notifier surfaces failures of user-initiated requests.
type Notifier interface {
	NotifyFailure(code model.ResponseCode, date model.Date, isToday bool)
}

type outstanding struct {
	req    model.Request
	issued time.Time
}

// Correlator is safe for concurrent use.
type Correlator struct {
	dispatch Dispatcher
	notifier Notifier
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time

	mu       sync.Mutex
	pending  map[int64]outstanding
	epoch    uint64
	consumer Consumer
}

// Config holds correlator configuration.
type Config struct {
	// Location decides what "today" means for notifications (default: Local).
	Location *time.Location
	// Now overrides the clock. Optional.
	Now func() time.Time
}

// New creates a Correlator. notifier may be nil.
func New(cfg Config, dispatch Dispatcher, notifier Notifier, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Correlator{
		dispatch: dispatch,
		notifier: notifier,
		logger:   logger,
		location: cfg.Location,
		now:      cfg.Now,
		pending:  make(map[int64]outstanding),
	}
}

// SetConsumer replaces the consumer that receives deliveries.
func (c *Correlator) SetConsumer(consumer Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumer = consumer
}

// SetDispatcher replaces the dispatcher.
func (c *Correlator) SetDispatcher(d Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch = d
}

// Issue registers a request for g (nil for Globalhash) on date and dispatches
// it. A request for the same date replaces any outstanding one.
func (c *Correlator) Issue(g *model.Graticule, date model.Date, flags model.Flags) (model.Request, error) {
	req := model.NewRequest(g, date, flags)

	c.mu.Lock()
	d := c.dispatch
	if d == nil {
		c.mu.Unlock()
		return req, ErrNoDispatcher
	}
	if prev, ok := c.pending[req.ID]; ok {
		c.logger.Debug("request superseded", "id", req.ID, "previous", prev.req.Graticule)
	}
	c.pending[req.ID] = outstanding{req: req, issued: c.now()}
	n := len(c.pending)
	c.mu.Unlock()

	metrics.SetOutstanding(n)

	if err := d.Dispatch(req); err != nil {
		c.mu.Lock()
		if cur, ok := c.pending[req.ID]; ok && cur.req.Flags == req.Flags && sameCell(cur.req.Graticule, req.Graticule) {
			delete(c.pending, req.ID)
		}
		n = len(c.pending)
		c.mu.Unlock()
		metrics.SetOutstanding(n)
		return req, fmt.Errorf("dispatch request %d: %w", req.ID, err)
	}

	c.logger.Debug("request issued", "id", req.ID, "date", date, "graticule", req.Graticule, "flags", flags)
	return req, nil
}

// Resolve routes a response. It may be called from any goroutine.
func (c *Correlator) Resolve(resp model.Response) {
	if resp.Flags.Has(model.FlagAlarm) {
		metrics.RecordDiscard("alarm")
		c.logger.Debug("discarding alarm response", "id", resp.RequestID, "code", resp.Code)
		return
	}

	c.mu.Lock()
	entry, ok := c.pending[resp.RequestID]
	if !ok {
		c.mu.Unlock()
		metrics.RecordDiscard("stale")
		c.logger.Debug("discarding stale response", "id", resp.RequestID, "code", resp.Code)
		return
	}
	if !resp.SameTarget(entry.req.Graticule) {
		c.mu.Unlock()
		metrics.RecordDiscard("superseded")
		c.logger.Debug("discarding response for superseded target",
			"id", resp.RequestID,
			"got", resp.Graticule,
			"want", entry.req.Graticule,
		)
		return
	}
	delete(c.pending, resp.RequestID)
	n := len(c.pending)
	epoch := c.epoch
	consumer := c.consumer
	c.mu.Unlock()

	metrics.SetOutstanding(n)

	if resp.Code == model.ResponseOK && resp.Info != nil {
		c.logger.Debug("delivering info", "id", resp.RequestID, "nearby", len(resp.Nearby), "latency", c.now().Sub(entry.issued))
		if consumer != nil {
			consumer.HandleInfo(epoch, *resp.Info, resp.Nearby, resp.Flags)
		}
		return
	}

	code := resp.Code
	if code == model.ResponseOK {
		// OK without an Info is a malformed response.
		code = model.ResponseNetworkError
	}

	if !resp.Flags.Has(model.FlagUserInitiated) {
		c.logger.Info("background lookup failed", "id", resp.RequestID, "date", resp.Date, "code", code)
	} else if c.notifier != nil {
		c.notifier.NotifyFailure(code, resp.Date, resp.Date.Equal(c.today()))
	}

	if consumer != nil {
		consumer.HandleLookupFailure(epoch, code, resp.Date, resp.Flags)
	}
}

// Clear drops every outstanding request and advances the epoch.
func (c *Correlator) Clear() {
	c.mu.Lock()
	dropped := len(c.pending)
	c.pending = make(map[int64]outstanding)
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	metrics.SetOutstanding(0)
	c.logger.Debug("outstanding requests cleared", "dropped", dropped, "epoch", epoch)
}

// Pending returns the number of outstanding requests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// IsOutstanding reports whether a request ID is awaiting a response.
func (c *Correlator) IsOutstanding(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// Epoch returns the current epoch.
func (c *Correlator) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// IsCurrent reports whether a delivery made under epoch is still valid.
func (c *Correlator) IsCurrent(epoch uint64) bool {
	return c.Epoch() == epoch
}

func (c *Correlator) today() model.Date {
	return model.DateOf(c.now().In(c.location))
}

func sameCell(a, b *model.Graticule) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
