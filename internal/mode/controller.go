package mode

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/geohash/internal/location"
	"github.com/rickgao/geohash/internal/model"
)

// Options configures a Controller.
type Options struct {
	// Staleness is how old a location fix may be and still count.
	Staleness time.Duration
	// ClosestPoint shows the nearest of the destination and its neighbours.
	ClosestPoint bool
	// Location decides which day is today. Defaults to America/New_York.
	Location *time.Location
	// Fixes supplies the last known fix when a mode activates. Optional.
	Fixes location.Source

	Logger *slog.Logger
	Now    func() time.Time
}

// Controller owns the active mode and routes readiness, location and lookup
// events to it. All methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	id        uuid.UUID
	env       *env
	requester Requester
	fixes     location.Source
	logger    *slog.Logger

	gate       ReadinessGate
	hostPaused bool
	state      State
	current    mode
	pending    SavedState
	lastFix    *location.Fix
	started    bool
	shutdown   bool
}

// NewController creates a Controller. Start must be called before any mode
// runs.
func NewController(opts Options, mapView Map, requester Requester, titles Titler) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
	}
	staleness := opts.Staleness
	if staleness <= 0 {
		staleness = location.DefaultStaleness
	}

	id := uuid.New()
	logger = logger.With("component", "mode", "session", id.String())

	return &Controller{
		id: id,
		env: &env{
			mapView:   mapView,
			requester: requester,
			titles:    titles,
			logger:    logger,
			now:       now,
			loc:       loc,
			staleness: staleness,
			nearby:    opts.ClosestPoint,
		},
		requester: requester,
		fixes:     opts.Fixes,
		logger:    logger,
	}
}

// SessionID identifies this controller in logs.
func (c *Controller) SessionID() uuid.UUID {
	return c.id
}

// Start selects the initial mode from saved state. The mode initialises once
// the readiness gate opens.
func (c *Controller) Start(saved SavedState) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return ErrCleanedUp
	}
	if c.started {
		return fmt.Errorf("start: %w", ErrInvalidTransition)
	}
	c.started = true

	kind := saved.Kind
	if kind == "" {
		kind = KindExpedition
	}
	saved.Kind = kind
	c.install(saved)
	c.logger.Info("controller started", "mode", kind, "graticule", saved.Graticule, "globalhash", saved.Globalhash)

	c.runGate()
	return nil
}

// MapReady reports the map surface available.
func (c *Controller) MapReady() {
	c.updateGate(func(g *ReadinessGate) { g.MapReady = true })
}

// MapLost reports the map surface gone.
func (c *Controller) MapLost() {
	c.updateGate(func(g *ReadinessGate) { g.MapReady = false })
}

// LocationConnected reports the location service connected.
func (c *Controller) LocationConnected() {
	c.updateGate(func(g *ReadinessGate) {
		g.LocationConnected = true
		g.ResolvingError = false
	})
}

// LocationSuspended reports the location service temporarily gone.
func (c *Controller) LocationSuspended() {
	c.updateGate(func(g *ReadinessGate) { g.LocationConnected = false })
}

// ConnectionFailed reports the location service unable to connect.
func (c *Controller) ConnectionFailed() {
	c.updateGate(func(g *ReadinessGate) {
		g.LocationConnected = false
		g.ResolvingError = true
	})
}

// PermissionsResult records whether location permission was denied.
func (c *Controller) PermissionsResult(denied bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gate.PermissionsDenied = denied
	if c.current != nil && c.live() {
		c.current.permissionsDenied(denied)
	}
	c.runGate()
}

func (c *Controller) updateGate(fn func(*ReadinessGate)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&c.gate)
	c.runGate()
}

// LocationChanged forwards a fix to the active mode. Older fixes are ignored.
func (c *Controller) LocationChanged(fix location.Fix) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastFix != nil && fix.Time.Before(c.lastFix.Time) {
		return
	}
	c.lastFix = &fix

	if c.state == StateActive {
		c.current.locationChanged(fix)
	}
}

// ChangeDate asks the active mode to show another date.
func (c *Controller) ChangeDate(date model.Date) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkActive(); err != nil {
		return err
	}
	c.current.changeDate(date)
	return nil
}

// SelectGraticule previews g. Only valid in Cell-Selection.
func (c *Controller) SelectGraticule(g model.Graticule) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, err := c.cellSelection()
	if err != nil {
		return err
	}
	cs.selectGraticule(g)
	return nil
}

// SelectGlobalhash previews the Globalhash. Only valid in Cell-Selection.
func (c *Controller) SelectGlobalhash() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cs, err := c.cellSelection()
	if err != nil {
		return err
	}
	cs.selectGlobalhash()
	return nil
}

func (c *Controller) cellSelection() (*cellSelection, error) {
	if err := c.checkActive(); err != nil {
		return nil, err
	}
	cs, ok := c.current.(*cellSelection)
	if !ok {
		return nil, ErrWrongMode
	}
	return cs, nil
}

// EnterCellSelection switches to Cell-Selection, carrying the current target.
func (c *Controller) EnterCellSelection() error {
	return c.switchTo(KindCellSelection)
}

// ExitCellSelection switches back to Expedition with the selected target.
func (c *Controller) ExitCellSelection() error {
	return c.switchTo(KindExpedition)
}

func (c *Controller) switchTo(kind Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return ErrCleanedUp
	}
	if !c.started {
		return ErrNotStarted
	}
	if c.current.kind() == kind {
		return nil
	}

	saved := c.save()
	c.tearDown()
	c.requester.Clear()

	saved.Kind = kind
	saved.InitialStart = false
	c.install(saved)
	c.logger.Info("mode switched", "mode", kind, "graticule", saved.Graticule, "globalhash", saved.Globalhash)

	c.runGate()
	return nil
}

// Pause suspends the active mode. It may arrive before the mode starts, in
// which case initialisation waits for Resume.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hostPaused = true
	c.pauseMode()
}

// Resume lifts a Pause. A Resume without a Pause is harmless.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hostPaused = false
	c.runGate()
}

// SaveState returns the state to persist for the next run.
func (c *Controller) SaveState() SavedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save()
}

// Shutdown cleans up the active mode and drops outstanding lookups. The
// Controller cannot be restarted.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shutdown {
		return
	}
	c.shutdown = true
	if c.current != nil {
		c.pending = c.save()
		c.tearDown()
	}
	c.requester.Clear()
	c.logger.Info("controller shut down")
}

// CurrentInfo returns the destination on display, if any.
func (c *Controller) CurrentInfo() (model.Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return model.Info{}, false
	}
	return c.current.current()
}

// CurrentKind returns the installed mode, or "" before Start.
func (c *Controller) CurrentKind() Kind {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return ""
	}
	return c.current.kind()
}

// State returns the lifecycle state of the installed mode.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Gate returns a snapshot of the readiness gate.
func (c *Controller) Gate() ReadinessGate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate
}

// HandleInfo receives a successful lookup delivered under epoch.
func (c *Controller) HandleInfo(epoch uint64, info model.Info, nearby []model.Info, flags model.Flags) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.accepts(epoch) {
		c.logger.Debug("dropping info from previous mode", "epoch", epoch, "info", info)
		return
	}
	c.current.handleInfo(info, nearby, flags)
}

// HandleLookupFailure receives a failed lookup delivered under epoch.
func (c *Controller) HandleLookupFailure(epoch uint64, code model.ResponseCode, date model.Date, flags model.Flags) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.accepts(epoch) {
		c.logger.Debug("dropping failure from previous mode", "epoch", epoch, "code", code)
		return
	}
	c.current.handleLookupFailure(code, date, flags)
}

// accepts reports whether a delivery may reach the current mode.
func (c *Controller) accepts(epoch uint64) bool {
	return c.live() && c.requester.IsCurrent(epoch)
}

// live reports whether the installed mode has been initialised and not torn
// down.
func (c *Controller) live() bool {
	return c.current != nil && (c.state == StateActive || c.state == StatePaused)
}

func (c *Controller) checkActive() error {
	switch {
	case c.shutdown:
		return ErrCleanedUp
	case !c.started:
		return ErrNotStarted
	case c.state != StateActive:
		return ErrNotActive
	}
	return nil
}

func (c *Controller) install(saved SavedState) {
	switch saved.Kind {
	case KindCellSelection:
		c.current = newCellSelection(c.env)
	default:
		c.current = newExpedition(c.env)
	}
	c.pending = saved
	c.state = StateUninitialized
}

func (c *Controller) save() SavedState {
	if c.current == nil || c.state == StateUninitialized || c.state == StateCleanedUp {
		return c.pending
	}
	return c.current.save()
}

func (c *Controller) tearDown() {
	if c.state != StateUninitialized && c.state != StateCleanedUp {
		c.current.cleanUp()
	}
	c.transition(StateCleanedUp)
}

func (c *Controller) pauseMode() {
	if c.state != StateActive {
		return
	}
	c.current.pause()
	c.transition(StatePaused)
}

// runGate moves the installed mode toward Active when the gate allows, or
// pauses it when the gate has closed.
func (c *Controller) runGate() {
	if c.current == nil || c.shutdown {
		return
	}
	if !c.gate.Ready() || c.hostPaused {
		c.pauseMode()
		return
	}

	switch c.state {
	case StateUninitialized:
		c.transition(StateInitializing)
		c.current.init(c.pending)
		if c.current.initComplete() {
			c.transition(StateActive)
		}
	case StatePaused:
		c.current.resume()
		c.transition(StateActive)
	default:
		return
	}

	if c.state == StateActive {
		c.replayFix()
	}
}

// replayFix hands the last fresh fix to a freshly activated mode.
func (c *Controller) replayFix() {
	if c.fixes != nil {
		if fix, ok := c.fixes.LastKnown(); ok && (c.lastFix == nil || fix.Time.After(c.lastFix.Time)) {
			c.lastFix = &fix
		}
	}
	if c.lastFix != nil && c.env.isFresh(*c.lastFix) {
		c.current.locationChanged(*c.lastFix)
	}
}

func (c *Controller) transition(to State) {
	if !canTransition(c.state, to) {
		c.logger.Error("invalid mode transition", "from", c.state, "to", to)
		return
	}
	c.logger.Debug("mode transition", "mode", c.current.kind(), "from", c.state, "to", to)
	c.state = to
}
