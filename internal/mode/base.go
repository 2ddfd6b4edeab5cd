package mode

import (
	"log/slog"
	"time"

	"github.com/rickgao/geohash/internal/location"
	"github.com/rickgao/geohash/internal/model"
)

// env is what the controller shares with its modes.
type env struct {
	mapView   Map
	requester Requester
	titles    Titler
	logger    *slog.Logger
	now       func() time.Time
	loc       *time.Location
	staleness time.Duration
	nearby    bool // show the closest of the point and its neighbours
}

func (e *env) today() model.Date {
	return model.DateOf(e.now().In(e.loc))
}

func (e *env) isFresh(f location.Fix) bool {
	return f.IsFresh(e.now(), e.staleness)
}

// mode is the common contract of Expedition and Cell-Selection.
type mode interface {
	kind() Kind
	init(saved SavedState)
	pause()
	resume()
	cleanUp()
	save() SavedState
	initComplete() bool
	cleanedUp() bool

	handleInfo(info model.Info, nearby []model.Info, flags model.Flags)
	handleLookupFailure(code model.ResponseCode, date model.Date, flags model.Flags)
	locationChanged(fix location.Fix)
	changeDate(date model.Date)
	permissionsDenied(denied bool)
	current() (model.Info, bool)
}

// base carries the destination marker and lifecycle flags every mode needs.
type base struct {
	env      *env
	info     *model.Info
	ready    bool
	finished bool

	requested model.Date // date of the most recent lookup
}

func (b *base) initComplete() bool { return b.ready }

func (b *base) cleanedUp() bool { return b.finished }

func (b *base) current() (model.Info, bool) {
	if b.info == nil {
		return model.Info{}, false
	}
	return *b.info, true
}

// showDestination replaces the marker with info.
func (b *base) showDestination(info model.Info) {
	b.info = &info
	b.env.mapView.ShowDestination(info, b.env.titles.MarkerTitle(info))
}

func (b *base) removeDestination() {
	if b.info != nil {
		b.env.mapView.ClearDestination()
	}
	b.info = nil
}

// cleanUpBase always drops the marker.
func (b *base) cleanUpBase() {
	b.removeDestination()
	b.finished = true
}

func (b *base) request(g *model.Graticule, date model.Date, flags model.Flags) {
	if _, err := b.env.requester.Issue(g, date, flags); err != nil {
		b.env.logger.Warn("failed to issue request", "graticule", g, "date", date, "err", err)
		return
	}
	b.requested = date
}

// superseded reports whether info answers a date other than the one last
// asked for. Ids are keyed by date, so both lookups stay outstanding.
func (b *base) superseded(info model.Info) bool {
	return !b.requested.IsZero() && info.Date() != b.requested
}
