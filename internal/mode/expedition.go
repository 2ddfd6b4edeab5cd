package mode

import (
	"github.com/rickgao/geohash/internal/location"
	"github.com/rickgao/geohash/internal/model"
)

// expedition follows one destination, deriving its graticule from the device
// location when none is known yet.
type expedition struct {
	base

	graticule  *model.Graticule
	globalhash bool
	date       model.Date

	waitingForFix bool
	lastFix       *location.Fix
	center        *model.Info // the expedition's own point, shown or not
	nearby        []model.Info
	denied        bool
}

func newExpedition(e *env) *expedition {
	return &expedition{base: base{env: e}}
}

func (m *expedition) kind() Kind { return KindExpedition }

func (m *expedition) init(saved SavedState) {
	m.date = saved.Date
	if m.date.IsZero() {
		m.date = m.env.today()
	}
	m.globalhash = saved.Globalhash
	if saved.Graticule != nil && !saved.Globalhash {
		g := *saved.Graticule
		m.graticule = &g
	}

	m.ready = true

	if saved.InitialStart || !saved.HasTarget() {
		// Wait for the first fresh fix to tell us where we are.
		m.waitingForFix = true
		m.env.logger.Debug("expedition waiting for location")
		return
	}
	m.requestCurrent(m.date)
}

func (m *expedition) flags() model.Flags {
	f := model.FlagUserInitiated
	if m.env.nearby && !m.globalhash {
		f |= model.FlagIncludeNearby
	}
	return f
}

func (m *expedition) requestCurrent(date model.Date) {
	if m.globalhash {
		m.request(nil, date, m.flags())
		return
	}
	if m.graticule == nil {
		return
	}
	m.request(m.graticule, date, m.flags())
}

func (m *expedition) pause() {}

func (m *expedition) resume() {}

func (m *expedition) cleanUp() {
	m.center = nil
	m.nearby = nil
	m.cleanUpBase()
}

func (m *expedition) save() SavedState {
	s := SavedState{Kind: KindExpedition, Globalhash: m.globalhash, Date: m.date}
	if m.graticule != nil {
		g := *m.graticule
		s.Graticule = &g
	}
	return s
}

func (m *expedition) handleInfo(info model.Info, nearby []model.Info, _ model.Flags) {
	if !m.matches(info) {
		m.env.logger.Debug("expedition ignoring info for another target", "info", info)
		return
	}
	if m.superseded(info) {
		m.env.logger.Debug("expedition ignoring info for an earlier date", "info", info, "requested", m.requested)
		return
	}

	// The date only moves once a lookup for it succeeds.
	m.date = info.Date()
	m.center = &info
	m.nearby = nearby
	if len(nearby) > 0 {
		m.env.mapView.ShowNearby(nearby)
	}
	m.showDestination(m.pick(info))
}

// matches reports whether info answers this mode's target.
func (m *expedition) matches(info model.Info) bool {
	if m.globalhash {
		return info.IsGlobalhash()
	}
	g := info.Graticule()
	return g != nil && m.graticule != nil && *g == *m.graticule
}

// pick returns the destination to show: info itself, or the closest of info
// and its neighbours when closest-point display is on and a fresh fix exists.
func (m *expedition) pick(info model.Info) model.Info {
	if !m.env.nearby || len(m.nearby) == 0 || m.lastFix == nil || !m.env.isFresh(*m.lastFix) {
		return info
	}
	candidates := append([]model.Info{info}, m.nearby...)
	return candidates[location.Closest(*m.lastFix, candidates)]
}

func (m *expedition) handleLookupFailure(code model.ResponseCode, date model.Date, _ model.Flags) {
	// Keep whatever is displayed; the banner has already been raised for
	// user-initiated lookups.
	m.env.logger.Info("expedition lookup failed", "code", code, "date", date, "graticule", m.graticule)
}

func (m *expedition) locationChanged(fix location.Fix) {
	if m.lastFix != nil && fix.Time.Before(m.lastFix.Time) {
		return
	}
	m.lastFix = &fix

	if !m.env.isFresh(fix) {
		return
	}

	if m.waitingForFix {
		m.waitingForFix = false
		if !m.globalhash {
			g := fix.Graticule()
			m.graticule = &g
		}
		m.env.logger.Info("expedition located", "graticule", m.graticule, "globalhash", m.globalhash)
		m.requestCurrent(m.date)
		return
	}

	// Re-pick the closest point as the user moves.
	if m.center != nil && m.info != nil && len(m.nearby) > 0 {
		if next := m.pick(*m.center); !next.Equal(*m.info) {
			m.showDestination(next)
		}
	}
}

func (m *expedition) changeDate(date model.Date) {
	if m.waitingForFix {
		m.date = date
		return
	}
	m.requestCurrent(date)
}

func (m *expedition) permissionsDenied(denied bool) {
	m.denied = denied
	if denied && m.waitingForFix {
		m.env.logger.Warn("location permission denied; expedition has no graticule")
	}
}
