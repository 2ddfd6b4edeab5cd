package mode

import (
	"github.com/rickgao/geohash/internal/location"
	"github.com/rickgao/geohash/internal/model"
)

// cellSelection previews whatever cell the caller picks. It ignores location.
type cellSelection struct {
	base

	graticule  *model.Graticule
	globalhash bool
	date       model.Date
}

func newCellSelection(e *env) *cellSelection {
	return &cellSelection{base: base{env: e}}
}

func (m *cellSelection) kind() Kind { return KindCellSelection }

func (m *cellSelection) init(saved SavedState) {
	m.date = saved.Date
	if m.date.IsZero() {
		m.date = m.env.today()
	}
	m.globalhash = saved.Globalhash
	if saved.Graticule != nil {
		g := *saved.Graticule
		m.graticule = &g
	}
	m.ready = true

	if m.globalhash || m.graticule != nil {
		m.preview()
	}
}

func (m *cellSelection) preview() { m.previewOn(m.date) }

func (m *cellSelection) previewOn(date model.Date) {
	if m.globalhash {
		m.request(nil, date, model.FlagUserInitiated)
		return
	}
	m.request(m.graticule, date, model.FlagUserInitiated)
}

func (m *cellSelection) selectGraticule(g model.Graticule) {
	m.graticule = &g
	m.globalhash = false
	m.removeDestination()
	m.preview()
}

func (m *cellSelection) selectGlobalhash() {
	m.globalhash = true
	m.graticule = nil
	m.removeDestination()
	m.preview()
}

func (m *cellSelection) pause() {}

func (m *cellSelection) resume() {}

func (m *cellSelection) cleanUp() { m.cleanUpBase() }

// save hands the selection over to Expedition.
func (m *cellSelection) save() SavedState {
	s := SavedState{Kind: KindCellSelection, Globalhash: m.globalhash, Date: m.date}
	if m.graticule != nil && !m.globalhash {
		g := *m.graticule
		s.Graticule = &g
	}
	return s
}

func (m *cellSelection) handleInfo(info model.Info, _ []model.Info, _ model.Flags) {
	if m.globalhash != info.IsGlobalhash() || m.superseded(info) {
		return
	}
	if !m.globalhash {
		g := info.Graticule()
		if m.graticule == nil || *g != *m.graticule {
			return
		}
	}
	m.date = info.Date()
	m.showDestination(info)
}

func (m *cellSelection) handleLookupFailure(code model.ResponseCode, date model.Date, _ model.Flags) {
	m.env.logger.Info("preview lookup failed", "code", code, "date", date, "graticule", m.graticule)
}

func (m *cellSelection) locationChanged(location.Fix) {}

func (m *cellSelection) changeDate(date model.Date) {
	if m.globalhash || m.graticule != nil {
		m.previewOn(date)
		return
	}
	m.date = date
}

func (m *cellSelection) permissionsDenied(bool) {}
