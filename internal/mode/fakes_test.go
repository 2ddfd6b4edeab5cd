package mode

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/geohash/internal/hash"
	"github.com/rickgao/geohash/internal/location"
	"github.com/rickgao/geohash/internal/model"
)

var (
	today   = model.NewDate(2024, time.March, 13)
	fixedAt = time.Date(2024, time.March, 13, 18, 0, 0, 0, time.UTC)
)

type fakeMap struct {
	mu      sync.Mutex
	shown   []model.Info
	titles  []string
	nearby  [][]model.Info
	cleared int
}

func (m *fakeMap) ShowDestination(info model.Info, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, info)
	m.titles = append(m.titles, title)
}

func (m *fakeMap) ShowNearby(infos []model.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nearby = append(m.nearby, infos)
}

func (m *fakeMap) ClearDestination() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
}

func (m *fakeMap) shownCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shown)
}

func (m *fakeMap) last() (model.Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.shown) == 0 {
		return model.Info{}, false
	}
	return m.shown[len(m.shown)-1], true
}

type issued struct {
	graticule *model.Graticule
	date      model.Date
	flags     model.Flags
	epoch     uint64
}

// fakeRequester records lookups. Clear advances the epoch like the
// correlator does.
type fakeRequester struct {
	mu     sync.Mutex
	issued []issued
	epoch  uint64
	clears int
}

func (r *fakeRequester) Issue(g *model.Graticule, date model.Date, flags model.Flags) (model.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.issued = append(r.issued, issued{graticule: g, date: date, flags: flags, epoch: r.epoch})
	return model.NewRequest(g, date, flags), nil
}

func (r *fakeRequester) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.clears++
}

func (r *fakeRequester) IsCurrent(epoch uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch == epoch
}

func (r *fakeRequester) all() []issued {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]issued(nil), r.issued...)
}

func (r *fakeRequester) lastIssued() (issued, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.issued) == 0 {
		return issued{}, false
	}
	return r.issued[len(r.issued)-1], true
}

type staticTitles struct{}

func (staticTitles) MarkerTitle(info model.Info) string {
	if info.IsGlobalhash() {
		return "globalpoint " + info.Date().String()
	}
	return "hashpoint " + info.Date().String()
}

type fixSource struct {
	fix location.Fix
	ok  bool
}

func (s fixSource) LastKnown() (location.Fix, bool) { return s.fix, s.ok }

type harness struct {
	ctrl *Controller
	mapv *fakeMap
	req  *fakeRequester
}

func newHarness(opts Options) *harness {
	h := &harness{mapv: &fakeMap{}, req: &fakeRequester{}}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedAt }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	h.ctrl = NewController(opts, h.mapv, h.req, staticTitles{})
	return h
}

// ready opens the readiness gate.
func (h *harness) ready() {
	h.ctrl.MapReady()
	h.ctrl.LocationConnected()
}

// answer delivers a successful lookup for the most recent request.
func (h *harness) answer(nearby bool) model.Info {
	last, ok := h.req.lastIssued()
	if !ok {
		panic("no request issued")
	}
	info := compute(last.graticule, last.date)
	var near []model.Info
	if nearby && last.graticule != nil {
		for _, g := range hash.Nearby(*last.graticule) {
			near = append(near, compute(&g, last.date))
		}
	}
	h.ctrl.HandleInfo(last.epoch, info, near, last.flags)
	return info
}

func compute(g *model.Graticule, date model.Date) model.Info {
	return hash.Compute(date, g, g == nil, decimal.RequireFromString("39043.32"), today)
}

func freshFix(lat, lon float64) location.Fix {
	return location.Fix{Latitude: lat, Longitude: lon, Accuracy: 10, Time: fixedAt.Add(-time.Minute)}
}

func cell(lat, lon int) *model.Graticule {
	g := model.MustGraticule(lat, lon)
	return &g
}
