package mode

import (
	"github.com/rickgao/geohash/internal/model"
)

// Map renders destinations. Calls are made with the controller lock held and
// must not call back into the Controller.
type Map interface {
	ShowDestination(info model.Info, title string)
	ShowNearby(infos []model.Info)
	ClearDestination()
}

// Requester issues lookups and reports whether a delivery epoch is current.
// It is satisfied by *correlator.Correlator. Issue must not deliver the
// response synchronously.
type Requester interface {
	Issue(g *model.Graticule, date model.Date, flags model.Flags) (model.Request, error)
	Clear()
	IsCurrent(epoch uint64) bool
}

// Titler names destination markers.
type Titler interface {
	MarkerTitle(info model.Info) string
}
