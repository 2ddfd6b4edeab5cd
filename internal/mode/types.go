package mode

import (
	"errors"
	"fmt"

	"github.com/rickgao/geohash/internal/model"
)

var (
	ErrCleanedUp         = errors.New("controller cleaned up")
	ErrWrongMode         = errors.New("operation not valid in current mode")
	ErrNotStarted        = errors.New("controller not started")
	ErrNotActive         = errors.New("mode not active")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// State is a lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateActive
	StatePaused
	StateCleanedUp
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateCleanedUp:
		return "cleaned_up"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// canTransition lists the legal lifecycle edges.
func canTransition(from, to State) bool {
	switch from {
	case StateUninitialized:
		return to == StateInitializing || to == StateCleanedUp
	case StateInitializing:
		return to == StateActive || to == StateCleanedUp
	case StateActive:
		return to == StatePaused || to == StateCleanedUp
	case StatePaused:
		return to == StateActive || to == StateCleanedUp
	default:
		return false
	}
}

// Kind names a mode variant.
type Kind string

const (
	KindExpedition    Kind = "expedition"
	KindCellSelection Kind = "cell_selection"
)

// ParseKind parses a persisted mode name. Empty means Expedition.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindExpedition:
		return KindExpedition, nil
	case KindCellSelection:
		return KindCellSelection, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

// SavedState is what a mode hands to its successor, and what is persisted
// between runs.
type SavedState struct {
	Kind       Kind             `yaml:"kind" json:"kind"`
	Graticule  *model.Graticule `yaml:"graticule,omitempty" json:"graticule,omitempty"`
	Globalhash bool             `yaml:"globalhash,omitempty" json:"globalhash,omitempty"`
	Date       model.Date       `yaml:"date,omitempty" json:"date,omitempty"`
	// InitialStart asks Expedition to derive the graticule from the first
	// fresh location fix.
	InitialStart bool `yaml:"-" json:"-"`
}

// HasTarget reports whether the state names a cell or the Globalhash.
func (s SavedState) HasTarget() bool {
	return s.Globalhash || s.Graticule != nil
}

// ReadinessGate collects the external preconditions for running a mode.
type ReadinessGate struct {
	MapReady          bool
	LocationConnected bool
	PermissionsDenied bool
	ResolvingError    bool
}

// Ready reports whether a mode may be initialised or resumed.
func (g ReadinessGate) Ready() bool {
	return g.MapReady && g.LocationConnected
}
