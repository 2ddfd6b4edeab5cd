package model

import "strings"

// Flags describe where a request came from and what it wants back.
type Flags uint32

const (
	// FlagUserInitiated marks requests the user explicitly asked for. Only
	// these surface failures to the notification banner.
	FlagUserInitiated Flags = 1 << iota

	// FlagAlarm marks background prefetches. Responses carrying it are never
	// delivered to the interactive layer.
	FlagAlarm

	// FlagIncludeNearby asks for Infos of the eight surrounding graticules.
	FlagIncludeNearby
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	var parts []string
	if f.Has(FlagUserInitiated) {
		parts = append(parts, "user")
	}
	if f.Has(FlagAlarm) {
		parts = append(parts, "alarm")
	}
	if f.Has(FlagIncludeNearby) {
		parts = append(parts, "nearby")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ResponseCode classifies the outcome of a request.
type ResponseCode int

const (
	ResponseOK ResponseCode = iota
	ResponseNotYetPosted
	ResponseNoConnection
	ResponseNetworkError
)

func (c ResponseCode) String() string {
	switch c {
	case ResponseOK:
		return "ok"
	case ResponseNotYetPosted:
		return "not_yet_posted"
	case ResponseNoConnection:
		return "no_connection"
	case ResponseNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Request asks for the Info of a graticule (nil for Globalhash) on a date.
type Request struct {
	ID        int64
	Flags     Flags
	Graticule *Graticule
	Date      Date
}

// NewRequest builds a request whose ID is derived from the date.
func NewRequest(g *Graticule, date Date, flags Flags) Request {
	var cell *Graticule
	if g != nil {
		c := *g
		cell = &c
	}
	return Request{
		ID:        date.RequestID(),
		Flags:     flags,
		Graticule: cell,
		Date:      date,
	}
}

// IsGlobalhash reports whether the request targets the whole globe.
func (r Request) IsGlobalhash() bool { return r.Graticule == nil }

// Response answers a Request. Info is nil unless Code is ResponseOK.
// Graticule echoes the request's target (nil for Globalhash) so that
// same-day requests for different cells can be told apart.
type Response struct {
	RequestID int64
	Flags     Flags
	Code      ResponseCode
	Date      Date
	Graticule *Graticule
	Info      *Info
	Nearby    []Info
}

// SameTarget reports whether r answers a request for g (nil for Globalhash).
func (r Response) SameTarget(g *Graticule) bool {
	if r.Graticule == nil || g == nil {
		return r.Graticule == nil && g == nil
	}
	return *r.Graticule == *g
}
