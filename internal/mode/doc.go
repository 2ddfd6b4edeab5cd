// Package mode drives which interactive mode is active.
//
// The Controller owns exactly one mode at a time:
//   - Expedition follows today's (or a chosen retro date's) destination and
//     reacts to location fixes
//   - Cell-Selection lets the caller pick any graticule or the Globalhash and
//     previews it without tracking location
//
// Modes only start once the ReadinessGate reports the map surface ready and
// the location service connected. Lifecycle per mode:
//
//	Uninitialized -> Initializing -> Active <-> Paused -> CleanedUp
//
// Pause and Resume may arrive in any order, or never. Switching modes saves
// the outgoing mode's state, cleans it up, clears the correlator and re-runs
// the gate for the new mode. Failed lookups are never retried automatically.
package mode
