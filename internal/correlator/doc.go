// Package correlator tracks in-flight requests and routes their responses.
//
// Rules applied by Resolve:
//   - Responses flagged as background alarms are dropped unconditionally
//   - Responses whose ID (and target cell) is not outstanding are stale and dropped
//   - Successes go to the consumer as an Info plus nearby Infos
//   - Failures go to the consumer as a code; user-initiated ones also go to
//     the Notifier together with whether the date is today
//
// Clear empties the outstanding set and advances the epoch. Every delivery
// carries the epoch it was accepted under, so a consumer can reject one that
// raced a mode switch.
package correlator
