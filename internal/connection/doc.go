// Package connection carries lookups between processes over a WebSocket.
//
// The Server side:
//   - Upgrades requests on the configured path (default /ws)
//   - Gives every session a UUID and greets it with a hello frame
//   - Submits each request frame to the stock service and writes the
//     response frame when it is ready
//   - Pings idle sessions and drops those that stop answering
//
// The client side pairs a Client (one WebSocket, ready once the hello frame
// has arrived) with a Remote, which implements correlator.Dispatcher and
// feeds decoded responses back to a handler, usually Correlator.Resolve.
package connection
