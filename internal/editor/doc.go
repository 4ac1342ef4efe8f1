// Package editor is the render-surface boundary of the flow builder.
//
// # Architecture
//
// Editor wires the graph store, the selection controller, the status
// notifier, the palette and the save gateway together and exposes one
// synchronous handler per inbound render-surface event (drop, connect,
// node click, pane click, node/edge deltas, data edits, save). After any
// handler, View describes what the surface should draw.
//
// Loop serialises events from many goroutines (HTTP handlers, status
// timers) onto a single writer. Every mutation of editor state happens in
// Loop.Run; callers submit events with Dispatch and wait for the reply.
//
// # Invariants
//
//   - Node ids are unique; at most one edge leaves each (source, sourceHandle)
//   - The selected node, if any, exists; deleting it returns to Idle
//   - Rejected events leave state unchanged
//   - A status dismissal never clears a newer message
package editor
