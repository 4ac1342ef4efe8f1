// Package graph owns the authoritative node and edge collections of a flow.
//
// ARCHITECTURE:
//
// Store is the single owner of both collections. Every mutation is a
// synchronous call made from the editor's event loop; Store performs no
// locking and must not be shared across goroutines.
//
// Acceptance of a new edge is delegated to Policy, which enforces that a
// (source, sourceHandle) pair routes to exactly one next step. Any number of
// edges may target the same node.
//
// Structural validity (at most one root, i.e. node without incoming edges)
// is NOT enforced on mutation. Validate is run only when a flow is saved,
// so a user can hold an intermediate invalid graph while building.
//
// INVARIANTS:
//   - Node ids are unique.
//   - At most one edge per HandleKey.
//   - No edge references a missing node after RemoveNode (cascade).
//   - A rejected mutation leaves the store unchanged.
//
// Node ids come from IDSeq, a value type carrying the allocator's counter.
// The store threads it through each AddNode call instead of sharing a
// mutable counter, so id allocation is deterministic given a clock.
package graph
