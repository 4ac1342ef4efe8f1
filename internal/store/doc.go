// Package store provides SQLite-backed durable storage for flows.
//
// Each save appends a row to flow_revisions holding the snapshot as JSON
// together with its canonical content hash:
//
//   - re-saving the content of the newest revision is a no-op that returns
//     that revision; older content is appended again with a new seq
//   - seq is a per-flow counter; all reads ORDER BY seq ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Store implements persist.Backend.
package store
