// Package persist is the save path of the flow builder.
//
// Gateway is the only way a flow reaches durable storage. It runs the
// single-entry-point check first and never calls the Backend for an
// invalid flow, so a rejected save writes nothing. Backends store
// content-addressed revisions; saving identical content twice is a no-op
// that returns the existing revision.
//
// Backends: MemoryBackend (here), store.Store (SQLite) and
// redisstore.Store (Redis).
package persist
