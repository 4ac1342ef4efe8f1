// Package flow defines the data model of an authored chatbot conversation:
// nodes, edges, their composite keys, and immutable snapshots.
//
// # Identity
//
// Node identity is an opaque NodeID. Edge identity is the EdgeKey tuple
// (source, sourceHandle, target, targetHandle); the string form is only used
// on the wire. HandleKey is the (source, sourceHandle) projection used to
// enforce one outgoing edge per handle.
//
// # Content Hashing
//
// ContentHash produces a stable SHA-256 over the canonical JSON form of a
// snapshot. Object keys are sorted by UTF-16 code units and strings are NFC
// normalised, so two snapshots that differ only in map iteration order or
// Unicode composition hash identically. Persistence backends use the hash
// for idempotent saves.
package flow
