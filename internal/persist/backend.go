package persist

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/flowbuilder/internal/flow"
)

var (
	// ErrBackend wraps every failure reported by a Backend during Save.
	ErrBackend = errors.New("persistence backend failed")

	// ErrNotFound is returned by Load for an unknown flow id.
	ErrNotFound = errors.New("flow not found")
)

// Revision describes one stored version of a flow.
//
// Revisions are content-addressed: saving a snapshot whose ContentHash
// matches an existing revision of the same flow returns that revision
// unchanged instead of writing a new one.
type Revision struct {
	ID          string    `json:"id" yaml:"id"`
	FlowID      string    `json:"flow_id" yaml:"flow_id"`
	Seq         int64     `json:"seq" yaml:"seq"`
	ContentHash string    `json:"content_hash" yaml:"content_hash"`
	Nodes       int       `json:"nodes" yaml:"nodes"`
	Edges       int       `json:"edges" yaml:"edges"`
	SavedAt     time.Time `json:"saved_at" yaml:"saved_at"`
}

// Backend is the durable storage collaborator behind the Gateway.
// Implemented by MemoryBackend, store.Store (SQLite) and redisstore.Store.
type Backend interface {
	// Save stores doc as the newest revision of doc.ID.
	Save(ctx context.Context, doc flow.Document) (Revision, error)

	// Load returns the newest revision of a flow, or ErrNotFound.
	Load(ctx context.Context, flowID string) (flow.Document, error)

	// History lists a flow's revisions oldest first. Empty, not nil, when
	// the flow has none.
	History(ctx context.Context, flowID string) ([]Revision, error)
}
