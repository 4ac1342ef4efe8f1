package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/flowbuilder/internal/flow"
)

// MemoryBackend keeps revisions in process memory. Used for the "memory"
// backend setting and in tests.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemoryBackend struct {
	mu    sync.Mutex
	flows map[string]*memoryFlow
	ids   flow.IDGenerator
	now   func() time.Time
}

type memoryFlow struct {
	name      string
	revisions []Revision
	snapshots []flow.Snapshot
}

// NewMemoryBackend creates an empty backend. ids mints revision ids and now
// stamps them; nil selects UUIDv7 and time.Now.
func NewMemoryBackend(ids flow.IDGenerator, now func() time.Time) *MemoryBackend {
	if ids == nil {
		ids = flow.UUIDv7Generator{}
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryBackend{
		flows: make(map[string]*memoryFlow),
		ids:   ids,
		now:   now,
	}
}

// Save implements Backend.
func (m *MemoryBackend) Save(ctx context.Context, doc flow.Document) (Revision, error) {
	if err := ctx.Err(); err != nil {
		return Revision{}, err
	}
	hash, err := flow.ContentHash(doc.Snapshot)
	if err != nil {
		return Revision{}, fmt.Errorf("memory save: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[doc.ID]
	if !ok {
		f = &memoryFlow{}
		m.flows[doc.ID] = f
	}
	f.name = doc.Name

	if n := len(f.revisions); n > 0 && f.revisions[n-1].ContentHash == hash {
		return f.revisions[n-1], nil
	}

	rev := Revision{
		ID:          m.ids.Generate(),
		FlowID:      doc.ID,
		Seq:         int64(len(f.revisions) + 1),
		ContentHash: hash,
		Nodes:       len(doc.Snapshot.Nodes),
		Edges:       len(doc.Snapshot.Edges),
		SavedAt:     m.now().UTC(),
	}
	f.revisions = append(f.revisions, rev)
	f.snapshots = append(f.snapshots, doc.Snapshot.Clone())
	return rev, nil
}

// Load implements Backend.
func (m *MemoryBackend) Load(ctx context.Context, flowID string) (flow.Document, error) {
	if err := ctx.Err(); err != nil {
		return flow.Document{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[flowID]
	if !ok || len(f.snapshots) == 0 {
		return flow.Document{}, fmt.Errorf("%w: %s", ErrNotFound, flowID)
	}
	return flow.Document{
		ID:       flowID,
		Name:     f.name,
		Snapshot: f.snapshots[len(f.snapshots)-1].Clone(),
	}, nil
}

// History implements Backend.
func (m *MemoryBackend) History(ctx context.Context, flowID string) ([]Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flows[flowID]
	if !ok {
		return []Revision{}, nil
	}
	return append([]Revision{}, f.revisions...), nil
}
