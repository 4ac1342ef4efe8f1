package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/testutil"
)

// createTestStore opens a fresh database under t.TempDir.
func createTestStore(t *testing.T, revisionIDs ...string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(flow.NewFixedGenerator(revisionIDs...)),
		WithClock(testutil.NewFixedClock(time.UnixMilli(1700000000000)).Now),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// chainSnapshot is a valid two-node flow.
func chainSnapshot() flow.Snapshot {
	return flow.Snapshot{
		Nodes: []flow.Node{
			{ID: "textNode-1-1", Type: "textNode", Position: flow.Position{X: 0, Y: 0}, Data: flow.Data{"message": "Hello"}},
			{ID: "textNode-1-2", Type: "textNode", Position: flow.Position{X: 100.5, Y: 0}, Data: flow.Data{"message": "Bye"}},
		},
		Edges: []flow.Edge{{Source: "textNode-1-1", Target: "textNode-1-2"}},
	}
}
