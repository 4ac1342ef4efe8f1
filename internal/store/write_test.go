package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/persist"
)

var _ persist.Backend = (*Store)(nil)

func TestSave_NewRevision(t *testing.T) {
	s := createTestStore(t, "rev-1")
	ctx := context.Background()

	rev, err := s.Save(ctx, flow.Document{ID: "flow-1", Name: "Welcome", Snapshot: chainSnapshot()})
	require.NoError(t, err)

	hash, err := flow.ContentHash(chainSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "rev-1", rev.ID)
	assert.Equal(t, "flow-1", rev.FlowID)
	assert.Equal(t, int64(1), rev.Seq)
	assert.Equal(t, hash, rev.ContentHash)
	assert.Equal(t, 2, rev.Nodes)
	assert.Equal(t, 1, rev.Edges)
	assert.True(t, rev.SavedAt.Equal(time.UnixMilli(1700000000000)))
}

func TestSave_IdenticalContentIdempotent(t *testing.T) {
	// Only one id is available; a second insert would panic the generator.
	s := createTestStore(t, "rev-1")
	ctx := context.Background()

	first, err := s.Save(ctx, flow.Document{ID: "flow-1", Snapshot: chainSnapshot()})
	require.NoError(t, err)
	second, err := s.Save(ctx, flow.Document{ID: "flow-1", Name: "Renamed", Snapshot: chainSnapshot()})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Seq, second.Seq)

	doc, err := s.Load(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", doc.Name, "flow row still tracks the latest name")
}

func TestSave_ReturningToEarlierContentAppends(t *testing.T) {
	s := createTestStore(t, "rev-1", "rev-2", "rev-3")
	ctx := context.Background()

	a := chainSnapshot()
	b := chainSnapshot()
	b.Nodes[0].Data["message"] = "Changed"

	first, err := s.Save(ctx, flow.Document{ID: "flow-1", Snapshot: a})
	require.NoError(t, err)
	_, err = s.Save(ctx, flow.Document{ID: "flow-1", Snapshot: b})
	require.NoError(t, err)
	third, err := s.Save(ctx, flow.Document{ID: "flow-1", Snapshot: a})
	require.NoError(t, err)

	assert.Equal(t, "rev-3", third.ID)
	assert.Equal(t, int64(3), third.Seq)
	assert.Equal(t, first.ContentHash, third.ContentHash)

	doc, err := s.Load(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", doc.Snapshot.Nodes[0].Data.Message())

	revs, err := s.History(ctx, "flow-1")
	require.NoError(t, err)
	assert.Len(t, revs, 3)
}

func TestSave_SeqIncrementsPerFlow(t *testing.T) {
	s := createTestStore(t, "rev-1", "rev-2", "rev-3")
	ctx := context.Background()

	snap := chainSnapshot()
	_, err := s.Save(ctx, flow.Document{ID: "a", Snapshot: snap})
	require.NoError(t, err)

	snap.Nodes[0].Data["message"] = "Changed"
	rev, err := s.Save(ctx, flow.Document{ID: "a", Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev.Seq)

	other, err := s.Save(ctx, flow.Document{ID: "b", Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Seq, "seq is per flow")
}

func TestSave_EmptyFlowID(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Save(context.Background(), flow.Document{Snapshot: chainSnapshot()})
	assert.Error(t, err)
}

func TestSave_CancelledContext(t *testing.T) {
	s := createTestStore(t, "rev-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, flow.Document{ID: "flow-1", Snapshot: chainSnapshot()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSave_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path, WithIDGenerator(flow.NewFixedGenerator("rev-1")))
	require.NoError(t, err)
	_, err = s1.Save(ctx, flow.Document{ID: "flow-1", Snapshot: chainSnapshot()})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	doc, err := s2.Load(ctx, "flow-1")
	require.NoError(t, err)
	assert.Equal(t, chainSnapshot(), doc.Snapshot)
}
