package graph

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/testutil"
)

// newTestStore creates a store with a frozen clock and silent logger.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	clock := testutil.NewFixedClock(time.UnixMilli(1700000000000))
	base := []Option{
		WithClock(clock.Now),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(append(base, opts...)...)
}

func addNode(t *testing.T, s *Store, x float64) flow.NodeID {
	t.Helper()
	id, err := s.AddNode("textNode", flow.Position{X: x}, flow.Data{"message": "m"})
	require.NoError(t, err)
	return id
}

func TestAddNode_IDsPairwiseDistinct(t *testing.T) {
	s := newTestStore(t)

	seen := make(map[flow.NodeID]bool)
	for i := 0; i < 200; i++ {
		id := addNode(t, s, float64(i))
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 200, s.Len())
}

func TestAddNode_IDFormat(t *testing.T) {
	s := newTestStore(t)
	id := addNode(t, s, 0)
	assert.Equal(t, flow.NodeID("textNode-1700000000000-1"), id)
}

func TestAddNode_SkipsIDsTakenByLoadedSnapshot(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load(flow.Snapshot{Nodes: []flow.Node{
		{ID: "textNode-1700000000000-1", Type: "textNode"},
	}}))

	id := addNode(t, s, 0)
	assert.Equal(t, flow.NodeID("textNode-1700000000000-2"), id)
}

func TestAddNode_RejectsNonFinite(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AddNode("textNode", flow.Position{X: math.NaN()}, nil)
	require.ErrorIs(t, err, ErrNonFinitePosition)

	_, err = s.AddNode("textNode", flow.Position{Y: math.Inf(-1)}, nil)
	require.ErrorIs(t, err, ErrNonFinitePosition)

	assert.Equal(t, 0, s.Len())
}

func TestAddNode_RejectsEmptyType(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddNode("", flow.Position{}, nil)
	require.ErrorIs(t, err, ErrEmptyType)
}

func TestAddNode_CopiesInitialData(t *testing.T) {
	s := newTestStore(t)
	data := flow.Data{"message": "a"}
	id, err := s.AddNode("textNode", flow.Position{}, data)
	require.NoError(t, err)

	data["message"] = "mutated"
	n, ok := s.Node(id)
	require.True(t, ok)
	assert.Equal(t, "a", n.Data.Message())
}

func TestUpdateNodeData_ShallowMerge(t *testing.T) {
	s := newTestStore(t)
	id, err := s.AddNode("textNode", flow.Position{}, flow.Data{"message": "old", "tag": "keep"})
	require.NoError(t, err)

	require.True(t, s.UpdateNodeData(id, flow.Data{"message": "new"}))

	n, _ := s.Node(id)
	assert.Equal(t, flow.Data{"message": "new", "tag": "keep"}, n.Data)
}

func TestUpdateNodeData_MissingIsNoOp(t *testing.T) {
	s := newTestStore(t)
	addNode(t, s, 0)
	before := s.Snapshot()

	assert.False(t, s.UpdateNodeData("nope", flow.Data{"message": "x"}))
	assert.Equal(t, before, s.Snapshot())
}

func TestRemoveNode_Cascades(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)
	n2 := addNode(t, s, 100)
	n3 := addNode(t, s, 200)

	_, err := s.AddEdge(flow.Edge{Source: n1, Target: n2})
	require.NoError(t, err)
	_, err = s.AddEdge(flow.Edge{Source: n2, Target: n3})
	require.NoError(t, err)
	_, err = s.AddEdge(flow.Edge{Source: n1, SourceHandle: "b", Target: n3})
	require.NoError(t, err)

	require.True(t, s.RemoveNode(n2))

	snap := s.Snapshot()
	for _, e := range snap.Edges {
		assert.False(t, e.Touches(n2), "edge %s still references removed node", e.ID())
	}
	assert.Len(t, snap.Edges, 1)
	assert.Len(t, snap.Nodes, 2)

	_, ok := s.Node(n3)
	assert.True(t, ok, "index must be rebuilt after removal")
}

func TestRemoveNode_NotifiesListeners(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)

	var got []flow.NodeID
	s.OnNodeRemoved(func(id flow.NodeID) { got = append(got, id) })

	assert.False(t, s.RemoveNode("missing"))
	assert.True(t, s.RemoveNode(n1))
	assert.Equal(t, []flow.NodeID{n1}, got)
}

func TestAddEdge_DuplicateHandleKeepsFirst(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)
	n2 := addNode(t, s, 100)
	n3 := addNode(t, s, 200)

	_, err := s.AddEdge(flow.Edge{Source: n1, SourceHandle: "h1", Target: n2})
	require.NoError(t, err)
	_, err = s.AddEdge(flow.Edge{Source: n1, SourceHandle: "h1", Target: n3})
	require.ErrorIs(t, err, ErrDuplicateSourceHandle)

	snap := s.Snapshot()
	require.Len(t, snap.Edges, 1)
	assert.Equal(t, n2, snap.Edges[0].Target)
}

func TestAddEdge_ManyIncomingAllowed(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)
	n2 := addNode(t, s, 100)
	n3 := addNode(t, s, 200)

	_, err := s.AddEdge(flow.Edge{Source: n1, Target: n3})
	require.NoError(t, err)
	_, err = s.AddEdge(flow.Edge{Source: n2, Target: n3})
	require.NoError(t, err)
	assert.Equal(t, 2, s.EdgeCount())
}

func TestAddEdge_UnknownEndpoint(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)

	_, err := s.AddEdge(flow.Edge{Source: n1, Target: "ghost"})
	require.ErrorIs(t, err, ErrUnknownEndpoint)
	_, err = s.AddEdge(flow.Edge{Source: "ghost", Target: n1})
	require.ErrorIs(t, err, ErrUnknownEndpoint)
	assert.Equal(t, 0, s.EdgeCount())
}

func TestAddEdge_SelfLoopPolicy(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)
	_, err := s.AddEdge(flow.Edge{Source: n1, Target: n1})
	require.NoError(t, err, "self-loops allowed by default")

	strict := newTestStore(t, WithPolicy(Policy{AllowSelfLoops: false}))
	m1 := addNode(t, strict, 0)
	_, err = strict.AddEdge(flow.Edge{Source: m1, Target: m1})
	require.ErrorIs(t, err, ErrSelfLoop)
}

func TestRemoveEdge(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)
	n2 := addNode(t, s, 100)
	e, err := s.AddEdge(flow.Edge{Source: n1, Target: n2})
	require.NoError(t, err)

	assert.False(t, s.RemoveEdge(flow.EdgeKey{Source: n2, Target: n1}))
	assert.True(t, s.RemoveEdge(e.Key()))
	assert.Equal(t, 0, s.EdgeCount())

	// The freed handle can be reused.
	_, err = s.AddEdge(flow.Edge{Source: n1, Target: n2})
	require.NoError(t, err)
	ok, err := s.RemoveEdgeByID(e.ID())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveEdgeByID_SharedWireID(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Load(flow.Snapshot{
		Nodes: []flow.Node{
			{ID: "n1", Type: "textNode", Data: flow.Data{}},
			{ID: "n1a", Type: "textNode", Data: flow.Data{}},
			{ID: "x", Type: "textNode", Data: flow.Data{}},
		},
		Edges: []flow.Edge{
			{Source: "n1", SourceHandle: "a", Target: "x"},
			{Source: "n1a", Target: "x"},
		},
	}))
	before := s.Snapshot()
	require.Equal(t, before.Edges[0].ID(), before.Edges[1].ID())

	ok, err := s.RemoveEdgeByID("xy-edge__n1a-x")
	require.ErrorIs(t, err, ErrAmbiguousEdgeID)
	assert.False(t, ok)
	assert.Equal(t, before, s.Snapshot())

	// Key-based removal still distinguishes them.
	assert.True(t, s.RemoveEdge(flow.EdgeKey{Source: "n1a", Target: "x"}))
	ok, err = s.RemoveEdgeByID("xy-edge__n1a-x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, s.EdgeCount())
}

func TestMoveNode(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)

	require.NoError(t, s.MoveNode(n1, flow.Position{X: 5, Y: 6}))
	n, _ := s.Node(n1)
	assert.Equal(t, flow.Position{X: 5, Y: 6}, n.Position)

	require.ErrorIs(t, s.MoveNode("missing", flow.Position{}), ErrNodeNotFound)
	require.ErrorIs(t, s.MoveNode(n1, flow.Position{X: math.NaN()}), ErrNonFinitePosition)
}

func TestSnapshot_IsReadOnlyCopy(t *testing.T) {
	s := newTestStore(t)
	n1 := addNode(t, s, 0)

	snap := s.Snapshot()
	snap.Nodes[0].Data["message"] = "changed"
	snap.Nodes[0].Position.X = 99

	n, _ := s.Node(n1)
	assert.Equal(t, "m", n.Data.Message())
	assert.Equal(t, float64(0), n.Position.X)
}

func TestSnapshot_PreservesInsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ids := []flow.NodeID{addNode(t, s, 0), addNode(t, s, 1), addNode(t, s, 2)}

	snap := s.Snapshot()
	for i, n := range snap.Nodes {
		assert.Equal(t, ids[i], n.ID)
	}
}

func TestLoad_RejectsBadSnapshotsUnchanged(t *testing.T) {
	tests := []struct {
		name string
		snap flow.Snapshot
		want error
	}{
		{
			name: "duplicate id",
			snap: flow.Snapshot{Nodes: []flow.Node{{ID: "a", Type: "t"}, {ID: "a", Type: "t"}}},
			want: ErrDuplicateNodeID,
		},
		{
			name: "dangling edge",
			snap: flow.Snapshot{
				Nodes: []flow.Node{{ID: "a", Type: "t"}},
				Edges: []flow.Edge{{Source: "a", Target: "b"}},
			},
			want: ErrUnknownEndpoint,
		},
		{
			name: "duplicate handle",
			snap: flow.Snapshot{
				Nodes: []flow.Node{{ID: "a", Type: "t"}, {ID: "b", Type: "t"}, {ID: "c", Type: "t"}},
				Edges: []flow.Edge{{Source: "a", Target: "b"}, {Source: "a", Target: "c"}},
			},
			want: ErrDuplicateSourceHandle,
		},
		{
			name: "empty id",
			snap: flow.Snapshot{Nodes: []flow.Node{{Type: "t"}}},
			want: ErrEmptyNodeID,
		},
		{
			name: "empty type",
			snap: flow.Snapshot{Nodes: []flow.Node{{ID: "a"}}},
			want: ErrEmptyType,
		},
		{
			name: "non-finite",
			snap: flow.Snapshot{Nodes: []flow.Node{{ID: "a", Type: "t", Position: flow.Position{X: math.Inf(1)}}}},
			want: ErrNonFinitePosition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			addNode(t, s, 0)
			before := s.Snapshot()

			err := s.Load(tt.snap)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, s.Snapshot())
		})
	}
}

func TestLoad_ReplacesAndNotifiesDropped(t *testing.T) {
	s := newTestStore(t)
	old := addNode(t, s, 0)

	var dropped []flow.NodeID
	s.OnNodeRemoved(func(id flow.NodeID) { dropped = append(dropped, id) })

	snap := flow.Snapshot{
		Nodes: []flow.Node{
			{ID: "a", Type: "textNode", Data: flow.Data{}},
			{ID: "b", Type: "textNode", Data: flow.Data{"message": "hi"}},
		},
		Edges: []flow.Edge{{Source: "a", Target: "b"}},
	}
	require.NoError(t, s.Load(snap))

	assert.Equal(t, snap, s.Snapshot())
	assert.Equal(t, []flow.NodeID{old}, dropped)
}
