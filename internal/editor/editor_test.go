package editor

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowbuilder/internal/canvas"
	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
	"github.com/roach88/flowbuilder/internal/persist"
	"github.com/roach88/flowbuilder/internal/selection"
	"github.com/roach88/flowbuilder/internal/status"
	"github.com/roach88/flowbuilder/internal/testutil"
)

type fixture struct {
	ed      *Editor
	sched   *testutil.ManualScheduler
	backend *persist.MemoryBackend
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := testutil.NewFixedClock(time.UnixMilli(1700000000000))
	sched := testutil.NewManualScheduler()
	backend := persist.NewMemoryBackend(flow.NewFixedGenerator("rev-1", "rev-2", "rev-3"), clock.Now)

	base := []Option{
		WithFlow("flow-1", "Welcome"),
		WithBackend(backend),
		WithGraphOptions(graph.WithClock(clock.Now)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	ed := New(sched, append(base, opts...)...)
	return &fixture{ed: ed, sched: sched, backend: backend}
}

func (f *fixture) drop(t *testing.T, x, y float64) flow.NodeID {
	t.Helper()
	id, err := f.ed.Drop("textNode", flow.Position{X: x, Y: y})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	return id
}

func assertGoldenView(t *testing.T, name string, v View) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
}

func TestDrop_SeedsDefaultData(t *testing.T) {
	f := newFixture(t)

	n1 := f.drop(t, 0, 0)
	n2 := f.drop(t, 100, 0)

	node1, _ := f.ed.store.Node(n1)
	node2, _ := f.ed.store.Node(n2)
	assert.Equal(t, "test message 1", node1.Data.Message())
	assert.Equal(t, "test message 2", node2.Data.Message())
	assert.NotEqual(t, n1, n2)
}

func TestDrop_UsesViewport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ed.SetViewport(canvas.Viewport{
		Origin: flow.Position{X: 200},
		Pan:    flow.Position{X: 50, Y: 50},
		Zoom:   2,
	}))

	id := f.drop(t, 450, 250)
	n, _ := f.ed.store.Node(id)
	assert.Equal(t, flow.Position{X: 100, Y: 100}, n.Position)
}

func TestDrop_EmptyTypeIgnored(t *testing.T) {
	f := newFixture(t)

	id, err := f.ed.Drop("", flow.Position{})
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, f.ed.Snapshot().Nodes)
}

func TestDrop_UnknownTypeGetsEmptyData(t *testing.T) {
	f := newFixture(t)

	id, err := f.ed.Drop("customNode", flow.Position{})
	require.NoError(t, err)
	n, _ := f.ed.store.Node(id)
	assert.Equal(t, flow.Data{}, n.Data)
}

func TestConnect_DuplicateHandleSilentlyDropped(t *testing.T) {
	f := newFixture(t)
	n1, n2, n3 := f.drop(t, 0, 0), f.drop(t, 100, 0), f.drop(t, 200, 0)

	assert.True(t, f.ed.Connect(flow.Edge{Source: n1, SourceHandle: "h1", Target: n2}))
	assert.False(t, f.ed.Connect(flow.Edge{Source: n1, SourceHandle: "h1", Target: n3}))

	edges := f.ed.Snapshot().Edges
	require.Len(t, edges, 1)
	assert.Equal(t, n2, edges[0].Target)

	_, ok := f.ed.Status()
	assert.False(t, ok, "rejected connection shows no message")
}

func TestSelection_ClickClickPane(t *testing.T) {
	f := newFixture(t)
	n1, n2 := f.drop(t, 0, 0), f.drop(t, 100, 0)

	f.ed.NodeClick(n1)
	f.ed.NodeClick(n2)
	state, active := f.ed.Selection()
	assert.Equal(t, selection.StateEditing, state)
	assert.Equal(t, n2, active)

	f.ed.PaneClick()
	state, _ = f.ed.Selection()
	assert.Equal(t, selection.StateIdle, state)
}

func TestSelection_DeletingEditedNodeReturnsIdle(t *testing.T) {
	f := newFixture(t)
	n1, n2 := f.drop(t, 0, 0), f.drop(t, 100, 0)
	require.True(t, f.ed.Connect(flow.Edge{Source: n1, Target: n2}))

	f.ed.NodeClick(n2)
	require.NoError(t, f.ed.NodesChange([]graph.NodeChange{{Type: graph.NodeChangeRemove, ID: n2}}))

	state, _ := f.ed.Selection()
	assert.Equal(t, selection.StateIdle, state)
	assert.Empty(t, f.ed.Snapshot().Edges, "edges cascade with the node")
	assert.Equal(t, PanelNodes, f.ed.View().Panel.Kind)
}

func TestSelection_UnknownNodeClickIgnored(t *testing.T) {
	f := newFixture(t)
	f.ed.NodeClick("ghost")
	state, _ := f.ed.Selection()
	assert.Equal(t, selection.StateIdle, state)
}

func TestSelection_ChangeClearsStatus(t *testing.T) {
	f := newFixture(t)
	n1 := f.drop(t, 0, 0)
	f.drop(t, 100, 0)

	res := f.ed.Save(context.Background())
	require.Equal(t, persist.OutcomeRejected, res.Outcome)
	_, ok := f.ed.Status()
	require.True(t, ok)

	f.ed.NodeClick(n1)
	_, ok = f.ed.Status()
	assert.False(t, ok)
	assert.Equal(t, 0, f.sched.Pending(), "pending dismissal cancelled")
}

func TestSave_RejectThenFix(t *testing.T) {
	f := newFixture(t)
	n1, n2 := f.drop(t, 0, 0), f.drop(t, 100, 0)
	before := f.ed.Snapshot()

	res := f.ed.Save(context.Background())
	assert.Equal(t, persist.OutcomeRejected, res.Outcome)
	assert.Equal(t, persist.ReasonMultipleEntryPoints, res.Reason)
	assert.Equal(t, before, f.ed.Snapshot())

	hist, err := f.ed.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, hist, "nothing written on rejection")

	require.True(t, f.ed.Connect(flow.Edge{Source: n1, Target: n2}))
	res = f.ed.Save(context.Background())
	require.True(t, res.OK())

	msg, ok := f.ed.Status()
	require.True(t, ok)
	assert.Equal(t, status.KindSuccess, msg.Kind)

	f.sched.Advance(3 * time.Second)
	_, ok = f.ed.Status()
	assert.False(t, ok)
}

func TestUpdateNodeData(t *testing.T) {
	f := newFixture(t)
	n1 := f.drop(t, 0, 0)

	require.NoError(t, f.ed.UpdateNodeData(n1, flow.Data{"message": "Hello there"}))
	f.ed.NodeClick(n1)
	assert.Equal(t, "Hello there", f.ed.View().Panel.Message)

	assert.NoError(t, f.ed.UpdateNodeData("ghost", flow.Data{"message": "x"}))
}

func TestUpdateNodeData_Strict(t *testing.T) {
	f := newFixture(t, WithStrictUpdates(true))
	err := f.ed.UpdateNodeData("ghost", flow.Data{"message": "x"})
	require.ErrorIs(t, err, graph.ErrNodeNotFound)
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	n1, n2 := f.drop(t, 0, 0), f.drop(t, 100, 0)
	require.True(t, f.ed.Connect(flow.Edge{Source: n1, Target: n2}))
	require.True(t, f.ed.Save(context.Background()).OK())
	saved := f.ed.Snapshot()

	other := New(testutil.NewManualScheduler(),
		WithFlow("other", ""),
		WithBackend(f.backend),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, other.Load(context.Background(), "flow-1"))
	assert.Equal(t, saved, other.Snapshot())
	assert.Equal(t, FlowMeta{ID: "flow-1", Name: "Welcome"}, other.View().Flow)

	err := other.Load(context.Background(), "missing")
	require.ErrorIs(t, err, persist.ErrNotFound)
}

func TestApply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.ed.Apply(ctx, Event{Type: EventDrop, NodeType: "textNode", Screen: &flow.Position{}})
	require.NoError(t, err)
	n1 := reply.NodeID
	require.NotEmpty(t, n1)

	reply, err = f.ed.Apply(ctx, Event{Type: EventDrop, NodeType: "textNode", Screen: &flow.Position{X: 100}})
	require.NoError(t, err)
	n2 := reply.NodeID

	reply, err = f.ed.Apply(ctx, Event{Type: EventConnect, Connection: &flow.Edge{Source: n1, Target: n2}})
	require.NoError(t, err)
	assert.True(t, reply.Accepted)
	assert.Len(t, reply.View.Edges, 1)

	reply, err = f.ed.Apply(ctx, Event{Type: EventSave})
	require.NoError(t, err)
	require.NotNil(t, reply.Save)
	assert.True(t, reply.Save.OK())
	require.NotNil(t, reply.View.Status)
	assert.Equal(t, persist.TextSaved, reply.View.Status.Text)

	reply, err = f.ed.Apply(ctx, Event{Type: EventDismissStatus, Generation: reply.View.Status.Generation})
	require.NoError(t, err)
	assert.Nil(t, reply.View.Status)

	_, err = f.ed.Apply(ctx, Event{Type: "explode"})
	require.ErrorIs(t, err, ErrUnknownEvent)

	_, err = f.ed.Apply(ctx, Event{Type: EventConnect})
	require.Error(t, err)

	_, err = f.ed.Apply(ctx, Event{Type: EventViewport, Viewport: &canvas.Viewport{}})
	require.ErrorIs(t, err, canvas.ErrInvalidZoom)
}

func TestView_EditingGolden(t *testing.T) {
	f := newFixture(t)
	n1, n2 := f.drop(t, 0, 0), f.drop(t, 100, 0)
	require.True(t, f.ed.Connect(flow.Edge{Source: n1, Target: n2}))
	f.ed.NodeClick(n2)

	assertGoldenView(t, "view_editing", f.ed.View())
}

func TestView_RejectedSaveGolden(t *testing.T) {
	f := newFixture(t)
	f.drop(t, 0, 0)
	f.drop(t, 100, 0)
	f.ed.Save(context.Background())

	assertGoldenView(t, "view_rejected_save", f.ed.View())
}
