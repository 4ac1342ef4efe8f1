package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/flowbuilder/internal/canvas"
	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
	"github.com/roach88/flowbuilder/internal/palette"
	"github.com/roach88/flowbuilder/internal/persist"
	"github.com/roach88/flowbuilder/internal/selection"
	"github.com/roach88/flowbuilder/internal/status"
)

// ErrUnknownEvent is returned by Apply for an unrecognised event type.
var ErrUnknownEvent = errors.New("unknown event type")

// Editor holds the state of one flow being authored.
//
// Not safe for concurrent use. Use Loop to drive an Editor from several
// goroutines.
type Editor struct {
	store    *graph.Store
	sel      *selection.Controller
	status   *status.Notifier
	gateway  *persist.Gateway
	palette  *palette.Registry
	viewport canvas.Viewport
	doc      FlowMeta

	strictUpdates bool
	expiry        func(gen uint64)
	logger        *slog.Logger

	graphOpts   []graph.Option
	gatewayOpts []persist.GatewayOption
	backend     persist.Backend
}

// Option configures an Editor.
type Option func(*Editor)

// WithBackend sets where saves go. Default: an in-memory backend.
func WithBackend(b persist.Backend) Option {
	return func(e *Editor) {
		e.backend = b
	}
}

// WithGatewayOptions passes options to the save gateway.
func WithGatewayOptions(opts ...persist.GatewayOption) Option {
	return func(e *Editor) {
		e.gatewayOpts = append(e.gatewayOpts, opts...)
	}
}

// WithGraphOptions passes options to the graph store.
func WithGraphOptions(opts ...graph.Option) Option {
	return func(e *Editor) {
		e.graphOpts = append(e.graphOpts, opts...)
	}
}

// WithPalette sets the node type palette. Default: palette.Default().
func WithPalette(r *palette.Registry) Option {
	return func(e *Editor) {
		e.palette = r
	}
}

// WithFlow names the flow document being edited.
func WithFlow(id, name string) Option {
	return func(e *Editor) {
		e.doc = FlowMeta{ID: id, Name: name}
	}
}

// WithStrictUpdates makes UpdateNodeData report graph.ErrNodeNotFound
// instead of ignoring edits to a missing node.
func WithStrictUpdates(strict bool) Option {
	return func(e *Editor) {
		e.strictUpdates = strict
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// New creates an Editor with an empty flow. sched drives status
// auto-dismissal.
func New(sched status.Scheduler, opts ...Option) *Editor {
	e := &Editor{
		viewport: canvas.Identity(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.palette == nil {
		e.palette = palette.Default()
	}
	if e.backend == nil {
		e.backend = persist.NewMemoryBackend(nil, nil)
	}
	if e.doc.ID == "" {
		e.doc.ID = flow.UUIDv7Generator{}.Generate()
	}

	e.status = status.NewNotifier(sched,
		status.WithExpiry(func(gen uint64) { e.expiry(gen) }),
		status.WithLogger(e.logger),
	)
	e.expiry = func(gen uint64) { e.status.Dismiss(gen) }

	e.sel = selection.New(e.status, e.logger)
	e.store = graph.New(append([]graph.Option{graph.WithLogger(e.logger)}, e.graphOpts...)...)
	e.store.OnNodeRemoved(e.sel.NodeDeleted)
	e.gateway = persist.NewGateway(e.backend, e.status,
		append([]persist.GatewayOption{persist.WithGatewayLogger(e.logger)}, e.gatewayOpts...)...)
	return e
}

// SetExpiryHandler replaces what happens when a status timer fires. The
// handler runs on the scheduler's goroutine.
func (e *Editor) SetExpiryHandler(fn func(gen uint64)) {
	e.expiry = fn
}

// Drop creates a node of nodeType at the canvas point under screen.
// An empty nodeType is ignored and returns "".
func (e *Editor) Drop(nodeType string, screen flow.Position) (flow.NodeID, error) {
	if nodeType == "" {
		e.logger.Debug("drop without type ignored")
		return "", nil
	}
	pos := e.viewport.ScreenToCanvas(screen)
	data := e.palette.DefaultData(nodeType, e.store.Len())
	return e.store.AddNode(nodeType, pos, data)
}

// Connect adds candidate if the connection policy accepts it. Rejections
// are silent: the result is false and nothing changes.
func (e *Editor) Connect(candidate flow.Edge) bool {
	_, err := e.store.AddEdge(candidate)
	return err == nil
}

// NodeClick opens the settings editor on id. Clicks on unknown ids are
// ignored so the selection never references a missing node.
func (e *Editor) NodeClick(id flow.NodeID) {
	if _, ok := e.store.Node(id); !ok {
		e.logger.Debug("click on unknown node ignored", "id", id)
		return
	}
	e.sel.Click(id)
}

// PaneClick closes the settings editor.
func (e *Editor) PaneClick() {
	e.sel.ClickEmptyCanvas()
}

// CloseEditor closes the settings editor.
func (e *Editor) CloseEditor() {
	e.sel.CloseEditor()
}

// NodesChange applies node deltas from the render surface.
func (e *Editor) NodesChange(changes []graph.NodeChange) error {
	_, err := e.store.ApplyNodeChanges(changes)
	return err
}

// EdgesChange applies edge deltas from the render surface.
func (e *Editor) EdgesChange(changes []graph.EdgeChange) error {
	_, err := e.store.ApplyEdgeChanges(changes)
	return err
}

// UpdateNodeData shallow-merges patch into a node's data.
func (e *Editor) UpdateNodeData(id flow.NodeID, patch flow.Data) error {
	if e.store.UpdateNodeData(id, patch) || !e.strictUpdates {
		return nil
	}
	return fmt.Errorf("update node data: %w: %s", graph.ErrNodeNotFound, id)
}

// SetViewport records the render surface's pan and zoom.
func (e *Editor) SetViewport(vp canvas.Viewport) error {
	if err := vp.Validate(); err != nil {
		return err
	}
	e.viewport = vp
	return nil
}

// Save validates and persists the current flow.
func (e *Editor) Save(ctx context.Context) persist.Result {
	return e.gateway.Save(ctx, flow.Document{
		ID:       e.doc.ID,
		Name:     e.doc.Name,
		Snapshot: e.store.Snapshot(),
	})
}

// Load replaces the flow with the newest stored revision of flowID.
func (e *Editor) Load(ctx context.Context, flowID string) error {
	doc, err := e.gateway.Load(ctx, flowID)
	if err != nil {
		return err
	}
	if err := e.store.Load(doc.Snapshot); err != nil {
		return err
	}
	e.doc = FlowMeta{ID: doc.ID, Name: doc.Name}
	e.logger.Info("flow loaded", "flow", doc.ID, "nodes", len(doc.Snapshot.Nodes))
	return nil
}

// DismissStatus clears the status message if it is still generation gen.
func (e *Editor) DismissStatus(gen uint64) {
	e.status.Dismiss(gen)
}

// History lists the stored revisions of the flow being edited.
func (e *Editor) History(ctx context.Context) ([]persist.Revision, error) {
	return e.gateway.History(ctx, e.doc.ID)
}

// Snapshot returns a copy of the current flow.
func (e *Editor) Snapshot() flow.Snapshot {
	return e.store.Snapshot()
}

// Selection returns the selection state and the node being edited.
func (e *Editor) Selection() (selection.State, flow.NodeID) {
	id, _ := e.sel.Active()
	return e.sel.State(), id
}

// Status returns the current status message.
func (e *Editor) Status() (status.Message, bool) {
	return e.status.Current()
}

// Palette returns the node type palette.
func (e *Editor) Palette() *palette.Registry {
	return e.palette
}

// Apply routes ev to its handler and returns the reply with the new view.
func (e *Editor) Apply(ctx context.Context, ev Event) (Reply, error) {
	var reply Reply
	var err error

	switch ev.Type {
	case EventDrop:
		var screen flow.Position
		if ev.Screen != nil {
			screen = *ev.Screen
		}
		reply.NodeID, err = e.Drop(ev.NodeType, screen)
	case EventConnect:
		if ev.Connection == nil {
			err = errors.New("connect: connection missing")
			break
		}
		reply.Accepted = e.Connect(*ev.Connection)
	case EventNodeClick:
		e.NodeClick(ev.NodeID)
	case EventPaneClick:
		e.PaneClick()
	case EventNodesChange:
		err = e.NodesChange(ev.NodeChanges)
	case EventEdgesChange:
		err = e.EdgesChange(ev.EdgeChanges)
	case EventUpdateNode:
		err = e.UpdateNodeData(ev.NodeID, ev.Data)
	case EventCloseEditor:
		e.CloseEditor()
	case EventSave:
		res := e.Save(ctx)
		reply.Save = &res
	case EventLoad:
		err = e.Load(ctx, ev.FlowID)
	case EventViewport:
		if ev.Viewport == nil {
			err = errors.New("viewport: viewport missing")
			break
		}
		err = e.SetViewport(*ev.Viewport)
	case EventDismissStatus:
		e.DismissStatus(ev.Generation)
	case EventView:
	case EventHistory:
		reply.History, err = e.History(ctx)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	if err != nil {
		e.logger.Debug("event rejected", "type", ev.Type, "error", err)
		return Reply{View: e.View()}, err
	}
	e.logger.Debug("event applied", "type", ev.Type)
	reply.View = e.View()
	return reply, nil
}
