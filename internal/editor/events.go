package editor

import (
	"github.com/roach88/flowbuilder/internal/canvas"
	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
	"github.com/roach88/flowbuilder/internal/persist"
)

// EventType names an inbound render-surface event.
type EventType string

const (
	EventDrop          EventType = "drop"
	EventConnect       EventType = "connect"
	EventNodeClick     EventType = "node_click"
	EventPaneClick     EventType = "pane_click"
	EventNodesChange   EventType = "nodes_change"
	EventEdgesChange   EventType = "edges_change"
	EventUpdateNode    EventType = "update_node"
	EventCloseEditor   EventType = "close_editor"
	EventSave          EventType = "save"
	EventLoad          EventType = "load"
	EventViewport      EventType = "viewport"
	EventDismissStatus EventType = "dismiss_status"

	// EventView changes nothing; its reply carries the current view.
	EventView EventType = "view"

	// EventHistory lists the stored revisions of the current flow.
	EventHistory EventType = "history"
)

// Event is one inbound event. Only the fields relevant to Type are set.
type Event struct {
	Type EventType `json:"type" yaml:"type"`

	// drop
	NodeType string         `json:"nodeType,omitempty" yaml:"node_type,omitempty"`
	Screen   *flow.Position `json:"screen,omitempty" yaml:"screen,omitempty"`

	// connect
	Connection *flow.Edge `json:"connection,omitempty" yaml:"connection,omitempty"`

	// node_click, update_node
	NodeID flow.NodeID `json:"nodeId,omitempty" yaml:"node_id,omitempty"`
	Data   flow.Data   `json:"data,omitempty" yaml:"data,omitempty"`

	// nodes_change, edges_change
	NodeChanges []graph.NodeChange `json:"nodeChanges,omitempty" yaml:"node_changes,omitempty"`
	EdgeChanges []graph.EdgeChange `json:"edgeChanges,omitempty" yaml:"edge_changes,omitempty"`

	// viewport
	Viewport *canvas.Viewport `json:"viewport,omitempty" yaml:"viewport,omitempty"`

	// load
	FlowID string `json:"flowId,omitempty" yaml:"flow_id,omitempty"`

	// dismiss_status
	Generation uint64 `json:"generation,omitempty" yaml:"generation,omitempty"`
}

// Reply is what handling an event produced.
type Reply struct {
	// NodeID is the id allocated by a drop.
	NodeID flow.NodeID `json:"nodeId,omitempty"`

	// Accepted reports whether a connect produced an edge.
	Accepted bool `json:"accepted,omitempty"`

	// Save is set for save events.
	Save *persist.Result `json:"save,omitempty"`

	// History is set for history events.
	History []persist.Revision `json:"history,omitempty"`

	View View `json:"view"`
}
