package editor

import (
	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/palette"
	"github.com/roach88/flowbuilder/internal/status"
)

// PanelKind selects the side panel.
type PanelKind string

const (
	PanelNodes    PanelKind = "nodes"
	PanelSettings PanelKind = "settings"
)

// View is the outbound state the render surface draws.
type View struct {
	Flow      FlowMeta          `json:"flow"`
	Nodes     []flow.Node       `json:"nodes"`
	Edges     []EdgeView        `json:"edges"`
	NodeTypes map[string]string `json:"nodeTypes"`
	Panel     Panel             `json:"panel"`
	Status    *status.Message   `json:"status,omitempty"`
}

// FlowMeta identifies the flow being edited.
type FlowMeta struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EdgeView is an edge with its wire id.
type EdgeView struct {
	ID string `json:"id"`
	flow.Edge
}

// Panel is the nodes palette when Idle and the settings editor otherwise.
type Panel struct {
	Kind    PanelKind            `json:"kind"`
	NodeID  flow.NodeID          `json:"nodeId,omitempty"`
	Message string               `json:"message,omitempty"`
	Palette []palette.Descriptor `json:"palette,omitempty"`
}

// View returns the current outbound state.
func (e *Editor) View() View {
	snap := e.store.Snapshot()

	edges := make([]EdgeView, len(snap.Edges))
	for i, edge := range snap.Edges {
		edges[i] = EdgeView{ID: edge.ID(), Edge: edge}
	}

	v := View{
		Flow:      FlowMeta{ID: e.doc.ID, Name: e.doc.Name},
		Nodes:     snap.Nodes,
		Edges:     edges,
		NodeTypes: e.palette.Renderers(),
		Panel:     Panel{Kind: PanelNodes, Palette: e.palette.Descriptors()},
	}

	if id, ok := e.sel.Active(); ok {
		n, _ := e.store.Node(id)
		v.Panel = Panel{Kind: PanelSettings, NodeID: id, Message: n.Data.Message()}
	}
	if msg, ok := e.status.Current(); ok {
		v.Status = &msg
	}
	return v
}
