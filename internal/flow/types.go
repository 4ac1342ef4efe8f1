package flow

import (
	"fmt"
	"maps"
	"math"
)

// NodeID identifies a node within a flow. Unique at all times.
type NodeID string

// Position is a point on the canvas in flow coordinates.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Finite reports whether both coordinates are finite numbers.
func (p Position) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// Data holds the named fields of a node, e.g. "message".
type Data map[string]any

// Clone returns a shallow copy of d. Nested maps and slices are shared,
// which is fine because updates only ever replace top-level keys.
func (d Data) Clone() Data {
	if d == nil {
		return Data{}
	}
	return maps.Clone(d)
}

// Merge returns a copy of d with every key in patch applied on top.
// Keys absent from patch are retained.
func (d Data) Merge(patch Data) Data {
	out := d.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Message returns the "message" field when it is a string.
func (d Data) Message() string {
	s, _ := d[FieldMessage].(string)
	return s
}

// FieldMessage is the data key edited by the settings panel.
const FieldMessage = "message"

// Node is a single step of the conversation.
type Node struct {
	ID       NodeID   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	Position Position `json:"position" yaml:"position"`
	Data     Data     `json:"data" yaml:"data"`
}

// Clone returns a copy of n that shares no top-level data map.
func (n Node) Clone() Node {
	n.Data = n.Data.Clone()
	return n
}

// HandleKey is the (source, sourceHandle) pair a connection leaves from.
// At most one edge may exist per HandleKey.
type HandleKey struct {
	Source       NodeID
	SourceHandle string
}

// EdgeKey is the full identity of an edge.
type EdgeKey struct {
	Source       NodeID
	SourceHandle string
	Target       NodeID
	TargetHandle string
}

// String renders the key in the render surface's edge id format. The
// parts are joined without separators, so distinct keys can share a string.
func (k EdgeKey) String() string {
	return fmt.Sprintf("xy-edge__%s%s-%s%s", k.Source, k.SourceHandle, k.Target, k.TargetHandle)
}

// Handle returns the outgoing handle this edge occupies.
func (k EdgeKey) Handle() HandleKey {
	return HandleKey{Source: k.Source, SourceHandle: k.SourceHandle}
}

// Edge is a directed connection between two nodes. Handles are optional;
// an empty handle means the node's default handle.
type Edge struct {
	Source       NodeID `json:"source" yaml:"source"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	Target       NodeID `json:"target" yaml:"target"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// Key returns the composite identity of e.
func (e Edge) Key() EdgeKey {
	return EdgeKey{
		Source:       e.Source,
		SourceHandle: e.SourceHandle,
		Target:       e.Target,
		TargetHandle: e.TargetHandle,
	}
}

// ID returns the wire id of e.
func (e Edge) ID() string {
	return e.Key().String()
}

// Touches reports whether id is either endpoint of e.
func (e Edge) Touches(id NodeID) bool {
	return e.Source == id || e.Target == id
}

// Snapshot is a point-in-time copy of a flow, insertion order preserved.
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Clone deep-copies the node and edge slices.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Nodes: make([]Node, len(s.Nodes)),
		Edges: make([]Edge, len(s.Edges)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Edges, s.Edges)
	return out
}

// Node looks up a node by id.
func (s Snapshot) Node(id NodeID) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}
