package graph

import (
	"fmt"

	"github.com/roach88/flowbuilder/internal/flow"
)

// NodeChangeType names a node delta emitted by the render surface.
type NodeChangeType string

const (
	NodeChangePosition   NodeChangeType = "position"
	NodeChangeRemove     NodeChangeType = "remove"
	NodeChangeSelect     NodeChangeType = "select"
	NodeChangeDimensions NodeChangeType = "dimensions"
)

// NodeChange is one node delta. Position is set for position changes.
type NodeChange struct {
	Type     NodeChangeType `json:"type" yaml:"type"`
	ID       flow.NodeID    `json:"id" yaml:"id"`
	Position *flow.Position `json:"position,omitempty" yaml:"position,omitempty"`
}

// EdgeChangeType names an edge delta emitted by the render surface.
type EdgeChangeType string

const (
	EdgeChangeRemove EdgeChangeType = "remove"
	EdgeChangeSelect EdgeChangeType = "select"
)

// EdgeChange is one edge delta; ID is the edge's wire id.
type EdgeChange struct {
	Type EdgeChangeType `json:"type" yaml:"type"`
	ID   string         `json:"id" yaml:"id"`
}

// ApplyNodeChanges applies a batch of node deltas. The whole batch is
// checked before anything is applied, so a bad delta changes nothing.
// Select and dimension deltas only concern the render surface and are
// skipped. Returns the ids actually removed.
func (s *Store) ApplyNodeChanges(changes []NodeChange) ([]flow.NodeID, error) {
	for i, c := range changes {
		switch c.Type {
		case NodeChangePosition:
			if c.Position == nil {
				return nil, fmt.Errorf("node change %d: position missing", i)
			}
			if !c.Position.Finite() {
				return nil, fmt.Errorf("node change %d: %w", i, ErrNonFinitePosition)
			}
			if !s.has(c.ID) {
				return nil, fmt.Errorf("node change %d: %w: %s", i, ErrNodeNotFound, c.ID)
			}
		case NodeChangeRemove, NodeChangeSelect, NodeChangeDimensions:
		default:
			return nil, fmt.Errorf("node change %d: %w: %q", i, ErrUnknownChange, c.Type)
		}
	}

	var removed []flow.NodeID
	for _, c := range changes {
		switch c.Type {
		case NodeChangePosition:
			// An earlier delta in the batch may have removed the node.
			if i, ok := s.index[c.ID]; ok {
				s.nodes[i].Position = *c.Position
			}
		case NodeChangeRemove:
			if s.RemoveNode(c.ID) {
				removed = append(removed, c.ID)
			}
		}
	}
	return removed, nil
}

// ApplyEdgeChanges applies a batch of edge deltas, checked up front like
// ApplyNodeChanges. Returns how many edges were removed.
func (s *Store) ApplyEdgeChanges(changes []EdgeChange) (int, error) {
	for i, c := range changes {
		switch c.Type {
		case EdgeChangeRemove:
			if len(s.edgesWithID(c.ID)) > 1 {
				return 0, fmt.Errorf("edge change %d: %w: %s", i, ErrAmbiguousEdgeID, c.ID)
			}
		case EdgeChangeSelect:
		default:
			return 0, fmt.Errorf("edge change %d: %w: %q", i, ErrUnknownChange, c.Type)
		}
	}

	removed := 0
	for _, c := range changes {
		if c.Type != EdgeChangeRemove {
			continue
		}
		ok, err := s.RemoveEdgeByID(c.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
