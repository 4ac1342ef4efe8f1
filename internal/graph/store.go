package graph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/flowbuilder/internal/flow"
)

// RemoveListener is notified after a node and its edges are removed.
type RemoveListener func(id flow.NodeID)

// Store owns the node and edge collections of one flow.
//
// Not safe for concurrent use: callers serialise access through the
// editor's single-writer event loop.
type Store struct {
	nodes []flow.Node
	edges []flow.Edge
	index map[flow.NodeID]int // position of each node in nodes

	ids    IDSeq
	now    func() time.Time
	policy Policy
	logger *slog.Logger

	listeners []RemoveListener
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for node ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithPolicy sets the connection policy. Default: DefaultPolicy().
func WithPolicy(p Policy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithIDSeq seeds the id allocator.
func WithIDSeq(seq IDSeq) Option {
	return func(s *Store) {
		s.ids = seq
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		index:  make(map[flow.NodeID]int),
		now:    time.Now,
		policy: DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnNodeRemoved registers fn to run after every RemoveNode.
func (s *Store) OnNodeRemoved(fn RemoveListener) {
	s.listeners = append(s.listeners, fn)
}

// AddNode allocates a fresh id and appends a node.
// Fails only for an empty type or a non-finite position.
func (s *Store) AddNode(nodeType string, pos flow.Position, data flow.Data) (flow.NodeID, error) {
	if nodeType == "" {
		return "", ErrEmptyType
	}
	if !pos.Finite() {
		return "", fmt.Errorf("%w: (%v, %v)", ErrNonFinitePosition, pos.X, pos.Y)
	}

	id, next := s.ids.Next(nodeType, s.now())
	// Loaded snapshots may already hold an id this allocator would produce.
	for s.has(id) {
		id, next = next.Next(nodeType, s.now())
	}
	s.ids = next

	s.index[id] = len(s.nodes)
	s.nodes = append(s.nodes, flow.Node{
		ID:       id,
		Type:     nodeType,
		Position: pos,
		Data:     data.Clone(),
	})

	s.logger.Debug("node added", "id", id, "type", nodeType, "x", pos.X, "y", pos.Y)
	return id, nil
}

// UpdateNodeData shallow-merges patch into the node's data: keys in patch
// win, others are retained. Reports false, changing nothing, when id is absent.
func (s *Store) UpdateNodeData(id flow.NodeID, patch flow.Data) bool {
	i, ok := s.index[id]
	if !ok {
		s.logger.Debug("update on missing node ignored", "id", id)
		return false
	}
	s.nodes[i].Data = s.nodes[i].Data.Merge(patch)
	return true
}

// MoveNode sets a node's position.
func (s *Store) MoveNode(id flow.NodeID, pos flow.Position) error {
	if !pos.Finite() {
		return fmt.Errorf("%w: (%v, %v)", ErrNonFinitePosition, pos.X, pos.Y)
	}
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.nodes[i].Position = pos
	return nil
}

// RemoveNode deletes the node and every edge whose source or target is id,
// then notifies listeners. Reports false when id is absent.
func (s *Store) RemoveNode(id flow.NodeID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}

	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	s.reindex()

	kept := s.edges[:0]
	removed := 0
	for _, e := range s.edges {
		if e.Touches(id) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept

	s.logger.Debug("node removed", "id", id, "edges_removed", removed)
	for _, fn := range s.listeners {
		fn(id)
	}
	return true
}

// AddEdge stores candidate if both endpoints exist and the policy accepts
// it. On rejection the returned error explains why and nothing changes.
func (s *Store) AddEdge(candidate flow.Edge) (flow.Edge, error) {
	if !s.has(candidate.Source) {
		return flow.Edge{}, fmt.Errorf("%w: source %s", ErrUnknownEndpoint, candidate.Source)
	}
	if !s.has(candidate.Target) {
		return flow.Edge{}, fmt.Errorf("%w: target %s", ErrUnknownEndpoint, candidate.Target)
	}
	if err := s.policy.Check(candidate, s.edges); err != nil {
		s.logger.Debug("connection rejected", "edge", candidate.ID(), "reason", err)
		return flow.Edge{}, err
	}
	s.edges = append(s.edges, candidate)
	s.logger.Debug("edge added", "edge", candidate.ID())
	return candidate, nil
}

// RemoveEdge deletes the edge with the given key. Reports false when absent.
func (s *Store) RemoveEdge(key flow.EdgeKey) bool {
	for i, e := range s.edges {
		if e.Key() == key {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveEdgeByID deletes the edge whose wire id matches. Wire ids are not
// unique in general (source "n1" with handle "a" and source "n1a" render
// alike), so an id shared by several edges removes nothing and returns
// ErrAmbiguousEdgeID.
func (s *Store) RemoveEdgeByID(id string) (bool, error) {
	matches := s.edgesWithID(id)
	switch len(matches) {
	case 0:
		return false, nil
	case 1:
		return s.RemoveEdge(matches[0]), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrAmbiguousEdgeID, id)
	}
}

func (s *Store) edgesWithID(id string) []flow.EdgeKey {
	var keys []flow.EdgeKey
	for _, e := range s.edges {
		if e.ID() == id {
			keys = append(keys, e.Key())
		}
	}
	return keys
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id flow.NodeID) (flow.Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return flow.Node{}, false
	}
	return s.nodes[i].Clone(), true
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	return len(s.nodes)
}

// EdgeCount returns the number of edges.
func (s *Store) EdgeCount() int {
	return len(s.edges)
}

// Snapshot returns a deep copy of both collections in insertion order.
func (s *Store) Snapshot() flow.Snapshot {
	return flow.Snapshot{Nodes: s.nodes, Edges: s.edges}.Clone()
}

// Load replaces the store's contents with snap. The snapshot is checked
// first: unique non-empty ids, finite positions, edges between known nodes,
// and one edge per source handle. On error the store is unchanged.
// The id allocator keeps its counter.
func (s *Store) Load(snap flow.Snapshot) error {
	index := make(map[flow.NodeID]int, len(snap.Nodes))
	for i, n := range snap.Nodes {
		if n.ID == "" {
			return fmt.Errorf("load: node %d: %w", i, ErrEmptyNodeID)
		}
		if n.Type == "" {
			return fmt.Errorf("load: node %s: %w", n.ID, ErrEmptyType)
		}
		if !n.Position.Finite() {
			return fmt.Errorf("load: node %s: %w", n.ID, ErrNonFinitePosition)
		}
		if _, dup := index[n.ID]; dup {
			return fmt.Errorf("load: %w: %s", ErrDuplicateNodeID, n.ID)
		}
		index[n.ID] = i
	}

	accepted := make([]flow.Edge, 0, len(snap.Edges))
	for _, e := range snap.Edges {
		_, okSrc := index[e.Source]
		_, okDst := index[e.Target]
		if !okSrc || !okDst {
			return fmt.Errorf("load: edge %s: %w", e.ID(), ErrUnknownEndpoint)
		}
		if err := s.policy.Check(e, accepted); err != nil {
			return fmt.Errorf("load: edge %s: %w", e.ID(), err)
		}
		accepted = append(accepted, e)
	}

	removed := make([]flow.NodeID, 0, len(s.nodes))
	for _, n := range s.nodes {
		if _, still := index[n.ID]; !still {
			removed = append(removed, n.ID)
		}
	}

	c := snap.Clone()
	s.nodes = c.Nodes
	s.edges = c.Edges
	s.index = index

	for _, id := range removed {
		for _, fn := range s.listeners {
			fn(id)
		}
	}
	s.logger.Debug("snapshot loaded", "nodes", len(s.nodes), "edges", len(s.edges))
	return nil
}

func (s *Store) has(id flow.NodeID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Store) reindex() {
	clear(s.index)
	for i, n := range s.nodes {
		s.index[n.ID] = i
	}
}
