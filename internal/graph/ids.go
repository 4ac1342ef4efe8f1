package graph

import (
	"fmt"
	"time"

	"github.com/roach88/flowbuilder/internal/flow"
)

// IDSeq is a pure node-id allocator. It carries its counter explicitly;
// Next returns the id together with the successor state.
//
//	seq := NewIDSeq(0)
//	id1, seq := seq.Next("textNode", now) // textNode-<ms>-1
//	id2, seq := seq.Next("textNode", now) // textNode-<ms>-2
//
// The counter makes ids distinct across drops landing in the same
// millisecond; the timestamp keeps them distinct across process restarts.
type IDSeq struct {
	n uint64
}

// NewIDSeq creates an allocator whose next id uses counter start+1.
func NewIDSeq(start uint64) IDSeq {
	return IDSeq{n: start}
}

// Next returns the id for a node of the given type and the advanced allocator.
func (s IDSeq) Next(nodeType string, now time.Time) (flow.NodeID, IDSeq) {
	n := s.n + 1
	return flow.NodeID(fmt.Sprintf("%s-%d-%d", nodeType, now.UnixMilli(), n)), IDSeq{n: n}
}

// Current returns the last counter value handed out.
func (s IDSeq) Current() uint64 {
	return s.n
}
