package graph

import (
	"fmt"

	"github.com/roach88/flowbuilder/internal/flow"
)

// Policy decides whether a proposed edge may be added.
//
// A step routes to exactly one next step: a candidate is rejected when an
// existing edge already leaves from the same (source, sourceHandle),
// irrespective of target. Incoming edges are unconstrained.
type Policy struct {
	// AllowSelfLoops permits edges with source == target.
	AllowSelfLoops bool
}

// DefaultPolicy permits self-loops.
func DefaultPolicy() Policy {
	return Policy{AllowSelfLoops: true}
}

// Accept reports whether candidate may join existing.
func (p Policy) Accept(candidate flow.Edge, existing []flow.Edge) bool {
	return p.Check(candidate, existing) == nil
}

// Check is Accept with the rejection reason.
func (p Policy) Check(candidate flow.Edge, existing []flow.Edge) error {
	if !p.AllowSelfLoops && candidate.Source == candidate.Target {
		return fmt.Errorf("%w: %s", ErrSelfLoop, candidate.Source)
	}
	handle := candidate.Key().Handle()
	for _, e := range existing {
		if e.Key().Handle() == handle {
			return fmt.Errorf("%w: %s/%q already routes to %s",
				ErrDuplicateSourceHandle, handle.Source, handle.SourceHandle, e.Target)
		}
	}
	return nil
}
