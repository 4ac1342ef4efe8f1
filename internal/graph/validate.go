package graph

import "github.com/roach88/flowbuilder/internal/flow"

// Validate checks the single-entry-point invariant. A snapshot with at most
// one node is always valid; otherwise at most one node may be absent from
// the set of edge targets. Returns nil or a *ValidationError.
func Validate(s flow.Snapshot) error {
	if len(s.Nodes) <= 1 {
		return nil
	}
	roots := Roots(s)
	if len(roots) <= 1 {
		return nil
	}
	return &ValidationError{
		Code:    CodeMultipleEntryPoints,
		Message: "multiple entry points",
		Roots:   roots,
	}
}

// Valid is Validate as a predicate.
func Valid(s flow.Snapshot) bool {
	return Validate(s) == nil
}

// Roots returns the ids of nodes with zero incoming edges, in node order.
func Roots(s flow.Snapshot) []flow.NodeID {
	targeted := make(map[flow.NodeID]struct{}, len(s.Edges))
	for _, e := range s.Edges {
		targeted[e.Target] = struct{}{}
	}
	roots := []flow.NodeID{}
	for _, n := range s.Nodes {
		if _, ok := targeted[n.ID]; !ok {
			roots = append(roots, n.ID)
		}
	}
	return roots
}
