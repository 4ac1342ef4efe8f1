package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/flowbuilder/internal/flow"
)

var (
	// ErrNodeNotFound is returned when an operation names a missing node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateSourceHandle rejects a second edge from the same
	// (source, sourceHandle).
	ErrDuplicateSourceHandle = errors.New("source handle already connected")

	// ErrUnknownEndpoint rejects an edge whose source or target does not exist.
	ErrUnknownEndpoint = errors.New("edge endpoint does not exist")

	// ErrSelfLoop rejects source == target when the policy forbids it.
	ErrSelfLoop = errors.New("self-loop not allowed")

	// ErrNonFinitePosition rejects NaN or infinite coordinates.
	ErrNonFinitePosition = errors.New("position must be finite")

	// ErrEmptyType rejects a node without a type tag.
	ErrEmptyType = errors.New("node type is empty")

	// ErrEmptyNodeID rejects a loaded node without an id.
	ErrEmptyNodeID = errors.New("node id is empty")

	// ErrAmbiguousEdgeID rejects a wire id shared by more than one edge.
	ErrAmbiguousEdgeID = errors.New("edge id matches more than one edge")

	// ErrDuplicateNodeID rejects a loaded snapshot with repeated ids.
	ErrDuplicateNodeID = errors.New("duplicate node id")

	// ErrUnknownChange rejects a change delta of an unrecognised type.
	ErrUnknownChange = errors.New("unknown change type")
)

// ValidationCode categorizes structural validation failures.
type ValidationCode string

const (
	// CodeMultipleEntryPoints means more than one node has no incoming edge.
	CodeMultipleEntryPoints ValidationCode = "MULTIPLE_ENTRY_POINTS"
)

// ValidationError reports why a snapshot failed validation.
type ValidationError struct {
	Code    ValidationCode
	Message string

	// Roots lists every node without incoming edges, in snapshot order.
	Roots []flow.NodeID
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Roots) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	ids := make([]string, len(e.Roots))
	for i, r := range e.Roots {
		ids[i] = string(r)
	}
	return fmt.Sprintf("%s: %s (roots=%s)", e.Code, e.Message, strings.Join(ids, ","))
}

// IsMultipleEntryPoints reports whether err is a multiple-entry-point failure.
// Uses errors.As to handle wrapped errors.
func IsMultipleEntryPoints(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == CodeMultipleEntryPoints
	}
	return false
}
