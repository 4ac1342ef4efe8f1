package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowbuilder/internal/flow"
)

func nodes(ids ...flow.NodeID) []flow.Node {
	out := make([]flow.Node, len(ids))
	for i, id := range ids {
		out[i] = flow.Node{ID: id, Type: "textNode"}
	}
	return out
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		snap  flow.Snapshot
		valid bool
	}{
		{"empty", flow.Snapshot{}, true},
		{"single node", flow.Snapshot{Nodes: nodes("n1")}, true},
		{"two unconnected", flow.Snapshot{Nodes: nodes("n1", "n2")}, false},
		{
			"chain",
			flow.Snapshot{Nodes: nodes("n1", "n2"), Edges: []flow.Edge{{Source: "n1", Target: "n2"}}},
			true,
		},
		{
			"fan out",
			flow.Snapshot{
				Nodes: nodes("n1", "n2", "n3"),
				Edges: []flow.Edge{
					{Source: "n1", SourceHandle: "a", Target: "n2"},
					{Source: "n1", SourceHandle: "b", Target: "n3"},
				},
			},
			true,
		},
		{
			"two roots merging",
			flow.Snapshot{
				Nodes: nodes("n1", "n2", "n3"),
				Edges: []flow.Edge{{Source: "n1", Target: "n3"}, {Source: "n2", Target: "n3"}},
			},
			false,
		},
		{
			// A cycle removes every root; zero roots is still at most one.
			"pure cycle",
			flow.Snapshot{
				Nodes: nodes("n1", "n2"),
				Edges: []flow.Edge{{Source: "n1", Target: "n2"}, {Source: "n2", Target: "n1"}},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.snap)
			assert.Equal(t, tt.valid, err == nil, "Validate() = %v", err)
			assert.Equal(t, tt.valid, Valid(tt.snap))
		})
	}
}

func TestValidate_ErrorCarriesRoots(t *testing.T) {
	snap := flow.Snapshot{
		Nodes: nodes("n1", "n2", "n3"),
		Edges: []flow.Edge{{Source: "n1", Target: "n3"}},
	}

	err := Validate(snap)
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, CodeMultipleEntryPoints, ve.Code)
	assert.Equal(t, []flow.NodeID{"n1", "n2"}, ve.Roots)
	assert.Equal(t, "MULTIPLE_ENTRY_POINTS: multiple entry points (roots=n1,n2)", err.Error())

	assert.True(t, IsMultipleEntryPoints(fmt.Errorf("save: %w", err)))
	assert.False(t, IsMultipleEntryPoints(ErrNodeNotFound))
}

func TestRoots_NeverNil(t *testing.T) {
	assert.NotNil(t, Roots(flow.Snapshot{}))
	assert.Empty(t, Roots(flow.Snapshot{}))
}
