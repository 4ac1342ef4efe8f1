package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/selection"
	"github.com/roach88/flowbuilder/internal/status"
)

// GoldenSnapshot is what a scenario's golden file records.
type GoldenSnapshot struct {
	Scenario  string          `json:"scenario"`
	Trace     []TraceEntry    `json:"trace"`
	Nodes     []flow.Node     `json:"nodes"`
	Edges     []flow.Edge     `json:"edges"`
	Selection selection.State `json:"selection"`
	Editing   flow.NodeID     `json:"editing,omitempty"`
	Status    *status.Message `json:"status,omitempty"`
}

// NewGoldenSnapshot builds the snapshot of a finished run.
func NewGoldenSnapshot(name string, result *Result) GoldenSnapshot {
	edges := make([]flow.Edge, len(result.Final.Edges))
	for i, e := range result.Final.Edges {
		edges[i] = e.Edge
	}

	snap := GoldenSnapshot{
		Scenario:  name,
		Trace:     result.Trace,
		Nodes:     result.Final.Nodes,
		Edges:     edges,
		Selection: selection.StateIdle,
		Status:    result.Final.Status,
	}
	if result.Final.Panel.NodeID != "" {
		snap.Selection = selection.StateEditing
		snap.Editing = result.Final.Panel.NodeID
	}
	return snap
}

// MarshalGolden renders a snapshot as indented JSON with a trailing newline.
func MarshalGolden(snap GoldenSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs s and compares the outcome against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), s, opts...)
	if err != nil {
		return nil, err
	}

	data, err := MarshalGolden(NewGoldenSnapshot(s.Name, result))
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)
	return result, nil
}
