package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
)

// readFlowFile parses a flow document from JSON (.json) or YAML (.yaml,
// .yml). Unknown fields are rejected in both.
func readFlowFile(path string) (flow.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return flow.Document{}, err
	}
	return parseFlow(data, filepath.Ext(path))
}

func parseFlow(data []byte, ext string) (flow.Document, error) {
	var doc flow.Document
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return flow.Document{}, fmt.Errorf("parse JSON: %w", err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return flow.Document{}, fmt.Errorf("parse YAML: %w", err)
		}
	default:
		return flow.Document{}, fmt.Errorf("unsupported flow file extension %q (want .json, .yaml or .yml)", ext)
	}

	if doc.Snapshot.Nodes == nil {
		doc.Snapshot.Nodes = []flow.Node{}
	}
	if doc.Snapshot.Edges == nil {
		doc.Snapshot.Edges = []flow.Edge{}
	}
	return doc, nil
}

// checkStructure loads snap into a scratch graph store, which rejects
// duplicate or empty ids, non-finite positions, dangling edges and a second
// edge on a source handle. A flow that fails here cannot be edited later.
func checkStructure(snap flow.Snapshot, allowSelfLoops bool) error {
	policy := graph.DefaultPolicy()
	policy.AllowSelfLoops = allowSelfLoops
	return graph.New(graph.WithPolicy(policy)).Load(snap)
}
