package harness

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/flowbuilder/internal/flow"
	"github.com/roach88/flowbuilder/internal/graph"
	"github.com/roach88/flowbuilder/internal/selection"
)

// AssertionError is a failed assertion with enough context to debug it.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s", e.Actual)
	return buf.String()
}

// evaluate runs every assertion and returns one message per failure.
func (r *runner) evaluate(ctx context.Context, assertions []Assertion) []string {
	snap := r.ed.Snapshot()

	var msgs []string
	for i, a := range assertions {
		if err := r.check(ctx, snap, a); err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func (r *runner) check(ctx context.Context, snap flow.Snapshot, a Assertion) error {
	switch a.Type {
	case AssertNodeCount:
		return assertCount(a.Type, *a.Count, len(snap.Nodes))
	case AssertEdgeCount:
		return assertCount(a.Type, *a.Count, len(snap.Edges))
	case AssertRevisionCount:
		revs, err := r.ed.History(ctx)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		return assertCount(a.Type, *a.Count, len(revs))
	case AssertSelection:
		return r.assertSelection(a)
	case AssertValid:
		return assertValid(snap, *a.Valid)
	case AssertStatus:
		return r.assertStatus(a)
	case AssertEdgeTarget:
		return r.assertEdgeTarget(snap, a)
	case AssertNodeData:
		return r.assertNodeData(snap, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertCount(kind string, want, got int) error {
	if want == got {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d", want),
		Actual:   fmt.Sprintf("%d", got),
	}
}

func (r *runner) assertSelection(a Assertion) error {
	state, active := r.ed.Selection()

	var want flow.NodeID
	if a.Node != "" {
		id, err := r.resolveID(flow.NodeID(a.Node))
		if err != nil {
			return err
		}
		want = id
	}

	if state != a.State || (a.State == selection.StateEditing && want != "" && active != want) {
		return &AssertionError{
			Type:     AssertSelection,
			Expected: describeSelection(a.State, want),
			Actual:   describeSelection(state, active),
		}
	}
	return nil
}

func describeSelection(state selection.State, id flow.NodeID) string {
	if state == selection.StateEditing && id != "" {
		return fmt.Sprintf("editing(%s)", id)
	}
	return string(state)
}

func assertValid(snap flow.Snapshot, want bool) error {
	err := graph.Validate(snap)
	if (err == nil) == want {
		return nil
	}
	actual := "valid"
	if err != nil {
		actual = err.Error()
	}
	return &AssertionError{
		Type:     AssertValid,
		Expected: fmt.Sprintf("valid=%t", want),
		Actual:   actual,
	}
}

func (r *runner) assertStatus(a Assertion) error {
	msg, ok := r.ed.Status()

	actual := StatusNone
	if ok {
		actual = fmt.Sprintf("%s %q", msg.Kind, msg.Text)
	}

	if a.Kind == StatusNone {
		if ok {
			return &AssertionError{Type: AssertStatus, Expected: StatusNone, Actual: actual}
		}
		return nil
	}

	if !ok || string(msg.Kind) != a.Kind || (a.Text != "" && msg.Text != a.Text) {
		expected := a.Kind
		if a.Text != "" {
			expected = fmt.Sprintf("%s %q", a.Kind, a.Text)
		}
		return &AssertionError{Type: AssertStatus, Expected: expected, Actual: actual}
	}
	return nil
}

func (r *runner) assertEdgeTarget(snap flow.Snapshot, a Assertion) error {
	source, err := r.resolveID(flow.NodeID(a.Source))
	if err != nil {
		return err
	}
	target, err := r.resolveID(flow.NodeID(a.Target))
	if err != nil {
		return err
	}

	handle := flow.HandleKey{Source: source, SourceHandle: a.SourceHandle}
	for _, e := range snap.Edges {
		if e.Key().Handle() != handle {
			continue
		}
		if e.Target == target {
			return nil
		}
		return &AssertionError{
			Type:     AssertEdgeTarget,
			Expected: fmt.Sprintf("%s/%q -> %s", source, a.SourceHandle, target),
			Actual:   fmt.Sprintf("%s/%q -> %s", source, a.SourceHandle, e.Target),
		}
	}
	return &AssertionError{
		Type:     AssertEdgeTarget,
		Expected: fmt.Sprintf("%s/%q -> %s", source, a.SourceHandle, target),
		Actual:   "no edge leaves that handle",
	}
}

func (r *runner) assertNodeData(snap flow.Snapshot, a Assertion) error {
	id, err := r.resolveID(flow.NodeID(a.Node))
	if err != nil {
		return err
	}
	n, ok := snap.Node(id)
	if !ok {
		return &AssertionError{Type: AssertNodeData, Expected: fmt.Sprintf("node %s", id), Actual: "not found"}
	}

	for k, want := range a.Data {
		got, ok := n.Data[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return &AssertionError{
				Type:     AssertNodeData,
				Expected: fmt.Sprintf("%s.%s = %v", id, k, want),
				Actual:   fmt.Sprintf("%s.%s = %v", id, k, got),
			}
		}
	}
	return nil
}
