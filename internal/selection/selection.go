// Package selection tracks which node, if any, the settings editor is bound to.
//
// The controller has two states, Idle and Editing(nodeID). It stores only
// the id; node data stays in the graph store. Every transition clears the
// transient save-status message so feedback from an earlier save never
// lingers across a selection change.
package selection

import (
	"log/slog"

	"github.com/roach88/flowbuilder/internal/flow"
)

// State names the controller state.
type State string

const (
	StateIdle    State = "idle"
	StateEditing State = "editing"
)

// StatusClearer is the part of the status notifier the controller needs.
type StatusClearer interface {
	Clear()
}

// Controller is the Idle / Editing(nodeID) state machine.
// Not safe for concurrent use.
type Controller struct {
	active flow.NodeID // empty when Idle
	status StatusClearer
	logger *slog.Logger
}

// New creates an Idle controller. status may be nil.
func New(status StatusClearer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{status: status, logger: logger}
}

// Click opens the editor on id, from either state.
func (c *Controller) Click(id flow.NodeID) {
	c.transition(id, "click")
}

// ClickEmptyCanvas closes the editor.
func (c *Controller) ClickEmptyCanvas() {
	c.transition("", "pane_click")
}

// CloseEditor closes the editor.
func (c *Controller) CloseEditor() {
	c.transition("", "close")
}

// NodeDeleted returns to Idle when id is the node being edited.
// Deleting any other node leaves the state alone.
func (c *Controller) NodeDeleted(id flow.NodeID) {
	if c.active == "" || c.active != id {
		return
	}
	c.transition("", "node_deleted")
}

// State returns the current state.
func (c *Controller) State() State {
	if c.active == "" {
		return StateIdle
	}
	return StateEditing
}

// Active returns the node being edited.
func (c *Controller) Active() (flow.NodeID, bool) {
	return c.active, c.active != ""
}

func (c *Controller) transition(next flow.NodeID, cause string) {
	prev := c.active
	c.active = next
	if c.status != nil {
		c.status.Clear()
	}
	c.logger.Debug("selection changed", "from", prev, "to", next, "cause", cause)
}
