package selection

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingClearer struct{ n int }

func (c *countingClearer) Clear() { c.n++ }

func newTestController() (*Controller, *countingClearer) {
	clr := &countingClearer{}
	return New(clr, slog.New(slog.NewTextHandler(io.Discard, nil))), clr
}

func TestController_StartsIdle(t *testing.T) {
	c, _ := newTestController()
	assert.Equal(t, StateIdle, c.State())
	_, ok := c.Active()
	assert.False(t, ok)
}

func TestController_ClickClickPane(t *testing.T) {
	c, _ := newTestController()

	c.Click("n1")
	id, ok := c.Active()
	assert.True(t, ok)
	assert.Equal(t, "n1", string(id))

	c.Click("n2")
	id, _ = c.Active()
	assert.Equal(t, "n2", string(id))

	c.ClickEmptyCanvas()
	assert.Equal(t, StateIdle, c.State())
}

func TestController_CloseEditor(t *testing.T) {
	c, _ := newTestController()
	c.Click("n1")
	c.CloseEditor()
	assert.Equal(t, StateIdle, c.State())
}

func TestController_NodeDeleted(t *testing.T) {
	c, clr := newTestController()
	c.Click("n1")
	before := clr.n

	c.NodeDeleted("n2")
	assert.Equal(t, StateEditing, c.State(), "unrelated deletion keeps editor open")
	assert.Equal(t, before, clr.n, "no transition, no clear")

	c.NodeDeleted("n1")
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, before+1, clr.n)
}

func TestController_NodeDeletedWhileIdle(t *testing.T) {
	c, clr := newTestController()
	c.NodeDeleted("n1")
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 0, clr.n)
}

func TestController_EveryTransitionClearsStatus(t *testing.T) {
	c, clr := newTestController()

	c.Click("n1")
	c.Click("n1")
	c.ClickEmptyCanvas()
	c.CloseEditor()

	assert.Equal(t, 4, clr.n)
}

func TestController_NilStatus(t *testing.T) {
	c := New(nil, nil)
	c.Click("n1")
	c.ClickEmptyCanvas()
	assert.Equal(t, StateIdle, c.State())
}
