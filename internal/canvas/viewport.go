// Package canvas converts between screen and flow coordinates.
package canvas

import (
	"errors"
	"math"

	"github.com/roach88/flowbuilder/internal/flow"
)

var (
	// ErrInvalidZoom rejects a zoom that is not a positive finite number.
	ErrInvalidZoom = errors.New("zoom must be positive and finite")

	// ErrNonFiniteOffset rejects a NaN or infinite origin or pan.
	ErrNonFiniteOffset = errors.New("viewport offsets must be finite")
)

// Viewport is the render surface's pan and zoom, plus the screen offset of
// the canvas element itself.
type Viewport struct {
	Origin flow.Position `json:"origin" yaml:"origin"` // canvas element's top-left on screen
	Pan    flow.Position `json:"pan" yaml:"pan"`
	Zoom   float64       `json:"zoom" yaml:"zoom"`
}

// Identity is the viewport with no offset, no pan and zoom 1.
func Identity() Viewport {
	return Viewport{Zoom: 1}
}

// Validate reports whether the viewport can be used for conversion.
func (v Viewport) Validate() error {
	if v.Zoom <= 0 || math.IsNaN(v.Zoom) || math.IsInf(v.Zoom, 0) {
		return ErrInvalidZoom
	}
	if !v.Origin.Finite() || !v.Pan.Finite() {
		return ErrNonFiniteOffset
	}
	return nil
}

// ScreenToCanvas maps a screen point into flow coordinates:
// (p - origin - pan) / zoom.
func (v Viewport) ScreenToCanvas(p flow.Position) flow.Position {
	return flow.Position{
		X: (p.X - v.Origin.X - v.Pan.X) / v.Zoom,
		Y: (p.Y - v.Origin.Y - v.Pan.Y) / v.Zoom,
	}
}

// CanvasToScreen is the inverse of ScreenToCanvas.
func (v Viewport) CanvasToScreen(p flow.Position) flow.Position {
	return flow.Position{
		X: p.X*v.Zoom + v.Pan.X + v.Origin.X,
		Y: p.Y*v.Zoom + v.Pan.Y + v.Origin.Y,
	}
}
