// Package camera provides a 2D pan and zoom view that produces the engine's
// world-to-screen transform.
package camera

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/motes/vec"
)

// Camera controls the viewport into the simulation world.
type Camera struct {
	// Position is the camera center in world coordinates
	X, Y float32

	// Zoom level (1.0 = 1:1, 2.0 = 2x magnification)
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Zoom constraints
	MinZoom, MaxZoom float32
}

// New creates a camera whose view matches the viewport pixel for pixel:
// world (0,0) sits at the top-left corner of the screen.
func New(viewportW, viewportH float32) *Camera {
	return &Camera{
		X:         viewportW / 2,
		Y:         viewportH / 2,
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinZoom:   0.1,
		MaxZoom:   10.0,
	}
}

// Matrix returns the world-to-screen transform for the current view.
func (c *Camera) Matrix() mgl32.Mat4 {
	return mgl32.Translate3D(c.ViewportW/2, c.ViewportH/2, 0).
		Mul4(mgl32.Scale3D(c.Zoom, c.Zoom, 1)).
		Mul4(mgl32.Translate3D(-c.X, -c.Y, 0))
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(w vec.V2D) vec.V2D {
	return vec.New(
		c.ViewportW/2+(w.X-c.X)*c.Zoom,
		c.ViewportH/2+(w.Y-c.Y)*c.Zoom,
	)
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(s vec.V2D) vec.V2D {
	return vec.New(
		c.X+(s.X-c.ViewportW/2)/c.Zoom,
		c.Y+(s.Y-c.ViewportH/2)/c.Zoom,
	)
}

// IsVisible returns true if a circle at w with the given radius could be on screen.
func (c *Camera) IsVisible(w vec.V2D, radius float32) bool {
	halfW := c.ViewportW/(2*c.Zoom) + radius
	halfH := c.ViewportH/(2*c.Zoom) + radius
	return absf(w.X-c.X) <= halfW && absf(w.Y-c.Y) <= halfH
}

// Resize updates viewport dimensions, keeping the same world point centered.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// Pan moves the camera by the given delta in screen pixels.
// Dragging right moves the view left, so content follows the cursor.
func (c *Camera) Pan(dx, dy float32) {
	c.X -= dx / c.Zoom
	c.Y -= dy / c.Zoom
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = mgl32.Clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// ZoomAt zooms by factor while keeping the world point under screen position s fixed.
func (c *Camera) ZoomAt(s vec.V2D, factor float32) {
	before := c.ScreenToWorld(s)
	c.ZoomBy(factor)
	after := c.ScreenToWorld(s)
	c.X += before.X - after.X
	c.Y += before.Y - after.Y
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.X = c.ViewportW / 2
	c.Y = c.ViewportH / 2
	c.Zoom = 1.0
}

// VisibleWorldBounds returns the world-coordinate bounds of the visible area.
func (c *Camera) VisibleWorldBounds() (minX, minY, maxX, maxY float32) {
	halfW := c.ViewportW / (2 * c.Zoom)
	halfH := c.ViewportH / (2 * c.Zoom)

	minX = c.X - halfW
	maxX = c.X + halfW
	minY = c.Y - halfH
	maxY = c.Y + halfH
	return
}

func absf(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
