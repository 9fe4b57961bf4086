// Package shapes provides line primitives drawn alongside particles.
// Each shape owns its vertex and colour buffers and rebuilds them whenever it is mutated.
package shapes

import (
	"sync"

	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/surface"
	"github.com/pthm-cable/motes/vec"
)

// DefaultSteps is the number of line segments each Bezier segment is flattened into.
const DefaultSteps = 16

// Shape is anything that can hand the surface a line strip.
type Shape interface {
	Strip() surface.Shape
}

// PolyLine is an open line strip through its points.
type PolyLine struct {
	mu        sync.RWMutex
	points    []vec.V2D
	color     uint32
	thickness float32

	verts  []float32
	colors []float32
}

// NewPolyLine creates a poly-line through points.
func NewPolyLine(points []vec.V2D, color uint32, thickness float32) *PolyLine {
	l := &PolyLine{color: color, thickness: thickness}
	l.points = append(l.points, points...)
	l.rebuild()
	return l
}

// SetPoints replaces the points.
func (l *PolyLine) SetPoints(points []vec.V2D) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points = append(l.points[:0], points...)
	l.rebuild()
}

// AddPoint appends a point to the end of the strip.
func (l *PolyLine) AddPoint(p vec.V2D) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points = append(l.points, p)
	l.rebuild()
}

func (l *PolyLine) SetColor(color uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.color = color
	l.rebuild()
}

func (l *PolyLine) SetThickness(thickness float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.thickness = thickness
}

// Points returns a copy of the points.
func (l *PolyLine) Points() []vec.V2D {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]vec.V2D(nil), l.points...)
}

// Strip returns a copy of the derived buffers.
func (l *PolyLine) Strip() surface.Shape {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return strip(l.verts, l.colors, l.thickness)
}

func (l *PolyLine) rebuild() {
	l.verts, l.colors = fill(l.verts[:0], l.colors[:0], l.points, l.color)
}

// Bezier is a chain of cubic Bezier segments. The first control point starts the curve;
// each following group of three (two handles and an end point) adds a segment.
// Trailing control points that do not complete a segment are ignored.
type Bezier struct {
	mu        sync.RWMutex
	controls  []vec.V2D
	color     uint32
	thickness float32
	steps     int

	verts  []float32
	colors []float32
}

// NewBezier creates a curve flattened at DefaultSteps per segment.
func NewBezier(controls []vec.V2D, color uint32, thickness float32) *Bezier {
	b := &Bezier{color: color, thickness: thickness, steps: DefaultSteps}
	b.controls = append(b.controls, controls...)
	b.rebuild()
	return b
}

func (b *Bezier) SetControlPoints(controls []vec.V2D) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.controls = append(b.controls[:0], controls...)
	b.rebuild()
}

func (b *Bezier) SetColor(color uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.color = color
	b.rebuild()
}

func (b *Bezier) SetThickness(thickness float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.thickness = thickness
}

// SetSteps changes the flattening resolution. Values below 1 are clamped to 1.
func (b *Bezier) SetSteps(steps int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.steps = max(steps, 1)
	b.rebuild()
}

// Segments returns the number of complete cubic segments.
func (b *Bezier) Segments() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return segments(len(b.controls))
}

func (b *Bezier) Strip() surface.Shape {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strip(b.verts, b.colors, b.thickness)
}

func (b *Bezier) rebuild() {
	n := segments(len(b.controls))
	if n == 0 {
		b.verts, b.colors = b.verts[:0], b.colors[:0]
		return
	}

	pts := make([]vec.V2D, 0, n*b.steps+1)
	pts = append(pts, b.controls[0])
	for s := 0; s < n; s++ {
		p0, p1, p2, p3 := b.controls[3*s], b.controls[3*s+1], b.controls[3*s+2], b.controls[3*s+3]
		for i := 1; i <= b.steps; i++ {
			pts = append(pts, Cubic(p0, p1, p2, p3, float32(i)/float32(b.steps)))
		}
	}
	b.verts, b.colors = fill(b.verts[:0], b.colors[:0], pts, b.color)
}

// Cubic evaluates a cubic Bezier at t in [0,1].
func Cubic(p0, p1, p2, p3 vec.V2D, t float32) vec.V2D {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return vec.V2D{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func segments(controls int) int {
	if controls < 4 {
		return 0
	}
	return (controls - 1) / 3
}

func fill(verts, colors []float32, pts []vec.V2D, color uint32) ([]float32, []float32) {
	var rgba [4]float32
	particle.Floats(color, rgba[:])
	for _, p := range pts {
		verts = append(verts, p.X, p.Y)
		colors = append(colors, rgba[:]...)
	}
	return verts, colors
}

func strip(verts, colors []float32, thickness float32) surface.Shape {
	return surface.Shape{
		Vertices:  append([]float32(nil), verts...),
		Colors:    append([]float32(nil), colors...),
		Thickness: thickness,
	}
}

// Collection is an ordered, add-only set of shapes.
type Collection struct {
	mu     sync.RWMutex
	shapes []Shape
}

// Add appends a shape. Shapes are drawn in insertion order.
func (c *Collection) Add(s Shape) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shapes = append(c.shapes, s)
}

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shapes)
}

// Shapes returns the shapes in insertion order.
func (c *Collection) Shapes() []Shape {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Shape(nil), c.shapes...)
}

// Strips appends a strip per shape with at least two vertices to dst.
func (c *Collection) Strips(dst []surface.Shape) []surface.Shape {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.shapes {
		st := s.Strip()
		if len(st.Vertices) < 4 {
			continue
		}
		dst = append(dst, st)
	}
	return dst
}
