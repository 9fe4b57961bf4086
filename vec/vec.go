// Package vec provides the 2D vector type used by particles and demos.
package vec

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// V2D is a 2D float32 vector.
// Value methods return new vectors; *Assign methods mutate the receiver.
type V2D struct {
	X, Y float32
}

// New creates a vector from x and y.
func New(x, y float32) V2D {
	return V2D{X: x, Y: y}
}

// Random creates a vector with X drawn uniformly from [xMin, xMax) and Y from [yMin, yMax).
func Random(r *rand.Rand, xMin, xMax, yMin, yMax float32) V2D {
	return V2D{
		X: xMin + r.Float32()*(xMax-xMin),
		Y: yMin + r.Float32()*(yMax-yMin),
	}
}

// RandomUnit creates a vector of the given length pointing in a random direction.
func RandomUnit(r *rand.Rand, scale float32) V2D {
	a := r.Float64() * 2 * math.Pi
	return V2D{X: float32(math.Cos(a)) * scale, Y: float32(math.Sin(a)) * scale}
}

// FromR2 converts a gonum vector.
func FromR2(v r2.Vec) V2D {
	return V2D{X: float32(v.X), Y: float32(v.Y)}
}

// R2 converts to a gonum vector.
func (v V2D) R2() r2.Vec {
	return r2.Vec{X: float64(v.X), Y: float64(v.Y)}
}

// Set assigns both components.
func (v *V2D) Set(x, y float32) {
	v.X = x
	v.Y = y
}

// Zero resets the vector to the origin.
func (v *V2D) Zero() {
	v.X = 0
	v.Y = 0
}

// IsZero reports whether both components are zero.
func (v V2D) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

func (v V2D) Add(w V2D) V2D           { return V2D{X: v.X + w.X, Y: v.Y + w.Y} }
func (v V2D) AddScalar(s float32) V2D { return V2D{X: v.X + s, Y: v.Y + s} }
func (v V2D) Sub(w V2D) V2D           { return V2D{X: v.X - w.X, Y: v.Y - w.Y} }
func (v V2D) SubScalar(s float32) V2D { return V2D{X: v.X - s, Y: v.Y - s} }

// Mul multiplies component-wise.
func (v V2D) Mul(w V2D) V2D { return V2D{X: v.X * w.X, Y: v.Y * w.Y} }

// Scale multiplies both components by s.
func (v V2D) Scale(s float32) V2D { return V2D{X: v.X * s, Y: v.Y * s} }

// Div divides component-wise. A zero divisor component yields 0 for that component.
func (v V2D) Div(w V2D) V2D {
	return V2D{X: safeDiv(v.X, w.X), Y: safeDiv(v.Y, w.Y)}
}

// DivScalar divides both components by s. Division by zero yields the zero vector.
func (v V2D) DivScalar(s float32) V2D {
	if s == 0 {
		return V2D{}
	}
	return V2D{X: v.X / s, Y: v.Y / s}
}

// AddAssign adds w to v in place.
func (v *V2D) AddAssign(w V2D) {
	v.X += w.X
	v.Y += w.Y
}

func (v *V2D) SubAssign(w V2D) {
	v.X -= w.X
	v.Y -= w.Y
}

func (v *V2D) MulAssign(w V2D) {
	v.X *= w.X
	v.Y *= w.Y
}

func (v *V2D) ScaleAssign(s float32) {
	v.X *= s
	v.Y *= s
}

func (v *V2D) DivAssign(w V2D) { *v = v.Div(w) }

func (v *V2D) DivScalarAssign(s float32) { *v = v.DivScalar(s) }

// Dot returns the dot product.
func (v V2D) Dot(w V2D) float32 {
	return v.X*w.X + v.Y*w.Y
}

// Len returns the exact Euclidean length.
func (v V2D) Len() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// SqrLen returns the squared length.
func (v V2D) SqrLen() float32 {
	return v.X*v.X + v.Y*v.Y
}

// SqrDist returns the squared distance to w. Use it for comparisons to avoid a square root.
func (v V2D) SqrDist(w V2D) float32 {
	dx := v.X - w.X
	dy := v.Y - w.Y
	return dx*dx + dy*dy
}

// InvLen returns an approximation of 1/Len using FastInvSqrt. Zero for the zero vector.
func (v V2D) InvLen() float32 {
	sq := v.SqrLen()
	if sq == 0 {
		return 0
	}
	return FastInvSqrt(sq)
}

// Norm returns v scaled to (approximately) unit length.
// The result is not IEEE-exact; see FastInvSqrt for the error bound.
func (v V2D) Norm() V2D {
	return v.Scale(v.InvLen())
}

// SetLen returns v scaled to (approximately) the given length.
func (v V2D) SetLen(l float32) V2D {
	return v.Scale(v.InvLen() * l)
}

// Limit clamps the length of v to at most max.
func (v V2D) Limit(max float32) V2D {
	if v.SqrLen() <= max*max {
		return v
	}
	return v.SetLen(max)
}

// FastInvSqrt approximates 1/sqrt(x) for x > 0 with a bit-level initial guess and one
// refined Newton step. Maximum relative error is below 0.1%, so results must be compared
// with a tolerance. Returns 0 for x <= 0.
func FastInvSqrt(x float32) float32 {
	if x <= 0 {
		return 0
	}
	y := math.Float32frombits(0x5F1FFFF9 - (math.Float32bits(x) >> 1))
	return 0.703952253 * y * (2.38924456 - x*y*y)
}

func safeDiv(a, b float32) float32 {
	if b == 0 {
		return 0
	}
	return a / b
}
