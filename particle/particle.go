// Package particle defines the capability contract every particle type satisfies.
//
// The engine is generic over Particle; it never requires a base type. Base and Point
// are optional records that can be embedded to satisfy the contract with either a
// vector position or scalar X/Y fields.
package particle

import "github.com/pthm-cable/motes/vec"

// Particle is the set of fields the engine reads when assembling render data.
// Everything else on a particle (velocity, mass, flags) is opaque to the engine.
type Particle interface {
	// Index is the engine-assigned identifier, unique and never reused within a run.
	Index() int
	Position() (x, y float32)
	Radius() float32
	// Color is packed RGBA, red in the high byte.
	Color() uint32
}

// Constructor builds a particle from its assigned index and caller supplied arguments.
// It runs while the store holds its exclusive lock and must not call back into the engine.
type Constructor[T Particle] func(index int, args ...any) T

// Base is an embeddable particle record with a vector position.
type Base struct {
	Idx  int
	Pos  vec.V2D
	R    float32
	RGBA uint32
}

func (b *Base) Index() int                   { return b.Idx }
func (b *Base) Position() (float32, float32) { return b.Pos.X, b.Pos.Y }
func (b *Base) Radius() float32              { return b.R }
func (b *Base) Color() uint32                { return b.RGBA }

// Point is an embeddable particle record with scalar coordinates.
type Point struct {
	Idx  int
	X, Y float32
	R    float32
	RGBA uint32
}

func (p *Point) Index() int                   { return p.Idx }
func (p *Point) Position() (float32, float32) { return p.X, p.Y }
func (p *Point) Radius() float32              { return p.R }
func (p *Point) Color() uint32                { return p.RGBA }
