package demos

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/motes/config"
	"github.com/pthm-cable/motes/engine"
	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/store"
	"github.com/pthm-cable/motes/vec"
)

// escapeFactor times MaxOrbit is the distance from the star past which bodies are dropped.
const escapeFactor = 4

// Body is a gravitating particle. It satisfies barneshut.Particle2.
type Body struct {
	particle.Base
	Vel  vec.V2D
	Acc  vec.V2D // written by Simulate, consumed by Update
	M    float64
	Star bool
}

// NewBody builds a body. Arguments: position vec.V2D, velocity vec.V2D, mass float64.
// Radius grows with the cube root of mass.
func NewBody(index int, args ...any) *Body {
	b := &Body{Base: particle.Base{Idx: index, RGBA: Teal}, M: 1}
	if len(args) > 0 {
		b.Pos = args[0].(vec.V2D)
	}
	if len(args) > 1 {
		b.Vel = args[1].(vec.V2D)
	}
	if len(args) > 2 {
		b.M = args[2].(float64)
	}
	b.R = float32(math.Max(1, math.Cbrt(b.M)))
	return b
}

func (b *Body) Coord2() r2.Vec { return b.Pos.R2() }
func (b *Body) Mass() float64  { return b.M }

// Solar orbits bodies around a fixed star. Simulate evaluates gravity for its slice
// against a Barnes-Hut tree of the whole snapshot; Update integrates, drops escaped
// bodies and rebuilds the tree for the next generation.
type Solar struct {
	cfg   config.SolarConfig
	dt    float64
	e     *engine.Engine[*Body]
	plane barneshut.Plane
	force barneshut.Force2
	star  *Body
	naive bool // tree could not be built, sum pairwise
}

// NewSolar creates the demo. dt is the simulated time per generation in seconds.
func NewSolar(cfg config.SolarConfig, dt float32) *Solar {
	s := &Solar{cfg: cfg, dt: float64(dt)}
	s.force = softened(cfg.Softening)
	return s
}

// RunSolar runs the solar system demo until halted.
func RunSolar(ctx context.Context, cfg *config.Config, opts engine.Options, limits Limits) error {
	app := NewSolar(cfg.Solar, cfg.Derived.SimDT32)
	e := engine.New[*Body](app, NewBody, withEngineConfig(opts, cfg))
	return run(ctx, e, cfg, title(cfg, "solar system"), limits)
}

// Init places the star at the window centre and the bodies on circular orbits around it.
func (s *Solar) Init(e *engine.Engine[*Body]) error {
	s.e = e
	e.SetBackground(Background)
	rng := e.Rand()
	center := vec.New(float32(e.Width())/2, float32(e.Height())/2)

	star, err := e.Add(center, vec.V2D{}, s.cfg.StarMass)
	if err != nil {
		return err
	}
	star.Star = true
	star.RGBA = Sun
	s.star = star

	for i := 0; i < s.cfg.Bodies; i++ {
		r := s.cfg.MinOrbit + rng.Float32()*(s.cfg.MaxOrbit-s.cfg.MinOrbit)
		offset := vec.RandomUnit(rng, r)
		speed := float32(math.Sqrt(s.cfg.G * s.cfg.StarMass / float64(r)))
		// Perpendicular to the radius, counter-clockwise on screen
		vel := vec.New(offset.Y, -offset.X).SetLen(speed)
		if _, err := e.Add(center.Add(offset), vel, s.cfg.BodyMass); err != nil {
			return err
		}
	}

	return e.Exclusive(func(tx *store.Tx[*Body]) {
		s.rebuild(tx.Particles())
	})
}

// Simulate stores the gravitational acceleration on each body of the slice.
func (s *Solar) Simulate(_, slice []*Body, _ time.Duration) {
	for _, b := range slice {
		if b.Star {
			continue
		}
		theta := s.cfg.Theta
		if s.naive {
			theta = 0
		}
		f := s.plane.ForceOn(b, theta, s.force)
		b.Acc = vec.FromR2(r2.Scale(s.cfg.G/b.M, f))
	}
}

// Update integrates with semi-implicit Euler and rebuilds the tree.
func (s *Solar) Update(tx *store.Tx[*Body], _ time.Duration) {
	dt := float32(s.dt)
	for _, b := range tx.Particles() {
		if b.Star {
			continue
		}
		b.Vel.AddAssign(b.Acc.Scale(dt))
		b.Pos.AddAssign(b.Vel.Scale(dt))
	}

	if s.star != nil {
		limit := s.cfg.MaxOrbit * escapeFactor
		center := s.star.Pos
		tx.Filter(func(b *Body) bool {
			return b.Star || b.Pos.SqrDist(center) <= limit*limit
		})
	}
	s.rebuild(tx.Particles())
}

// Plane exposes the Barnes-Hut tree built for the current snapshot.
func (s *Solar) Plane() *barneshut.Plane {
	return &s.plane
}

func (s *Solar) rebuild(live []*Body) {
	ps := s.plane.Particles[:0]
	for _, b := range live {
		ps = append(ps, b)
	}
	s.plane.Particles = ps
	err := s.plane.Reset()
	if err != nil && !s.naive {
		s.e.Logger().Warn("barnes-hut reset failed", "error", err, "bodies", len(ps))
	}
	s.naive = err != nil
}

// softened is Newtonian attraction with a softening length that keeps close encounters finite.
func softened(eps float64) barneshut.Force2 {
	eps2 := eps * eps
	return func(_, _ barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
		d2 := r2.Norm2(v) + eps2
		if d2 == 0 {
			return r2.Vec{}
		}
		return r2.Scale(m1*m2/(d2*math.Sqrt(d2)), v)
	}
}
