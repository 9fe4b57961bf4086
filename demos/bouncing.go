package demos

import (
	"context"
	"time"

	perlin "github.com/aquilax/go-perlin"

	"github.com/pthm-cable/motes/config"
	"github.com/pthm-cable/motes/engine"
	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/vec"
)

// Perlin noise parameters for the wind field
const (
	windAlpha  = 2.0
	windBeta   = 2.0
	windOctave = 3
	windDrift  = 0.25 // noise units per second the field scrolls
)

// Ball is a particle with velocity.
type Ball struct {
	particle.Base
	Vel vec.V2D
}

// NewBall builds a ball. Arguments: position vec.V2D, radius float32, velocity vec.V2D.
func NewBall(index int, args ...any) *Ball {
	b := &Ball{Base: particle.Base{Idx: index, R: 5, RGBA: parity(index)}}
	if len(args) > 0 {
		b.Pos = args[0].(vec.V2D)
	}
	if len(args) > 1 {
		b.R = args[1].(float32)
	}
	if len(args) > 2 {
		b.Vel = args[2].(vec.V2D)
	}
	return b
}

// Bouncing drops balls under gravity, pushed sideways by a perlin wind field,
// bouncing off the window edges.
type Bouncing struct {
	cfg   config.BouncingConfig
	dt    float32
	noise *perlin.Perlin
	e     *engine.Engine[*Ball]
}

// NewBouncing creates the demo. dt is the simulated time per generation in seconds.
func NewBouncing(cfg config.BouncingConfig, dt float32) *Bouncing {
	return &Bouncing{cfg: cfg, dt: dt}
}

// RunBouncing runs the bouncing balls demo until halted.
func RunBouncing(ctx context.Context, cfg *config.Config, opts engine.Options, limits Limits) error {
	app := NewBouncing(cfg.Bouncing, cfg.Derived.SimDT32)
	e := engine.New[*Ball](app, NewBall, withEngineConfig(opts, cfg))
	return run(ctx, e, cfg, title(cfg, "bouncing balls"), limits)
}

// Init seeds the wind field and spawns the balls.
func (b *Bouncing) Init(e *engine.Engine[*Ball]) error {
	b.e = e
	rng := e.Rand()
	b.noise = perlin.NewPerlin(windAlpha, windBeta, windOctave, rng.Int63())
	e.SetBackground(Background)

	w, h := float32(e.Width()), float32(e.Height())
	for i := 0; i < b.cfg.Count; i++ {
		r := b.cfg.MinRadius + rng.Float32()*(b.cfg.MaxRadius-b.cfg.MinRadius)
		pos := vec.Random(rng, r, w-r, r, h-r)
		if _, err := e.Add(pos, r, vec.RandomUnit(rng, 60)); err != nil {
			return err
		}
	}
	return nil
}

// Simulate integrates each ball in the worker's slice. Balls never read each other.
func (b *Bouncing) Simulate(_, slice []*Ball, elapsed time.Duration) {
	w, h := float32(b.e.Width()), float32(b.e.Height())
	t := elapsed.Seconds() * windDrift
	dt := b.dt

	for _, ball := range slice {
		wind := b.Wind(ball.Pos, t)
		ball.Vel.X += wind * dt
		ball.Vel.Y += b.cfg.Gravity * dt
		ball.Pos.AddAssign(ball.Vel.Scale(dt))

		bounce(&ball.Pos.X, &ball.Vel.X, ball.R, w-ball.R, b.cfg.Restitution)
		bounce(&ball.Pos.Y, &ball.Vel.Y, ball.R, h-ball.R, b.cfg.Restitution)
	}
}

// Wind returns the horizontal wind force at p, t noise units into the run.
func (b *Bouncing) Wind(p vec.V2D, t float64) float32 {
	n := b.noise.Noise2D(float64(p.X)*b.cfg.WindScale+t, float64(p.Y)*b.cfg.WindScale)
	return float32(n) * b.cfg.Wind
}

// bounce reflects a coordinate off [lo, hi], losing energy to restitution.
func bounce(pos, vel *float32, lo, hi, restitution float32) {
	if hi < lo {
		*pos = (lo + hi) / 2
		*vel = 0
		return
	}
	switch {
	case *pos < lo:
		*pos = lo
		if *vel < 0 {
			*vel = -*vel * restitution
		}
	case *pos > hi:
		*pos = hi
		if *vel > 0 {
			*vel = -*vel * restitution
		}
	}
}
