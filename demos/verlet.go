package demos

import (
	"context"
	"math"
	"time"

	"github.com/pthm-cable/motes/config"
	"github.com/pthm-cable/motes/engine"
	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/shapes"
	"github.com/pthm-cable/motes/spatial"
	"github.com/pthm-cable/motes/store"
	"github.com/pthm-cable/motes/vec"
)

// Grain is a verlet-integrated particle: velocity is implicit in Pos - Prev.
type Grain struct {
	particle.Base
	Prev vec.V2D
}

// NewGrain builds a grain at rest. Arguments: position vec.V2D, radius float32, initial
// displacement per step vec.V2D.
func NewGrain(index int, args ...any) *Grain {
	g := &Grain{Base: particle.Base{Idx: index, R: 5, RGBA: parity(index)}}
	if len(args) > 0 {
		g.Pos = args[0].(vec.V2D)
	}
	if len(args) > 1 {
		g.R = args[1].(float32)
	}
	g.Prev = g.Pos
	if len(args) > 2 {
		g.Prev = g.Pos.Sub(args[2].(vec.V2D))
	}
	return g
}

// Verlet pours grains into a circular container. Integration runs in parallel in
// Simulate; collisions between grains are resolved in Update on a uniform grid.
type Verlet struct {
	cfg   config.VerletConfig
	dt    float32
	e     *engine.Engine[*Grain]
	owed  float32 // fractional grains due to spawn
	grid  *spatial.Grid[*Grain]
	angle float64

	outline *shapes.PolyLine
}

// NewVerlet creates the demo. dt is the simulated time per generation in seconds.
func NewVerlet(cfg config.VerletConfig, dt float32) *Verlet {
	return &Verlet{cfg: cfg, dt: dt, grid: spatial.NewGrid[*Grain](2 * cfg.Radius)}
}

// RunVerlet runs the verlet demo until halted.
func RunVerlet(ctx context.Context, cfg *config.Config, opts engine.Options, limits Limits) error {
	app := NewVerlet(cfg.Verlet, cfg.Derived.SimDT32)
	e := engine.New[*Grain](app, NewGrain, withEngineConfig(opts, cfg))
	return run(ctx, e, cfg, title(cfg, "verlet"), limits)
}

func (v *Verlet) Init(e *engine.Engine[*Grain]) error {
	v.e = e
	e.SetBackground(Background)

	v.outline = e.AddPolyLine(outline(v.container()), 0x576574ff, 2)

	// Update only runs on a non-empty store, so the first grain is placed here
	if v.cfg.Count > 0 {
		if _, err := e.Add(v.nozzle(), v.cfg.Radius); err != nil {
			return err
		}
	}
	return nil
}

// OnResize moves the drawn outline to the container for the new window size.
func (v *Verlet) OnResize(width, height int) {
	v.outline.SetPoints(outline(containerFor(float32(width), float32(height))))
}

// container returns the centre and inner radius of the container for the current window.
func (v *Verlet) container() (vec.V2D, float32) {
	return containerFor(float32(v.e.Width()), float32(v.e.Height()))
}

func containerFor(w, h float32) (vec.V2D, float32) {
	return vec.New(w/2, h/2), float32(math.Min(float64(w), float64(h))) * 0.45
}

// outline approximates the container circle with a closed poly-line.
func outline(c vec.V2D, r float32) []vec.V2D {
	const segments = 64
	pts := make([]vec.V2D, 0, segments+1)
	for i := 0; i <= segments; i++ {
		a := float64(i) / segments * 2 * math.Pi
		pts = append(pts, vec.New(c.X+r*float32(math.Cos(a)), c.Y+r*float32(math.Sin(a))))
	}
	return pts
}

// nozzle returns the spawn point near the top of the container.
func (v *Verlet) nozzle() vec.V2D {
	c, r := v.container()
	return vec.New(c.X, c.Y-r*0.6)
}

// Simulate advances each grain one verlet step and keeps it inside the container.
func (v *Verlet) Simulate(_, slice []*Grain, _ time.Duration) {
	c, r := v.container()
	acc := vec.New(0, v.cfg.Gravity)
	dt2 := v.dt * v.dt

	for _, g := range slice {
		step(g, acc, dt2)
		constrain(g, c, r)
	}
}

// Update spawns new grains and separates overlapping ones.
func (v *Verlet) Update(tx *store.Tx[*Grain], _ time.Duration) {
	v.spawn(tx)

	c, r := v.container()
	live := tx.Particles()
	for i := 0; i < v.cfg.Substeps; i++ {
		spatial.Build(v.grid, live, grainPos)
		v.grid.ForEachPair(separate)
		for _, g := range live {
			constrain(g, c, r)
		}
	}
}

// spawn emits grains from a rotating nozzle until Count is reached.
func (v *Verlet) spawn(tx *store.Tx[*Grain]) {
	if tx.Len() >= v.cfg.Count {
		return
	}
	v.owed += v.cfg.Spawn * v.dt
	nozzle := v.nozzle()

	for ; v.owed >= 1 && tx.Len() < v.cfg.Count; v.owed-- {
		v.angle += 0.35
		dir := vec.New(float32(math.Cos(v.angle)), float32(math.Sin(v.angle))*0.2+0.5)
		if _, err := tx.Add(nozzle, v.cfg.Radius, dir.Scale(v.cfg.Radius*0.4)); err != nil {
			v.owed = 0
			return
		}
	}
}

// step performs one position verlet integration.
func step(g *Grain, acc vec.V2D, dt2 float32) {
	vel := g.Pos.Sub(g.Prev)
	g.Prev = g.Pos
	g.Pos.AddAssign(vel.Add(acc.Scale(dt2)))
}

// constrain pushes g back inside the circle (c, r).
func constrain(g *Grain, c vec.V2D, r float32) {
	d := g.Pos.Sub(c)
	limit := r - g.R
	if limit <= 0 {
		g.Pos = c
		return
	}
	if d.SqrLen() > limit*limit {
		g.Pos = c.Add(d.SetLen(limit))
	}
}

func grainPos(g *Grain) (float32, float32) { return g.Pos.X, g.Pos.Y }

// separate pushes an overlapping pair apart, splitting the correction evenly.
func separate(a, b *Grain) {
	d := a.Pos.Sub(b.Pos)
	minDist := a.R + b.R
	dist2 := d.SqrLen()
	if dist2 >= minDist*minDist {
		return
	}
	if dist2 == 0 {
		// Coincident: nudge apart along x
		d = vec.New(1, 0)
		dist2 = 1
	}
	dist := float32(math.Sqrt(float64(dist2)))
	push := d.Scale((minDist - dist) / dist * 0.5)
	a.Pos.AddAssign(push)
	b.Pos.SubAssign(push)
}
