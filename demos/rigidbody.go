package demos

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/motes/camera"
	"github.com/pthm-cable/motes/config"
	"github.com/pthm-cable/motes/engine"
	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/spatial"
	"github.com/pthm-cable/motes/store"
	"github.com/pthm-cable/motes/surface"
	"github.com/pthm-cable/motes/vec"
)

// Rigidbody input tuning
const (
	zoomIn       = 1.333
	zoomOut      = 0.75
	growRate     = 1.0  // radius gained per generation while sizing a new body
	launchFactor = 50.0 // drag distance divisor for launch velocity
)

// Disc is a rigid circular body.
type Disc struct {
	particle.Base
	Vel      vec.V2D
	next     vec.V2D // post-collision velocity computed in Simulate
	M        float32
	Disabled bool
}

// NewDisc builds a disc whose mass is the cube of its radius.
// Arguments: position vec.V2D, radius float32, disabled bool.
func NewDisc(index int, args ...any) *Disc {
	d := &Disc{Base: particle.Base{Idx: index, R: 1, RGBA: Teal}}
	if len(args) > 0 {
		d.Pos = args[0].(vec.V2D)
	}
	if len(args) > 1 {
		d.R = args[1].(float32)
	}
	if len(args) > 2 && args[2].(bool) {
		d.Disabled = true
		d.RGBA = Ghost
	}
	d.M = d.R * d.R * d.R
	return d
}

// Rigidbody is an interactive sandbox of elastically colliding discs.
//
//	right-drag  size and launch a new disc
//	left-drag   pan
//	scroll      zoom at the cursor
//	r           clear
//	f, F11      toggle fullscreen
//	m           add a batch of random discs
//	s           save a snapshot to the output directory
//	space       pause
type Rigidbody struct {
	cfg    config.RigidbodyConfig
	dt     float32
	e      *engine.Engine[*Disc]
	paused atomic.Bool

	// Broad phase, rebuilt in Update and read by the workers in Simulate
	grid    *spatial.Grid[*Disc]
	indexed []*Disc // discs in the grid, in store order
	reach   float32 // largest radius plus largest step

	// Input state, touched by the input hooks and by Update
	mu       sync.Mutex
	cam      *camera.Camera
	panning  bool
	lastPan  vec.V2D
	sizing   *Disc
	dragFrom vec.V2D
}

// NewRigidbody creates the demo. dt is the simulated time per generation in seconds.
func NewRigidbody(cfg config.RigidbodyConfig, dt float32) *Rigidbody {
	return &Rigidbody{cfg: cfg, dt: dt, grid: spatial.NewGrid[*Disc](2 * cfg.MaxRadius)}
}

// RunRigidbody runs the interactive rigid body demo until halted.
func RunRigidbody(ctx context.Context, cfg *config.Config, opts engine.Options, limits Limits) error {
	app := NewRigidbody(cfg.Rigidbody, cfg.Derived.SimDT32)
	e := engine.New[*Disc](app, NewDisc, withEngineConfig(opts, cfg))
	return run(ctx, e, cfg, title(cfg, "rigidbody"), limits)
}

func (r *Rigidbody) Init(e *engine.Engine[*Disc]) error {
	r.e = e
	r.cam = camera.New(float32(e.Width()), float32(e.Height()))
	e.SetBackground(Background)
	e.SetTransform(r.cam.Matrix())
	return r.AddBatch(r.cfg.Count)
}

// Paused reports whether integration is suspended.
func (r *Rigidbody) Paused() bool {
	return r.paused.Load()
}

// Simulate computes the post-collision velocity of each disc in the slice against
// its neighbours, using positions predicted one step ahead. Only the slice's own
// discs are written. When discs were added or removed since the last Update the
// grid is stale and every disc in the snapshot is checked instead.
func (r *Rigidbody) Simulate(snapshot, slice []*Disc, _ time.Duration) {
	if r.paused.Load() {
		return
	}
	indexed := slices.Equal(r.indexed, snapshot)
	var near []spatial.Neighbor[*Disc]

	for _, a := range slice {
		a.next = a.Vel
		if a.Disabled {
			continue
		}
		if !indexed {
			for _, b := range snapshot {
				r.collide(a, b)
			}
			continue
		}
		near = r.grid.QueryRadiusInto(near[:0], a.Pos.X, a.Pos.Y, a.R+r.reach, nil)
		for _, n := range near {
			r.collide(a, n.Item)
		}
	}
}

// collide folds the contact with b into a.next if the two overlap next step and
// are approaching.
func (r *Rigidbody) collide(a, b *Disc) {
	if b == a || b.Disabled {
		return
	}
	pa := a.Pos.Add(a.Vel.Scale(r.dt))
	pb := b.Pos.Add(b.Vel.Scale(r.dt))
	reach := a.R + b.R
	if pa.SqrDist(pb) >= reach*reach {
		return
	}
	if a.next.Sub(b.Vel).Dot(pa.Sub(pb)) >= 0 {
		return
	}
	a.next, _ = particle.CollideElastic(a.M, b.M, pa, a.next, pb, b.Vel)
}

// Update applies the collision results, integrates, grows a disc being sized and
// rebuilds the broad phase grid.
func (r *Rigidbody) Update(tx *store.Tx[*Disc], _ time.Duration) {
	paused := r.paused.Load()
	live := tx.Particles()
	for _, d := range live {
		if d.Disabled || paused {
			continue
		}
		d.Vel = d.next
		d.Vel.Y += r.cfg.Gravity * r.dt
		d.Pos.AddAssign(d.Vel.Scale(r.dt))
	}

	r.mu.Lock()
	if r.sizing != nil {
		r.sizing.R += growRate
	}
	r.mu.Unlock()

	var maxR, maxStep float32
	for _, d := range live {
		maxR = max(maxR, d.R)
		maxStep = max(maxStep, d.Vel.Len()*r.dt)
	}
	r.reach = maxR + 2*maxStep
	r.grid.SetCellSize(max(2*maxR, 1))
	spatial.Build(r.grid, live, discPos)
	r.indexed = append(r.indexed[:0], live...)
}

func discPos(d *Disc) (float32, float32) { return d.Pos.X, d.Pos.Y }

// AddBatch adds n discs at random positions in the visible world in one atomic swap.
func (r *Rigidbody) AddBatch(n int) error {
	rng := r.e.Rand()
	r.mu.Lock()
	minX, minY, maxX, maxY := r.cam.VisibleWorldBounds()
	r.mu.Unlock()

	return r.e.Apply(func(live []*Disc, mk func(args ...any) *Disc) []*Disc {
		out := make([]*Disc, len(live), len(live)+n)
		copy(out, live)
		for i := 0; i < n; i++ {
			rad := r.cfg.MinRadius + rng.Float32()*(r.cfg.MaxRadius-r.cfg.MinRadius)
			d := mk(vec.Random(rng, minX, maxX, minY, maxY), rad)
			d.Vel = vec.RandomUnit(rng, 20)
			out = append(out, d)
		}
		return out
	})
}

func (r *Rigidbody) OnScroll(_, dy float64) {
	cursor, _ := r.e.MousePos(engine.ScreenSpace)
	factor := float32(zoomOut)
	if dy > 0 {
		factor = zoomIn
	}

	r.mu.Lock()
	r.cam.ZoomAt(cursor, factor)
	m := r.cam.Matrix()
	r.mu.Unlock()
	r.e.SetTransform(m)
}

func (r *Rigidbody) OnClick(button, action, _ int) {
	screen, _ := r.e.MousePos(engine.ScreenSpace)
	world, _ := r.e.MousePos(engine.WorldSpace)

	switch {
	case button == surface.ButtonLeft && action == surface.Press:
		r.mu.Lock()
		r.panning = true
		r.lastPan = screen
		r.mu.Unlock()

	case button == surface.ButtonLeft && action == surface.Release:
		r.mu.Lock()
		r.panning = false
		r.mu.Unlock()

	case button == surface.ButtonRight && action == surface.Press:
		d, err := r.e.Add(world, float32(1), true)
		if err != nil {
			r.e.Logger().Warn("spawning disc", "error", err)
			return
		}
		r.mu.Lock()
		r.sizing = d
		r.dragFrom = screen
		r.mu.Unlock()

	case button == surface.ButtonRight && action == surface.Release:
		r.mu.Lock()
		d := r.sizing
		r.sizing = nil
		r.mu.Unlock()
		if d == nil {
			return
		}
		_ = r.e.Exclusive(func(*store.Tx[*Disc]) {
			d.M = d.R * d.R * d.R
			d.next = d.Vel
			d.Disabled = false
			d.RGBA = Teal
		})
	}
}

func (r *Rigidbody) OnMove(x, y float64) {
	pos := vec.New(float32(x), float32(y))

	r.mu.Lock()
	var pan *mgl32.Mat4
	if r.panning {
		r.cam.Pan(pos.X-r.lastPan.X, pos.Y-r.lastPan.Y)
		r.lastPan = pos
		m := r.cam.Matrix()
		pan = &m
	}
	d := r.sizing
	vel := r.dragFrom.Sub(pos).Scale(1 / (r.cam.Zoom * launchFactor) / r.dt)
	r.mu.Unlock()

	if pan != nil {
		r.e.SetTransform(*pan)
	}
	if d != nil {
		// Launch opposite to the drag, like a slingshot
		_ = r.e.Exclusive(func(*store.Tx[*Disc]) { d.Vel = vel })
	}
}

func (r *Rigidbody) OnText(c rune) {
	switch c {
	case 'r':
		r.mu.Lock()
		r.sizing = nil
		r.mu.Unlock()
		r.e.Clear()
	case 'f':
		r.toggleFullscreen()
	case 'm':
		if err := r.AddBatch(r.cfg.SpawnBatch); err != nil {
			r.e.Logger().Warn("adding batch", "error", err, "batch", r.cfg.SpawnBatch)
		}
	case 's':
		path, err := r.e.SaveSnapshot()
		switch {
		case err != nil:
			r.e.Logger().Warn("saving snapshot", "error", err)
		case path != "":
			r.e.Logger().Info("snapshot_saved", "path", path, "generation", r.e.Generation())
		}
	}
}

func (r *Rigidbody) OnKey(key, _, action, _ int) {
	if action != surface.Press {
		return
	}
	switch key {
	case surface.KeyF11:
		r.toggleFullscreen()
	case surface.KeySpace:
		r.paused.Store(!r.paused.Load())
	}
}

func (r *Rigidbody) OnResize(width, height int) {
	r.mu.Lock()
	r.cam.Resize(float32(width), float32(height))
	m := r.cam.Matrix()
	r.mu.Unlock()
	r.e.SetTransform(m)
}

func (r *Rigidbody) toggleFullscreen() {
	if err := r.e.ToggleFullscreen(); err != nil && !errors.Is(err, engine.ErrRequestDropped) {
		r.e.Logger().Warn("toggling fullscreen", "error", err)
	}
}

// Momentum returns the total momentum of the enabled discs.
func Momentum(discs []*Disc) vec.V2D {
	var p vec.V2D
	for _, d := range discs {
		if !d.Disabled {
			p.AddAssign(d.Vel.Scale(d.M))
		}
	}
	return p
}

// KineticEnergy returns the total kinetic energy of the enabled discs.
func KineticEnergy(discs []*Disc) float64 {
	var k float64
	for _, d := range discs {
		if !d.Disabled {
			k += 0.5 * float64(d.M) * float64(d.Vel.SqrLen())
		}
	}
	return k
}
