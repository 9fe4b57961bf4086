// Package engine runs a particle simulation: it owns the particle store, steps the
// user simulation on a worker pool, feeds render buffers to a surface and dispatches
// input events to the user's hooks.
//
// Three loops run concurrently once Start is called. The simulation loop steps
// generations at simInterval, the render loop draws at drawInterval and the calling
// goroutine polls input. With a single thread and equal intervals they collapse into
// one loop.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/shapes"
	"github.com/pthm-cable/motes/store"
	"github.com/pthm-cable/motes/surface"
	"github.com/pthm-cable/motes/surface/headless"
	"github.com/pthm-cable/motes/telemetry"
	"github.com/pthm-cable/motes/vec"
)

// DefaultCapacity is the particle capacity used when CreateOptions.Capacity is zero.
const DefaultCapacity = 10000

// Options configure an Engine. The zero value is usable.
type Options struct {
	Threads       int           // simulation workers, 0 = GOMAXPROCS
	EventInterval time.Duration // input polling period in decoupled mode, 0 = 16ms
	RequestQueue  int           // pending window requests, 0 = 4
	Seed          int64         // seed for Rand, 0 = time-based

	Logger  *slog.Logger    // nil = discard
	Surface surface.Surface // nil = headless

	Perf    *telemetry.Perf          // nil = no timing
	PerfLog time.Duration            // period of perf summaries, 0 = none
	Output  *telemetry.OutputManager // receives a perf row with every summary
}

// CreateOptions configure Create.
type CreateOptions struct {
	Capacity     int   // 0 = DefaultCapacity
	InitialCount int   // particles constructed before Init
	InitialArgs  []any // constructor arguments for the initial particles
	Title        string
	Vsync        bool
	Fullscreen   bool
}

// Space selects the coordinate system for MousePos.
type Space int

const (
	ScreenSpace Space = iota // framebuffer pixels
	WorldSpace               // screen position mapped through the inverse transform
)

// Engine is a particle simulation over particles of type T.
type Engine[T particle.Particle] struct {
	app  App[T]
	ctor particle.Constructor[T]
	opts Options
	log  *slog.Logger
	perf *telemetry.Perf
	surf surface.Surface

	store    *store.Store[T]
	sched    *scheduler[T]
	tickMu   sync.Mutex // serialises generations
	shapes   shapes.Collection
	requests chan surface.Request
	rng      *rand.Rand

	created    atomic.Bool
	ready      atomic.Bool
	running    atomic.Bool
	closing    atomic.Bool
	closeOnce  sync.Once
	generation atomic.Int64
	started    atomic.Int64 // unix nanos of Start
	width      atomic.Int64
	height     atomic.Int64

	viewMu     sync.RWMutex
	transform  mgl32.Mat4
	background [4]float32

	// Render loop state, owned by whichever goroutine renders.
	frame surface.Frame
	buf   store.Buffers
}

// New creates an engine for app. Particles are built by ctor.
func New[T particle.Particle](app App[T], ctor particle.Constructor[T], opts Options) *Engine[T] {
	if opts.Threads <= 0 {
		opts.Threads = runtime.GOMAXPROCS(0)
	}
	if opts.EventInterval <= 0 {
		opts.EventInterval = 16 * time.Millisecond
	}
	if opts.RequestQueue <= 0 {
		opts.RequestQueue = 4
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	log := opts.Logger
	if log == nil {
		log = newNopLogger()
	}
	surf := opts.Surface
	if surf == nil {
		surf = headless.New()
	}

	return &Engine[T]{
		app:        app,
		ctor:       ctor,
		opts:       opts,
		log:        log,
		perf:       opts.Perf,
		surf:       surf,
		sched:      newScheduler(app, opts.Threads, log),
		requests:   make(chan surface.Request, opts.RequestQueue),
		rng:        rand.New(newLockedSource(opts.Seed)),
		transform:  mgl32.Ident4(),
		background: [4]float32{0, 0, 0, 1},
	}
}

// Create opens the surface, allocates the store and render buffers, constructs the
// initial particles and runs the Init hook.
func (e *Engine[T]) Create(width, height int, opts CreateOptions) error {
	if !e.created.CompareAndSwap(false, true) {
		return ErrAlreadyCreated
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.InitialCount > opts.Capacity {
		e.created.Store(false)
		return fmt.Errorf("initial count %d over capacity %d: %w", opts.InitialCount, opts.Capacity, ErrCapacityExceeded)
	}

	err := e.surf.Open(surface.Config{
		Width:      width,
		Height:     height,
		Title:      opts.Title,
		Capacity:   opts.Capacity,
		Vsync:      opts.Vsync,
		Fullscreen: opts.Fullscreen,
	})
	if err != nil {
		e.created.Store(false)
		return fmt.Errorf("opening surface: %w", err)
	}
	e.width.Store(int64(width))
	e.height.Store(int64(height))

	e.store = store.New(opts.Capacity, e.ctor)
	if err := e.store.AddN(opts.InitialCount, opts.InitialArgs...); err != nil {
		return err
	}
	e.buf = store.NewBuffers(opts.Capacity)
	e.frame.Capacity = opts.Capacity

	e.sched.startWorkers()
	e.ready.Store(true)

	e.log.Info("engine_created",
		"width", width,
		"height", height,
		"capacity", opts.Capacity,
		"initial", opts.InitialCount,
		"threads", e.opts.Threads,
	)

	if init, ok := e.app.(Initializer[T]); ok {
		if err := e.guard("Init", func() error { return init.Init(e) }); err != nil {
			return errors.Join(fmt.Errorf("init: %w", err), e.shutdown())
		}
	}
	return nil
}

// guard runs a hook outside the worker pool, converting a panic into an error.
func (e *Engine[T]) guard(hook string, fn func() error) (err error) {
	defer recoverHook(-1, hook, e.log, &err)
	return fn()
}

// Add constructs a particle with the next index and appends it.
func (e *Engine[T]) Add(args ...any) (T, error) {
	if !e.ready.Load() {
		var zero T
		return zero, ErrNotReady
	}
	return e.store.Add(args...)
}

// AddN adds n particles built from the same arguments, all or none.
func (e *Engine[T]) AddN(n int, args ...any) error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	return e.store.AddN(n, args...)
}

// Make constructs a particle with a fresh index without adding it.
func (e *Engine[T]) Make(args ...any) (T, error) {
	if !e.ready.Load() {
		var zero T
		return zero, ErrNotReady
	}
	return e.store.Make(args...), nil
}

// Remove drops the last particle.
func (e *Engine[T]) Remove() (T, bool) {
	if !e.ready.Load() {
		var zero T
		return zero, false
	}
	return e.store.Remove()
}

// RemoveAt drops the particle at position i.
func (e *Engine[T]) RemoveAt(i int) (T, error) {
	if !e.ready.Load() {
		var zero T
		return zero, ErrNotReady
	}
	return e.store.RemoveAt(i)
}

// RemoveIndex drops the particle with the given engine index.
func (e *Engine[T]) RemoveIndex(index int) bool {
	if !e.ready.Load() {
		return false
	}
	return e.store.RemoveIndex(index)
}

// Clear removes every particle and blanks the render buffers.
func (e *Engine[T]) Clear() {
	if !e.ready.Load() {
		return
	}
	e.store.Clear()
}

// Replace swaps in a new particle collection.
func (e *Engine[T]) Replace(ps []T) error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	return e.store.Replace(ps)
}

// Apply builds a replacement collection under the exclusive lock.
// See store.Store.Apply.
func (e *Engine[T]) Apply(fn func(live []T, mk func(args ...any) T) []T) error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	return e.store.Apply(fn)
}

// Exclusive runs fn with exclusive access to the live store.
func (e *Engine[T]) Exclusive(fn func(tx *store.Tx[T])) error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	e.store.Commit(fn)
	return nil
}

// Read runs fn over the live store under the shared lock.
func (e *Engine[T]) Read(fn func(live []T)) error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	e.store.Read(fn)
	return nil
}

// Particles returns a copy of the live store.
func (e *Engine[T]) Particles() []T {
	if !e.ready.Load() {
		return nil
	}
	return e.store.Particles()
}

// SaveSnapshot writes the state of every live particle to the output directory.
// Returns "" when no output directory is configured.
func (e *Engine[T]) SaveSnapshot() (string, error) {
	if !e.ready.Load() {
		return "", ErrNotReady
	}
	var states []telemetry.ParticleState
	var gen int64
	e.store.Read(func(live []T) {
		states = telemetry.Capture(live)
		gen = e.Generation()
	})
	return e.opts.Output.WriteSnapshot(gen, states)
}

// Len returns the number of live particles, or 0 before Create.
func (e *Engine[T]) Len() int {
	if !e.ready.Load() {
		return 0
	}
	return e.store.Len()
}

// Capacity returns the maximum number of live particles.
func (e *Engine[T]) Capacity() int {
	if e.store == nil {
		return 0
	}
	return e.store.Capacity()
}

// Generation returns the number of completed scheduler iterations.
func (e *Engine[T]) Generation() int64 {
	return e.generation.Load()
}

// Elapsed returns the time since Start, or zero before it.
func (e *Engine[T]) Elapsed() time.Duration {
	t := e.started.Load()
	if t == 0 {
		return 0
	}
	return time.Since(time.Unix(0, t))
}

// Width returns the framebuffer width.
func (e *Engine[T]) Width() int {
	return int(e.width.Load())
}

// Height returns the framebuffer height.
func (e *Engine[T]) Height() int {
	return int(e.height.Load())
}

// Rand returns the engine's seeded random source. It is safe for concurrent use.
func (e *Engine[T]) Rand() *rand.Rand {
	return e.rng
}

// Logger returns the engine logger.
func (e *Engine[T]) Logger() *slog.Logger {
	return e.log
}

// SetTransform sets the world-to-screen transform applied to everything drawn.
func (e *Engine[T]) SetTransform(m mgl32.Mat4) {
	e.viewMu.Lock()
	defer e.viewMu.Unlock()
	e.transform = m
}

// Transform returns the current world-to-screen transform.
func (e *Engine[T]) Transform() mgl32.Mat4 {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	return e.transform
}

// SetBackground sets the clear colour from a packed RGBA value.
func (e *Engine[T]) SetBackground(rgba uint32) {
	e.viewMu.Lock()
	defer e.viewMu.Unlock()
	particle.Floats(rgba, e.background[:])
}

// MousePos returns the cursor position in the requested space.
func (e *Engine[T]) MousePos(space Space) (vec.V2D, error) {
	x, y := e.surf.Cursor()
	switch space {
	case ScreenSpace:
		return vec.New(float32(x), float32(y)), nil
	case WorldSpace:
		p := e.Transform().Inv().Mul4x1(mgl32.Vec4{float32(x), float32(y), 0, 1})
		return vec.New(p.X(), p.Y()), nil
	default:
		return vec.V2D{}, fmt.Errorf("space %d: %w", space, ErrUnsupportedSpace)
	}
}

// LockCursor hides and captures the cursor.
func (e *Engine[T]) LockCursor() error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	return e.surf.SetCursorLocked(true)
}

// UnlockCursor releases a cursor captured by LockCursor.
func (e *Engine[T]) UnlockCursor() error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	return e.surf.SetCursorLocked(false)
}

// AddPolyLine adds a poly-line drawn every frame.
func (e *Engine[T]) AddPolyLine(points []vec.V2D, rgba uint32, thickness float32) *shapes.PolyLine {
	l := shapes.NewPolyLine(points, rgba, thickness)
	e.shapes.Add(l)
	return l
}

// AddBezier adds a cubic Bezier chain drawn every frame.
func (e *Engine[T]) AddBezier(controls []vec.V2D, rgba uint32, thickness float32) *shapes.Bezier {
	b := shapes.NewBezier(controls, rgba, thickness)
	e.shapes.Add(b)
	return b
}

// AddShape adds any shape drawn every frame.
func (e *Engine[T]) AddShape(s shapes.Shape) {
	e.shapes.Add(s)
}

// Shapes returns the shapes in draw order.
func (e *Engine[T]) Shapes() []shapes.Shape {
	return e.shapes.Shapes()
}

// lockedSource makes a rand.Source safe for concurrent use.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func newLockedSource(seed int64) *lockedSource {
	return &lockedSource{src: rand.NewSource(seed).(rand.Source64)}
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}
