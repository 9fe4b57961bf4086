package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/motes/surface"
	"github.com/pthm-cable/motes/surface/headless"
	"github.com/pthm-cable/motes/telemetry"
	"github.com/pthm-cable/motes/vec"
)

func TestEndToEndFiveGenerations(t *testing.T) {
	e := New[*body](newStepApp(), newBody, Options{Threads: 2})
	if err := e.Create(200, 100, CreateOptions{Capacity: 10, InitialCount: 3}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	halt := HaltWhen(func() bool { return e.Generation() >= 5 })
	if err := e.Start(context.Background(), time.Millisecond, 0, halt); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ps := e.store.Particles()
	if len(ps) != 3 {
		t.Fatalf("expected 3 particles, got %d", len(ps))
	}
	for _, b := range ps {
		if b.Pos.X != 5 {
			t.Errorf("particle %d at x=%v, want 5", b.Idx, b.Pos.X)
		}
	}
	if e.Generation() != 5 {
		t.Errorf("expected generation 5, got %d", e.Generation())
	}
}

func TestCreateRejectsInitialOverCapacity(t *testing.T) {
	e := New[*body](newStepApp(), newBody, Options{})
	err := e.Create(100, 100, CreateOptions{Capacity: 10, InitialCount: 11})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if e.Len() != 0 {
		t.Errorf("expected no particles, got %d", e.Len())
	}

	// A failed Create can be retried
	if err := e.Create(100, 100, CreateOptions{Capacity: 10, InitialCount: 10}); err != nil {
		t.Fatalf("retry: %v", err)
	}
	defer e.Close()
	if _, err := e.Add(); !errors.Is(err, ErrCapacityExceeded) {
		t.Errorf("expected ErrCapacityExceeded at capacity, got %v", err)
	}
	if e.Len() != 10 {
		t.Errorf("size changed on failed add: %d", e.Len())
	}
	if err := e.Create(100, 100, CreateOptions{}); !errors.Is(err, ErrAlreadyCreated) {
		t.Errorf("expected ErrAlreadyCreated, got %v", err)
	}
}

func TestDefaultCapacity(t *testing.T) {
	e := New[*body](newStepApp(), newBody, Options{})
	if err := e.Create(10, 10, CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.Capacity() != DefaultCapacity {
		t.Errorf("expected capacity %d, got %d", DefaultCapacity, e.Capacity())
	}
}

func TestNotReady(t *testing.T) {
	e := New[*body](newStepApp(), newBody, Options{})

	if _, err := e.Add(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Add: expected ErrNotReady, got %v", err)
	}
	if err := e.Tick(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Tick: expected ErrNotReady, got %v", err)
	}
	if err := e.Start(context.Background(), time.Millisecond, time.Millisecond, nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Start: expected ErrNotReady, got %v", err)
	}
	if err := e.Exclusive(nil); !errors.Is(err, ErrNotReady) {
		t.Errorf("Exclusive: expected ErrNotReady, got %v", err)
	}
	if err := e.LockCursor(); !errors.Is(err, ErrNotReady) {
		t.Errorf("LockCursor: expected ErrNotReady, got %v", err)
	}
	if err := e.UnlockCursor(); !errors.Is(err, ErrNotReady) {
		t.Errorf("UnlockCursor: expected ErrNotReady, got %v", err)
	}
	if e.Len() != 0 || e.Particles() != nil {
		t.Error("expected empty engine before Create")
	}
}

func TestStartTwice(t *testing.T) {
	e := New[*body](newStepApp(), newBody, Options{Threads: 2})
	if err := e.Create(10, 10, CreateOptions{Capacity: 4, InitialCount: 1}); err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	var once sync.Once
	halt := HaltWhen(func() bool {
		once.Do(func() { close(started) })
		return e.Generation() >= 20
	})

	errc := make(chan error, 1)
	go func() { errc <- e.Start(context.Background(), time.Millisecond, time.Millisecond, halt) }()
	<-started

	if err := e.Start(context.Background(), time.Millisecond, time.Millisecond, nil); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestContextCancelStopsCleanly(t *testing.T) {
	app := newStepApp()
	e := New[*body](app, newBody, Options{Threads: 4, EventInterval: time.Millisecond})
	if err := e.Create(10, 10, CreateOptions{Capacity: 100, InitialCount: 50}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := e.Start(ctx, time.Millisecond, time.Millisecond, nil); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if e.Generation() == 0 {
		t.Error("no generations ran before cancellation")
	}
	if app.closes.Load() != 1 {
		t.Errorf("expected close hook once, got %d", app.closes.Load())
	}
}

func TestWindowCloseRunsCloseHookOnce(t *testing.T) {
	surf := headless.New()
	app := newStepApp()
	e := New[*body](app, newBody, Options{Threads: 2, Surface: surf, EventInterval: time.Millisecond})
	if err := e.Create(10, 10, CreateOptions{Capacity: 8, InitialCount: 8}); err != nil {
		t.Fatal(err)
	}

	go func() {
		for e.Generation() < 3 {
			time.Sleep(time.Millisecond)
		}
		surf.RequestClose()
	}()

	if err := e.Start(context.Background(), time.Millisecond, time.Millisecond, nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.Close()
	e.Close()

	if app.closes.Load() != 1 {
		t.Errorf("expected close hook once, got %d", app.closes.Load())
	}
	if !surf.Closed() {
		t.Error("surface not closed")
	}
}

// inputApp records every input hook.
type inputApp struct {
	stepApp
	mu     sync.Mutex
	calls  []string
	sizes  [][2]int
	engine *Engine[*body]
}

func (a *inputApp) record(s string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, s)
}

func (a *inputApp) Init(e *Engine[*body]) error {
	a.engine = e
	a.record("init")
	return nil
}

func (a *inputApp) OnScroll(dx, dy float64)               { a.record("scroll") }
func (a *inputApp) OnClick(button, action, mods int)      { a.record("click") }
func (a *inputApp) OnMove(x, y float64)                   { a.record("move") }
func (a *inputApp) OnText(r rune)                         { a.record("text:" + string(r)) }
func (a *inputApp) OnKey(key, scancode, action, mods int) { a.record("key") }

func (a *inputApp) OnResize(w, h int) {
	a.record("resize")
	a.sizes = append(a.sizes, [2]int{w, h})
	// Input hooks may use the full engine API
	if _, err := a.engine.Add(); err != nil {
		panic(err)
	}
}

func TestEventsDispatchInSingleLoop(t *testing.T) {
	surf := headless.New()
	app := &inputApp{stepApp: stepApp{panicAt: -1}}
	e := New[*body](app, newBody, Options{Threads: 1, Surface: surf})
	if err := e.Create(100, 80, CreateOptions{Capacity: 8}); err != nil {
		t.Fatal(err)
	}

	surf.Inject(
		surface.Event{Kind: surface.EventScroll, DY: 1},
		surface.Event{Kind: surface.EventClick, Button: surface.ButtonLeft, Action: surface.Press},
		surface.Event{Kind: surface.EventMove, X: 3, Y: 4},
		surface.Event{Kind: surface.EventText, Rune: 'q'},
		surface.Event{Kind: surface.EventKey, Key: 32, Action: surface.Press},
		surface.Event{Kind: surface.EventResize, Width: 640, Height: 480},
	)

	halt := HaltWhen(func() bool { return e.Generation() >= 3 })
	if err := e.Start(context.Background(), time.Millisecond, time.Millisecond, halt); err != nil {
		t.Fatalf("Start: %v", err)
	}

	want := []string{"init", "scroll", "click", "move", "text:q", "key", "resize"}
	app.mu.Lock()
	got := strings.Join(app.calls, ",")
	app.mu.Unlock()
	if got != strings.Join(want, ",") {
		t.Errorf("hook order:\n got %s\nwant %s", got, strings.Join(want, ","))
	}
	if e.Width() != 640 || e.Height() != 480 {
		t.Errorf("size not updated: %dx%d", e.Width(), e.Height())
	}
	if surf.Frames() != 3 {
		t.Errorf("single loop should draw once per generation, drew %d", surf.Frames())
	}
	// The particle added from OnResize was simulated
	if n := len(e.store.Particles()); n != 1 {
		t.Fatalf("expected 1 particle, got %d", n)
	}
	if x := e.store.Particles()[0].Pos.X; x != 3 {
		t.Errorf("expected x=3 after 3 generations, got %v", x)
	}
}

// panicKeyApp panics on any key.
type panicKeyApp struct{ stepApp }

func (a *panicKeyApp) OnKey(key, scancode, action, mods int) { panic("key") }

func TestHandlerPanicEndsRun(t *testing.T) {
	surf := headless.New()
	app := &panicKeyApp{stepApp{panicAt: -1}}
	e := New[*body](app, newBody, Options{Threads: 2, Surface: surf, EventInterval: time.Millisecond})
	if err := e.Create(10, 10, CreateOptions{Capacity: 4, InitialCount: 4}); err != nil {
		t.Fatal(err)
	}
	surf.Inject(surface.Event{Kind: surface.EventKey, Key: 1, Action: surface.Press})

	err := e.Start(context.Background(), time.Millisecond, time.Millisecond, nil)
	var pe *WorkerPanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *WorkerPanicError, got %v", err)
	}
	if pe.Worker != -1 || pe.Hook != "key handler" {
		t.Errorf("unexpected panic origin: worker=%d hook=%s", pe.Worker, pe.Hook)
	}
}

// panicCloseApp panics in the close hook.
type panicCloseApp struct{ stepApp }

func (a *panicCloseApp) OnClose() { panic("close") }

func TestClosePanicReturnedByStart(t *testing.T) {
	app := &panicCloseApp{stepApp{panicAt: -1}}
	e := New[*body](app, newBody, Options{Threads: 2})
	if err := e.Create(10, 10, CreateOptions{Capacity: 4, InitialCount: 4}); err != nil {
		t.Fatal(err)
	}

	err := e.Start(context.Background(), time.Millisecond, 0, HaltWhen(func() bool { return e.Generation() >= 3 }))
	var pe *WorkerPanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *WorkerPanicError, got %v", err)
	}
	if pe.Worker != -1 || pe.Hook != "OnClose" {
		t.Errorf("unexpected panic origin: worker=%d hook=%s", pe.Worker, pe.Hook)
	}
}

func TestRequestQueueDropsWhenFull(t *testing.T) {
	var logs bytes.Buffer
	surf := headless.New()
	e := New[*body](newStepApp(), newBody, Options{
		Surface:      surf,
		RequestQueue: 2,
		Logger:       slog.New(slog.NewJSONHandler(&logs, nil)),
	})
	if err := e.Create(10, 10, CreateOptions{Capacity: 1, Title: "a"}); err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.ToggleFullscreen(); err != nil {
		t.Fatal(err)
	}
	if err := e.SetTitle("b"); err != nil {
		t.Fatal(err)
	}
	if err := e.ToggleVsync(); !errors.Is(err, ErrRequestDropped) {
		t.Fatalf("expected ErrRequestDropped, got %v", err)
	}
	if !strings.Contains(logs.String(), "request dropped") {
		t.Error("dropped request not logged")
	}

	e.render()

	reqs := surf.Requests()
	if len(reqs) != 2 || reqs[0].Kind != surface.RequestFullscreen || reqs[1].Kind != surface.RequestTitle {
		t.Errorf("unexpected applied requests %+v", reqs)
	}
	fs, _, _, title := surf.State()
	if !fs || title != "b" {
		t.Errorf("requests not applied: fullscreen=%v title=%q", fs, title)
	}

	// Queue drained: room again
	if err := e.ToggleVsync(); err != nil {
		t.Errorf("queue not drained: %v", err)
	}
}

func TestRenderFrameContents(t *testing.T) {
	surf := headless.New()
	e := New[*body](newStepApp(), newBody, Options{Surface: surf})
	if err := e.Create(10, 10, CreateOptions{Capacity: 4}); err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	for i := 0; i < 3; i++ {
		if _, err := e.Add(float32(i), float32(10*i)); err != nil {
			t.Fatal(err)
		}
	}
	e.SetBackground(0x336699ff)
	e.SetTransform(mgl32.Scale3D(2, 2, 1))
	e.AddPolyLine([]vec.V2D{vec.New(0, 0), vec.New(5, 5)}, 0xff0000ff, 1)
	e.AddBezier([]vec.V2D{vec.New(0, 0), vec.New(1, 1), vec.New(2, 1), vec.New(3, 0)}, 0x00ff00ff, 2)

	e.render()
	f := surf.LastFrame()

	if f.Count != 3 || f.Capacity != 4 || len(f.PosRadius) != 16 {
		t.Fatalf("unexpected frame shape count=%d capacity=%d len=%d", f.Count, f.Capacity, len(f.PosRadius))
	}
	if f.PosRadius[8] != 2 || f.PosRadius[9] != 20 || f.PosRadius[10] != 1 {
		t.Errorf("third slot wrong: %v", f.PosRadius[8:12])
	}
	if math.Abs(float64(f.Background[1])-0x66/255.0) > 1e-6 {
		t.Errorf("background not applied: %v", f.Background)
	}
	if f.Transform != mgl32.Scale3D(2, 2, 1) {
		t.Error("transform not copied into frame")
	}
	if len(f.Shapes) != 2 || len(e.Shapes()) != 2 {
		t.Errorf("expected 2 shapes, got %d", len(f.Shapes))
	}

	// Removed particles leave zeroed slots
	e.Clear()
	e.render()
	f = surf.LastFrame()
	if f.Count != 0 {
		t.Errorf("expected empty frame, got %d", f.Count)
	}
	for i, v := range f.PosRadius {
		if v != 0 {
			t.Fatalf("PosRadius[%d] = %v after Clear", i, v)
		}
	}
	for i, v := range f.Colors {
		if v != 0 {
			t.Fatalf("Colors[%d] = %v after Clear", i, v)
		}
	}
}

func TestMousePos(t *testing.T) {
	surf := headless.New()
	e := New[*body](newStepApp(), newBody, Options{Surface: surf})
	if err := e.Create(400, 300, CreateOptions{Capacity: 1}); err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	surf.Inject(surface.Event{Kind: surface.EventMove, X: 300, Y: 250})
	e.SetTransform(mgl32.Translate3D(100, 50, 0).Mul4(mgl32.Scale3D(2, 2, 1)))

	p, err := e.MousePos(ScreenSpace)
	if err != nil || p != vec.New(300, 250) {
		t.Errorf("screen space: got %v %v", p, err)
	}

	p, err = e.MousePos(WorldSpace)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(p.X-100)) > 1e-4 || math.Abs(float64(p.Y-100)) > 1e-4 {
		t.Errorf("world space: expected (100,100), got %v", p)
	}

	if _, err := e.MousePos(Space(7)); !errors.Is(err, ErrUnsupportedSpace) {
		t.Errorf("expected ErrUnsupportedSpace, got %v", err)
	}
}

func TestCursorLock(t *testing.T) {
	surf := headless.New()
	e := New[*body](newStepApp(), newBody, Options{Surface: surf})
	if err := e.Create(10, 10, CreateOptions{Capacity: 1}); err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if err := e.LockCursor(); err != nil {
		t.Fatal(err)
	}
	if _, _, locked, _ := surf.State(); !locked {
		t.Error("cursor not locked")
	}
	if err := e.UnlockCursor(); err != nil {
		t.Fatal(err)
	}
	if _, _, locked, _ := surf.State(); locked {
		t.Error("cursor still locked")
	}
}

// initFailApp fails Init.
type initFailApp struct{ stepApp }

func (a *initFailApp) Init(e *Engine[*body]) error { return errors.New("no assets") }

func TestInitErrorReleasesEngine(t *testing.T) {
	surf := headless.New()
	app := &initFailApp{stepApp{panicAt: -1}}
	e := New[*body](app, newBody, Options{Surface: surf})
	err := e.Create(10, 10, CreateOptions{Capacity: 1})
	if err == nil || !strings.Contains(err.Error(), "no assets") {
		t.Fatalf("expected init error, got %v", err)
	}
	if !surf.Closed() {
		t.Error("surface left open after failed Init")
	}
	if app.closes.Load() != 1 {
		t.Errorf("expected close hook once, got %d", app.closes.Load())
	}
}

func TestRandIsSeeded(t *testing.T) {
	a := New[*body](newStepApp(), newBody, Options{Seed: 42})
	b := New[*body](newStepApp(), newBody, Options{Seed: 42})
	for i := 0; i < 5; i++ {
		if a.Rand().Int63() != b.Rand().Int63() {
			t.Fatal("same seed produced different sequences")
		}
	}
}

func TestHaltAfter(t *testing.T) {
	e := New[*body](newStepApp(), newBody, Options{Threads: 1})
	if err := e.Create(10, 10, CreateOptions{Capacity: 1, InitialCount: 1}); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := e.Start(context.Background(), time.Millisecond, time.Millisecond, HaltAfter(20*time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("halted before the deadline")
	}
}

func TestPerfSummaryLogged(t *testing.T) {
	var logs bytes.Buffer
	var mu sync.Mutex
	logger := slog.New(slog.NewJSONHandler(&lockedWriter{w: &logs, mu: &mu}, nil))

	out, err := telemetry.NewOutputManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	e := New[*body](newStepApp(), newBody, Options{
		Threads:       2,
		EventInterval: time.Millisecond,
		Logger:        logger,
		Perf:          telemetry.NewPerf(16),
		PerfLog:       5 * time.Millisecond,
		Output:        out,
	})
	if err := e.Create(10, 10, CreateOptions{Capacity: 32, InitialCount: 32}); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(context.Background(), time.Millisecond, time.Millisecond, HaltAfter(40*time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, want := range []string{"engine_created", "engine_started", `"msg":"perf"`, `"msg":"population"`, "engine_stopped"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("missing %s in logs", want)
		}
	}
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func TestSaveSnapshot(t *testing.T) {
	out, err := telemetry.NewOutputManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	e := New[*body](newStepApp(), newBody, Options{Threads: 2, Output: out})
	if err := e.Create(10, 10, CreateOptions{Capacity: 8}); err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.AddN(4, float32(1), float32(2)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := e.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	path, err := e.SaveSnapshot()
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	if !strings.HasSuffix(path, "snapshot_3.csv") {
		t.Errorf("unexpected path %s", path)
	}
	states, err := telemetry.LoadSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(states))
	}
	for _, s := range states {
		if s.X != 4 || s.Y != 2 || s.Radius != 1 {
			t.Errorf("unexpected row %+v", s)
		}
	}
}

func TestSaveSnapshotWithoutOutput(t *testing.T) {
	e := New[*body](newStepApp(), newBody, Options{})
	if _, err := e.SaveSnapshot(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if err := e.Create(10, 10, CreateOptions{Capacity: 4, InitialCount: 2}); err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if path, err := e.SaveSnapshot(); path != "" || err != nil {
		t.Errorf("expected no-op, got %q %v", path, err)
	}
}
