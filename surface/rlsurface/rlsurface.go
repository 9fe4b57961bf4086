// Package rlsurface implements surface.Surface on a raylib window.
//
// raylib is not thread-safe and binds its context to the thread that created the
// window, so every raylib call runs on one goroutine locked to its OS thread. The
// engine's render and event loops talk to it through closures. Input is collected
// on that goroutine after each EndDrawing and handed out by Poll.
//
// On macOS the window must be created on the main thread, which this package does not
// arrange.
package rlsurface

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/motes/surface"
)

// ErrClosed is returned for calls after Close.
var ErrClosed = errors.New("raylib surface closed")

const statusBarHeight = 20

var mouseButtons = []struct {
	rl  rl.MouseButton
	btn int
}{
	{rl.MouseButtonLeft, surface.ButtonLeft},
	{rl.MouseButtonRight, surface.ButtonRight},
	{rl.MouseButtonMiddle, surface.ButtonMiddle},
}

// Surface is a raylib window.
type Surface struct {
	calls chan func()
	done  chan struct{}

	mu          sync.Mutex
	open        bool
	width       int
	height      int
	cursorX     float64
	cursorY     float64
	shouldClose bool
	pending     []surface.Event
	status      bool

	// Owned by the raylib goroutine
	held map[int32]bool
}

// New creates a surface. The window is created by Open.
// status enables a raygui status bar with the live particle count and FPS.
func New(status bool) *Surface {
	return &Surface{status: status, held: make(map[int32]bool)}
}

// Open starts the raylib goroutine and creates the window on it.
func (s *Surface) Open(cfg surface.Config) error {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return errors.New("raylib surface already open")
	}
	s.calls = make(chan func())
	s.done = make(chan struct{})
	s.open = true
	s.width, s.height = cfg.Width, cfg.Height
	s.mu.Unlock()

	go s.loop()

	return s.do(func() {
		flags := uint32(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
		if cfg.Vsync {
			flags |= rl.FlagVsyncHint
		}
		rl.SetConfigFlags(flags)
		rl.InitWindow(int32(cfg.Width), int32(cfg.Height), cfg.Title)
		// Pacing is the engine's job
		rl.SetTargetFPS(0)
		if cfg.Fullscreen {
			rl.ToggleFullscreen()
		}
	})
}

// loop executes raylib calls on a single OS thread until Close.
func (s *Surface) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)

	for fn := range s.calls {
		fn()
	}
}

// do runs fn on the raylib goroutine and waits for it.
func (s *Surface) do(fn func()) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrClosed
	}
	calls := s.calls
	s.mu.Unlock()

	finished := make(chan struct{})
	calls <- func() {
		defer close(finished)
		fn()
	}
	<-finished
	return nil
}

func (s *Surface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *Surface) Cursor() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorX, s.cursorY
}

// Poll returns the events collected since the last call.
func (s *Surface) Poll() []surface.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.pending
	s.pending = nil
	return evs
}

func (s *Surface) ShouldClose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldClose
}

// Draw renders the frame and collects input. It returns once the frame is presented,
// so the engine may reuse the frame buffers afterwards.
func (s *Surface) Draw(f *surface.Frame) {
	_ = s.do(func() {
		rl.BeginDrawing()
		rl.ClearBackground(toColor(f.Background[:]))

		scale := transformScale(f.Transform)
		// Slots past Count hold zeroed data, so drawing stops at Count.
		for i := 0; i < f.Count; i++ {
			o := i * 4
			r := f.PosRadius[o+2]
			if r == 0 {
				continue
			}
			center := apply(f.Transform, f.PosRadius[o], f.PosRadius[o+1])
			rl.DrawCircleV(center, r*scale, toColor(f.Colors[o:o+4]))
		}

		for _, sh := range f.Shapes {
			thick := sh.Thickness * scale
			for v := 0; v+3 < len(sh.Vertices); v += 2 {
				a := apply(f.Transform, sh.Vertices[v], sh.Vertices[v+1])
				b := apply(f.Transform, sh.Vertices[v+2], sh.Vertices[v+3])
				c := v * 2
				rl.DrawLineEx(a, b, thick, toColor(sh.Colors[c:c+4]))
			}
		}

		if s.status {
			w, h := float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight())
			gui.StatusBar(
				rl.Rectangle{X: 0, Y: h - statusBarHeight, Width: w, Height: statusBarHeight},
				fmt.Sprintf("%d / %d particles   %d fps", f.Count, f.Capacity, rl.GetFPS()),
			)
		}

		rl.EndDrawing()
		s.collect()
	})
}

// collect gathers input after EndDrawing polled it. Runs on the raylib goroutine.
func (s *Surface) collect() {
	var evs []surface.Event
	mods := modifiers()

	if w := rl.GetMouseWheelMoveV(); w.X != 0 || w.Y != 0 {
		evs = append(evs, surface.Event{Kind: surface.EventScroll, DX: float64(w.X), DY: float64(w.Y)})
	}

	mouse := rl.GetMousePosition()
	if d := rl.GetMouseDelta(); d.X != 0 || d.Y != 0 {
		evs = append(evs, surface.Event{Kind: surface.EventMove, X: float64(mouse.X), Y: float64(mouse.Y)})
	}

	for _, mb := range mouseButtons {
		if rl.IsMouseButtonPressed(mb.rl) {
			evs = append(evs, surface.Event{Kind: surface.EventClick, Button: mb.btn, Action: surface.Press, Mods: mods})
		}
		if rl.IsMouseButtonReleased(mb.rl) {
			evs = append(evs, surface.Event{Kind: surface.EventClick, Button: mb.btn, Action: surface.Release, Mods: mods})
		}
	}

	for k := rl.GetKeyPressed(); k != 0; k = rl.GetKeyPressed() {
		s.held[k] = true
		evs = append(evs, surface.Event{Kind: surface.EventKey, Key: int(k), Action: surface.Press, Mods: mods})
	}
	for k := range s.held {
		switch {
		case rl.IsKeyReleased(k):
			delete(s.held, k)
			evs = append(evs, surface.Event{Kind: surface.EventKey, Key: int(k), Action: surface.Release, Mods: mods})
		case rl.IsKeyPressedRepeat(k):
			evs = append(evs, surface.Event{Kind: surface.EventKey, Key: int(k), Action: surface.Repeat, Mods: mods})
		}
	}

	for c := rl.GetCharPressed(); c != 0; c = rl.GetCharPressed() {
		evs = append(evs, surface.Event{Kind: surface.EventText, Rune: rune(c)})
	}

	w, h := rl.GetScreenWidth(), rl.GetScreenHeight()
	if rl.IsWindowResized() {
		evs = append(evs, surface.Event{Kind: surface.EventResize, Width: w, Height: h})
	}
	closing := rl.WindowShouldClose()

	s.mu.Lock()
	s.pending = append(s.pending, evs...)
	s.cursorX, s.cursorY = float64(mouse.X), float64(mouse.Y)
	s.width, s.height = w, h
	s.shouldClose = s.shouldClose || closing
	s.mu.Unlock()
}

// Apply runs a window request on the raylib goroutine.
func (s *Surface) Apply(req surface.Request) error {
	var err error
	doErr := s.do(func() {
		switch req.Kind {
		case surface.RequestFullscreen:
			rl.ToggleFullscreen()
		case surface.RequestVsync:
			if rl.IsWindowState(rl.FlagVsyncHint) {
				rl.ClearWindowState(rl.FlagVsyncHint)
			} else {
				rl.SetWindowState(rl.FlagVsyncHint)
			}
		case surface.RequestTitle:
			rl.SetWindowTitle(req.Title)
		default:
			err = fmt.Errorf("unknown request %d", req.Kind)
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

func (s *Surface) SetCursorLocked(locked bool) error {
	return s.do(func() {
		if locked {
			rl.DisableCursor()
		} else {
			rl.EnableCursor()
		}
	})
}

// Close destroys the window and stops the raylib goroutine.
func (s *Surface) Close() error {
	if err := s.do(rl.CloseWindow); err != nil {
		return nil
	}

	s.mu.Lock()
	s.open = false
	close(s.calls)
	s.mu.Unlock()

	<-s.done
	return nil
}

func modifiers() int {
	var m int
	if rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift) {
		m |= surface.ModShift
	}
	if rl.IsKeyDown(rl.KeyLeftControl) || rl.IsKeyDown(rl.KeyRightControl) {
		m |= surface.ModControl
	}
	if rl.IsKeyDown(rl.KeyLeftAlt) || rl.IsKeyDown(rl.KeyRightAlt) {
		m |= surface.ModAlt
	}
	if rl.IsKeyDown(rl.KeyLeftSuper) || rl.IsKeyDown(rl.KeyRightSuper) {
		m |= surface.ModSuper
	}
	return m
}

// apply maps a world point through the frame transform.
func apply(m mgl32.Mat4, x, y float32) rl.Vector2 {
	p := m.Mul4x1(mgl32.Vec4{x, y, 0, 1})
	return rl.Vector2{X: p.X(), Y: p.Y()}
}

// transformScale is the length of the transformed x axis, used to scale radii and line widths.
func transformScale(m mgl32.Mat4) float32 {
	return float32(math.Hypot(float64(m.At(0, 0)), float64(m.At(1, 0))))
}

func toColor(c []float32) rl.Color {
	return rl.NewColor(channel(c[0]), channel(c[1]), channel(c[2]), channel(c[3]))
}

func channel(v float32) uint8 {
	return uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
}
