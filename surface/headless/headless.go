// Package headless implements an in-memory surface with no window.
// It records what the engine draws and replays injected input, which is
// enough to run simulations on servers and to drive engine tests.
package headless

import (
	"errors"
	"sync"

	"github.com/pthm-cable/motes/surface"
)

// ErrNotOpen is returned for requests made before Open or after Close.
var ErrNotOpen = errors.New("headless surface not open")

// Surface is a windowless surface.Surface.
type Surface struct {
	mu sync.Mutex

	cfg        surface.Config
	open       bool
	closed     bool
	closeReq   bool
	width      int
	height     int
	cursorX    float64
	cursorY    float64
	locked     bool
	fullscreen bool
	vsync      bool
	title      string

	pending  []surface.Event
	frames   int
	last     surface.Frame
	requests []surface.Request
}

// New creates a closed headless surface.
func New() *Surface {
	return &Surface{}
}

func (s *Surface) Open(cfg surface.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.width = cfg.Width
	s.height = cfg.Height
	s.title = cfg.Title
	s.vsync = cfg.Vsync
	s.fullscreen = cfg.Fullscreen
	s.open = true
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

// Poll returns and clears the injected events.
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
	return s.closeReq
}

// Draw records a deep copy of the frame.
func (s *Surface) Draw(f *surface.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.last.PosRadius = append(s.last.PosRadius[:0], f.PosRadius...)
	s.last.Colors = append(s.last.Colors[:0], f.Colors...)
	s.last.Count = f.Count
	s.last.Capacity = f.Capacity
	s.last.Transform = f.Transform
	s.last.Background = f.Background
	s.last.Shapes = s.last.Shapes[:0]
	for _, sh := range f.Shapes {
		s.last.Shapes = append(s.last.Shapes, surface.Shape{
			Vertices:  append([]float32(nil), sh.Vertices...),
			Colors:    append([]float32(nil), sh.Colors...),
			Thickness: sh.Thickness,
		})
	}
}

func (s *Surface) Apply(req surface.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.closed {
		return ErrNotOpen
	}
	switch req.Kind {
	case surface.RequestFullscreen:
		s.fullscreen = !s.fullscreen
	case surface.RequestVsync:
		s.vsync = !s.vsync
	case surface.RequestTitle:
		s.title = req.Title
	}
	s.requests = append(s.requests, req)
	return nil
}

func (s *Surface) SetCursorLocked(locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open || s.closed {
		return ErrNotOpen
	}
	s.locked = locked
	return nil
}

func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.open = false
	return nil
}

// Inject queues events for the next Poll. Move events also update the cursor
// and resize events the framebuffer size, as a real window would.
func (s *Surface) Inject(evs ...surface.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range evs {
		switch ev.Kind {
		case surface.EventMove:
			s.cursorX, s.cursorY = ev.X, ev.Y
		case surface.EventResize:
			s.width, s.height = ev.Width, ev.Height
		}
	}
	s.pending = append(s.pending, evs...)
}

// RequestClose makes ShouldClose report true, like a user closing the window.
func (s *Surface) RequestClose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeReq = true
}

// Frames returns the number of Draw calls.
func (s *Surface) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// LastFrame returns a copy of the most recently drawn frame.
func (s *Surface) LastFrame() surface.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.last
	f.PosRadius = append([]float32(nil), s.last.PosRadius...)
	f.Colors = append([]float32(nil), s.last.Colors...)
	f.Shapes = append([]surface.Shape(nil), s.last.Shapes...)
	return f
}

// Requests returns the requests applied so far, oldest first.
func (s *Surface) Requests() []surface.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]surface.Request(nil), s.requests...)
}

// State reports the window flags toggled by requests.
func (s *Surface) State() (fullscreen, vsync, cursorLocked bool, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen, s.vsync, s.locked, s.title
}

// Closed reports whether Close has been called.
func (s *Surface) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
