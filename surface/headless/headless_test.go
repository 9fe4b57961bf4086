package headless

import (
	"errors"
	"testing"

	"github.com/pthm-cable/motes/surface"
)

func TestApplyBeforeOpen(t *testing.T) {
	s := New()
	if err := s.Apply(surface.Request{Kind: surface.RequestVsync}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestRequestsToggleState(t *testing.T) {
	s := New()
	if err := s.Open(surface.Config{Width: 640, Height: 480, Title: "a"}); err != nil {
		t.Fatal(err)
	}

	reqs := []surface.Request{
		{Kind: surface.RequestFullscreen},
		{Kind: surface.RequestVsync},
		{Kind: surface.RequestTitle, Title: "b"},
		{Kind: surface.RequestFullscreen},
	}
	for _, r := range reqs {
		if err := s.Apply(r); err != nil {
			t.Fatalf("Apply(%v): %v", r.Kind, err)
		}
	}

	fs, vsync, _, title := s.State()
	if fs {
		t.Error("fullscreen toggled twice should be off")
	}
	if !vsync {
		t.Error("vsync not toggled on")
	}
	if title != "b" {
		t.Errorf("expected title b, got %q", title)
	}
	if got := len(s.Requests()); got != 4 {
		t.Errorf("expected 4 recorded requests, got %d", got)
	}
}

func TestInjectUpdatesCursorAndSize(t *testing.T) {
	s := New()
	_ = s.Open(surface.Config{Width: 100, Height: 100})

	s.Inject(
		surface.Event{Kind: surface.EventMove, X: 12, Y: 34},
		surface.Event{Kind: surface.EventResize, Width: 200, Height: 150},
	)

	x, y := s.Cursor()
	if x != 12 || y != 34 {
		t.Errorf("cursor: got %v,%v", x, y)
	}
	w, h := s.Size()
	if w != 200 || h != 150 {
		t.Errorf("size: got %dx%d", w, h)
	}

	if evs := s.Poll(); len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs := s.Poll(); len(evs) != 0 {
		t.Errorf("Poll did not drain: %d left", len(evs))
	}
}

func TestDrawCopiesFrame(t *testing.T) {
	s := New()
	_ = s.Open(surface.Config{Width: 10, Height: 10, Capacity: 1})

	f := &surface.Frame{
		PosRadius: []float32{1, 2, 3, 0},
		Colors:    []float32{1, 1, 1, 1},
		Count:     1,
		Capacity:  1,
		Shapes:    []surface.Shape{{Vertices: []float32{0, 0, 1, 1}, Thickness: 2}},
	}
	s.Draw(f)
	f.PosRadius[0] = 99
	f.Shapes[0].Vertices[0] = 99

	last := s.LastFrame()
	if last.PosRadius[0] != 1 {
		t.Error("recorded frame aliases the caller's buffer")
	}
	if last.Shapes[0].Vertices[0] != 0 {
		t.Error("recorded shape aliases the caller's buffer")
	}
	if s.Frames() != 1 {
		t.Errorf("expected 1 frame, got %d", s.Frames())
	}
}

func TestCloseLifecycle(t *testing.T) {
	s := New()
	_ = s.Open(surface.Config{})
	if s.ShouldClose() {
		t.Fatal("new surface wants to close")
	}
	s.RequestClose()
	if !s.ShouldClose() {
		t.Error("RequestClose not reported")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !s.Closed() {
		t.Error("Closed not reported")
	}
	if err := s.SetCursorLocked(true); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen after close, got %v", err)
	}
}
