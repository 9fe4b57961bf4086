// Package surface defines the contract between the engine and whatever owns the window,
// input devices and GPU. The engine never calls a graphics API directly.
package surface

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Config describes the surface to open.
type Config struct {
	Width, Height int
	Title         string
	// Capacity is the number of particle slots every Frame carries.
	Capacity   int
	Vsync      bool
	Fullscreen bool
}

// EventKind identifies an input event.
type EventKind uint8

const (
	EventScroll EventKind = iota + 1
	EventClick
	EventMove
	EventText
	EventKey
	EventResize
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventScroll:
		return "scroll"
	case EventClick:
		return "click"
	case EventMove:
		return "move"
	case EventText:
		return "text"
	case EventKey:
		return "key"
	case EventResize:
		return "resize"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Mouse buttons.
const (
	ButtonLeft = iota
	ButtonRight
	ButtonMiddle
)

// Key actions.
const (
	Release = iota
	Press
	Repeat
)

// Modifier bits.
const (
	ModShift = 1 << iota
	ModControl
	ModAlt
	ModSuper
)

// Key codes used by the bundled programs. Values follow the GLFW key table,
// which raylib shares.
const (
	KeySpace  = 32
	KeyC      = 67
	KeyF      = 70
	KeyM      = 77
	KeyR      = 82
	KeyV      = 86
	KeyEscape = 256
	KeyF11    = 300
)

// Event is a single input event. Fields not relevant to Kind are zero.
//
//	scroll: DX, DY wheel offsets
//	click:  Button, Action, Mods
//	move:   X, Y cursor position in screen pixels
//	text:   Rune
//	key:    Key, Scancode, Action, Mods
//	resize: Width, Height
type Event struct {
	Kind     EventKind
	DX, DY   float64
	X, Y     float64
	Button   int
	Key      int
	Scancode int
	Action   int
	Mods     int
	Rune     rune
	Width    int
	Height   int
}

// RequestKind identifies a one-shot request applied by the render thread.
type RequestKind uint8

const (
	RequestFullscreen RequestKind = iota + 1
	RequestVsync
	RequestTitle
)

func (k RequestKind) String() string {
	switch k {
	case RequestFullscreen:
		return "fullscreen"
	case RequestVsync:
		return "vsync"
	case RequestTitle:
		return "title"
	default:
		return "unknown"
	}
}

// Request is a window-state change that must run where the graphics context lives.
type Request struct {
	Kind  RequestKind
	Title string
}

// Shape is one drawable line strip with per-vertex colours.
// Vertices holds x, y pairs; Colors holds r, g, b, a per vertex.
type Shape struct {
	Vertices  []float32
	Colors    []float32
	Thickness float32
}

// Frame is everything the surface needs to draw one frame.
// PosRadius and Colors hold Capacity slots of 4 floats each; only the first Count are live.
type Frame struct {
	PosRadius  []float32
	Colors     []float32
	Count      int
	Capacity   int
	Transform  mgl32.Mat4
	Background [4]float32
	Shapes     []Shape
}

// Surface owns the window, its input devices and the graphics context.
// Poll and Draw are called from the engine; implementations must tolerate
// them being called from different goroutines.
type Surface interface {
	Open(cfg Config) error
	Size() (w, h int)
	Cursor() (x, y float64)
	Poll() []Event
	ShouldClose() bool
	Draw(f *Frame)
	Apply(req Request) error
	SetCursorLocked(locked bool) error
	Close() error
}
