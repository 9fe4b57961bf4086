package engine

import (
	"time"

	"github.com/pthm-cable/motes/particle"
	"github.com/pthm-cable/motes/store"
)

// App is the user simulation. It is the only required hook.
//
// Simulate is called once per generation on every worker with a non-empty share of
// the snapshot. snapshot is the whole stable snapshot for reading neighbours; slice is
// this worker's span of it. Particles are updated in place through their handles.
// Simulate runs under the shared lock and must not call engine methods that touch the
// store (Add, Remove, Len, Particles, Read, Exclusive and friends). Generation, Elapsed,
// Width, Height and Rand are safe.
type App[T particle.Particle] interface {
	Simulate(snapshot, slice []T, elapsed time.Duration)
}

// Initializer runs once at the end of Create, after the initial population exists.
type Initializer[T particle.Particle] interface {
	Init(e *Engine[T]) error
}

// Updater runs once per generation after the simulate barrier, with exclusive access.
// Membership changes made through tx are visible to the next generation.
type Updater[T particle.Particle] interface {
	Update(tx *store.Tx[T], elapsed time.Duration)
}

// ScrollHandler receives mouse wheel offsets.
// Input hooks run on the goroutine that called Start and may use the full engine API.
type ScrollHandler interface {
	OnScroll(dx, dy float64)
}

// ClickHandler receives mouse button presses and releases.
type ClickHandler interface {
	OnClick(button, action, mods int)
}

// MoveHandler receives the cursor position in screen pixels.
type MoveHandler interface {
	OnMove(x, y float64)
}

// TextHandler receives typed characters.
type TextHandler interface {
	OnText(r rune)
}

// KeyHandler receives key presses, repeats and releases.
type KeyHandler interface {
	OnKey(key, scancode, action, mods int)
}

// ResizeHandler receives the new framebuffer size.
type ResizeHandler interface {
	OnResize(width, height int)
}

// Closer runs exactly once when the engine shuts down, before the surface is closed.
type Closer interface {
	OnClose()
}

// Halt reports whether the run should stop. It is checked before every generation.
// A nil Halt runs until the window closes or the context is cancelled.
type Halt func(elapsed time.Duration) bool

// HaltWhen adapts a predicate that ignores elapsed time.
func HaltWhen(fn func() bool) Halt {
	return func(time.Duration) bool { return fn() }
}

// HaltAfter stops once d has elapsed.
func HaltAfter(d time.Duration) Halt {
	return func(elapsed time.Duration) bool { return elapsed >= d }
}
