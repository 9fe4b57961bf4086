package engine

import (
	"fmt"

	"github.com/pthm-cable/motes/surface"
)

// Request queues a window-state change for the render loop.
// It never blocks: a full queue returns ErrRequestDropped.
func (e *Engine[T]) Request(req surface.Request) error {
	select {
	case e.requests <- req:
		return nil
	default:
		e.log.Warn("request dropped", "kind", req.Kind.String(), "queue", cap(e.requests))
		return fmt.Errorf("%s: %w", req.Kind, ErrRequestDropped)
	}
}

// ToggleFullscreen requests a switch between windowed and fullscreen.
func (e *Engine[T]) ToggleFullscreen() error {
	return e.Request(surface.Request{Kind: surface.RequestFullscreen})
}

// ToggleVsync requests a switch of vertical sync.
func (e *Engine[T]) ToggleVsync() error {
	return e.Request(surface.Request{Kind: surface.RequestVsync})
}

// SetTitle requests a new window title.
func (e *Engine[T]) SetTitle(title string) error {
	return e.Request(surface.Request{Kind: surface.RequestTitle, Title: title})
}

// applyRequests forwards every pending request to the surface, oldest first.
func (e *Engine[T]) applyRequests() {
	for {
		select {
		case req := <-e.requests:
			if err := e.surf.Apply(req); err != nil {
				e.log.Warn("request failed", "kind", req.Kind.String(), "error", err)
			}
		default:
			return
		}
	}
}
