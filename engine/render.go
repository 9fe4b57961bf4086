package engine

import (
	"github.com/pthm-cable/motes/telemetry"
)

// render assembles one frame and hands it to the surface. Only one goroutine renders.
func (e *Engine[T]) render() {
	stop := e.perf.Time(telemetry.PhaseRender)
	defer stop()

	e.applyRequests()

	n := e.store.Fill(&e.buf)

	f := &e.frame
	f.PosRadius = e.buf.PosRadius
	f.Colors = e.buf.Colors
	f.Count = n

	e.viewMu.RLock()
	f.Transform = e.transform
	f.Background = e.background
	e.viewMu.RUnlock()

	f.Shapes = e.shapes.Strips(f.Shapes[:0])

	e.surf.Draw(f)
	e.perf.RecordFrame()
}
