package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/motes/store"
	"github.com/pthm-cable/motes/surface"
	"github.com/pthm-cable/motes/telemetry"
)

// Start runs the engine until the window closes, halt reports true, ctx is cancelled
// or a hook panics. It blocks, joins every loop before returning and runs the close
// hook exactly once. A stop requested by the window, halt or ctx returns nil. A panic
// in the close hook is returned as a *WorkerPanicError when nothing failed before it.
//
// With one thread and drawInterval == simInterval a single loop ticks, draws and polls
// input. Otherwise simulation and rendering get their own goroutines and the calling
// goroutine polls input every Options.EventInterval. A simInterval of zero steps the
// simulation as fast as it can.
//
// Each frame copies the store into the render buffers under the store's exclusive
// lock. The copy waits for a running generation and a generation waits for the copy,
// so the frame copy never overlaps Simulate or Update. Drawing itself happens after
// the lock is released.
func (e *Engine[T]) Start(ctx context.Context, drawInterval, simInterval time.Duration, halt Halt) (err error) {
	if !e.ready.Load() {
		return ErrNotReady
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if serr := e.shutdown(); err == nil {
			err = serr
		}
	}()

	e.started.Store(time.Now().UnixNano())
	single := e.opts.Threads == 1 && drawInterval == simInterval

	e.log.Info("engine_started",
		"draw_interval", drawInterval,
		"sim_interval", simInterval,
		"threads", e.opts.Threads,
		"single_loop", single,
	)

	if single {
		return e.runSingle(ctx, drawInterval, halt)
	}
	return e.runDecoupled(ctx, drawInterval, simInterval, halt)
}

// Close stops a running engine, or releases a created engine that was never started.
func (e *Engine[T]) Close() {
	e.closing.Store(true)
	if !e.running.Load() {
		_ = e.shutdown()
	}
}

func (e *Engine[T]) runSingle(ctx context.Context, interval time.Duration, halt Halt) error {
	nextLog := time.Now().Add(e.opts.PerfLog)
	for {
		if stop, err := e.halted(ctx, halt); stop || err != nil {
			return err
		}
		if err := e.pollEvents(); err != nil {
			return err
		}
		if e.closing.Load() {
			return nil
		}
		if err := e.Tick(ctx); err != nil {
			return ignoreCancel(ctx, err)
		}
		e.render()
		nextLog = e.maybeLogPerf(nextLog)

		if !sleep(ctx, interval) {
			return nil
		}
	}
}

func (e *Engine[T]) runDecoupled(ctx context.Context, drawInterval, simInterval time.Duration, halt Halt) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return e.simLoop(gctx, simInterval, halt) })
	g.Go(func() error { return e.renderLoop(gctx, drawInterval) })

	evErr := e.eventLoop(gctx)

	e.closing.Store(true)
	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	return evErr
}

// simLoop steps generations until halted.
func (e *Engine[T]) simLoop(ctx context.Context, interval time.Duration, halt Halt) error {
	for {
		stop, err := e.halted(ctx, halt)
		if err != nil {
			return err
		}
		if stop {
			e.closing.Store(true)
			return nil
		}
		if err := e.Tick(ctx); err != nil {
			return ignoreCancel(ctx, err)
		}
		if !sleep(ctx, interval) {
			return nil
		}
	}
}

// renderLoop draws at a fixed interval until closing.
func (e *Engine[T]) renderLoop(ctx context.Context, interval time.Duration) error {
	for !e.closing.Load() {
		e.render()
		if !sleep(ctx, interval) {
			return nil
		}
	}
	return nil
}

// eventLoop polls input on the calling goroutine until closing.
func (e *Engine[T]) eventLoop(ctx context.Context) error {
	nextLog := time.Now().Add(e.opts.PerfLog)
	for {
		if err := e.pollEvents(); err != nil {
			return err
		}
		if e.closing.Load() {
			return nil
		}
		nextLog = e.maybeLogPerf(nextLog)
		if !sleep(ctx, e.opts.EventInterval) {
			return nil
		}
	}
}

// Tick runs exactly one generation: Simulate on every worker over the current snapshot,
// the barrier, then Update and the snapshot refresh. With an empty snapshot neither hook
// runs but the generation still counts.
func (e *Engine[T]) Tick(ctx context.Context) error {
	if !e.ready.Load() {
		return ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	elapsed := e.Elapsed()

	var simErr error
	stop := e.perf.Time(telemetry.PhaseSimulate)
	ran := e.store.Simulate(func(snapshot []T) {
		simErr = e.sched.generation(snapshot, elapsed)
	})
	stop()
	if simErr != nil {
		return simErr
	}

	if ran {
		var updErr error
		stop = e.perf.Time(telemetry.PhaseCommit)
		e.store.Commit(func(tx *store.Tx[T]) {
			if u, ok := e.app.(Updater[T]); ok {
				updErr = e.update(u, tx, elapsed)
			}
		})
		stop()
		if updErr != nil {
			return updErr
		}
	}

	e.generation.Add(1)
	return nil
}

func (e *Engine[T]) update(u Updater[T], tx *store.Tx[T], elapsed time.Duration) (err error) {
	defer recoverHook(0, "Update", e.log, &err)
	u.Update(tx, elapsed)
	return nil
}

// halted reports whether the run should stop before the next generation.
func (e *Engine[T]) halted(ctx context.Context, halt Halt) (stop bool, err error) {
	if ctx.Err() != nil || e.closing.Load() {
		return true, nil
	}
	if halt == nil {
		return false, nil
	}
	err = e.guard("Halt", func() error {
		stop = halt(e.Elapsed())
		return nil
	})
	return stop, err
}

// pollEvents refreshes the framebuffer size, dispatches pending input and notices a
// close request from the window.
func (e *Engine[T]) pollEvents() error {
	stop := e.perf.Time(telemetry.PhaseEvents)
	defer stop()

	w, h := e.surf.Size()
	e.width.Store(int64(w))
	e.height.Store(int64(h))

	for _, ev := range e.surf.Poll() {
		if err := e.guard(ev.Kind.String()+" handler", func() error { e.dispatch(ev); return nil }); err != nil {
			return err
		}
	}

	if e.surf.ShouldClose() {
		e.closing.Store(true)
	}
	return nil
}

func (e *Engine[T]) dispatch(ev surface.Event) {
	switch ev.Kind {
	case surface.EventScroll:
		if h, ok := e.app.(ScrollHandler); ok {
			h.OnScroll(ev.DX, ev.DY)
		}
	case surface.EventClick:
		if h, ok := e.app.(ClickHandler); ok {
			h.OnClick(ev.Button, ev.Action, ev.Mods)
		}
	case surface.EventMove:
		if h, ok := e.app.(MoveHandler); ok {
			h.OnMove(ev.X, ev.Y)
		}
	case surface.EventText:
		if h, ok := e.app.(TextHandler); ok {
			h.OnText(ev.Rune)
		}
	case surface.EventKey:
		if h, ok := e.app.(KeyHandler); ok {
			h.OnKey(ev.Key, ev.Scancode, ev.Action, ev.Mods)
		}
	case surface.EventResize:
		e.width.Store(int64(ev.Width))
		e.height.Store(int64(ev.Height))
		if h, ok := e.app.(ResizeHandler); ok {
			h.OnResize(ev.Width, ev.Height)
		}
	case surface.EventClose:
		e.closing.Store(true)
	}
}

// maybeLogPerf logs the perf and population summaries once next has passed and returns
// the next deadline.
func (e *Engine[T]) maybeLogPerf(next time.Time) time.Time {
	if e.opts.PerfLog <= 0 || e.perf == nil || time.Now().Before(next) {
		return next
	}
	stats := e.perf.Stats()
	stats.LogStats(e.log)
	if err := e.opts.Output.WritePerf(stats, e.Len()); err != nil {
		e.log.Warn("writing perf row", "error", err)
	}

	var pop telemetry.PopulationStats
	e.store.Read(func(live []T) {
		pop = telemetry.Population(e.Generation(), telemetry.Capture(live))
	})
	pop.LogStats(e.log)
	if err := e.opts.Output.WriteStats(pop); err != nil {
		e.log.Warn("writing stats row", "error", err)
	}
	return time.Now().Add(e.opts.PerfLog)
}

// shutdown stops the workers, runs the close hook and closes the surface, once.
// It returns the close hook's panic, if any; later calls return nil.
func (e *Engine[T]) shutdown() error {
	var hookErr error
	e.closeOnce.Do(func() {
		e.closing.Store(true)

		if c, ok := e.app.(Closer); ok && e.ready.Load() {
			hookErr = e.guard("OnClose", func() error { c.OnClose(); return nil })
		}

		e.tickMu.Lock()
		e.sched.stopWorkers()
		e.ready.Store(false)
		e.tickMu.Unlock()

		if err := e.surf.Close(); err != nil {
			e.log.Warn("closing surface", "error", err)
		}

		particles := 0
		if e.store != nil {
			particles = e.store.Len()
		}
		e.log.Info("engine_stopped",
			"generation", e.generation.Load(),
			"particles", particles,
			"elapsed", e.Elapsed(),
		)
	})
	return hookErr
}

// sleep waits for d or until ctx is done, reporting whether the caller should continue.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ignoreCancel treats a cancelled context as a clean stop.
func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil && err == ctx.Err() {
		return nil
	}
	return err
}
