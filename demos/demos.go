// Package demos holds the programs bundled with motes. Each demo is an engine App
// over its own particle type, configured from a section of config.Config.
package demos

import (
	"context"
	"time"

	"github.com/pthm-cable/motes/config"
	"github.com/pthm-cable/motes/engine"
	"github.com/pthm-cable/motes/particle"
)

// Palette shared by the demos.
const (
	Background uint32 = 0x222f3eff
	Violet     uint32 = 0xbf44fcff
	Blue       uint32 = 0x007accff
	Teal       uint32 = 0x00b894ff
	Sun        uint32 = 0xfdcb6eff
	Ghost      uint32 = 0x00b89488 // disabled bodies still being sized
)

// Demo is a runnable program.
type Demo struct {
	Name  string
	Short string
	Run   func(ctx context.Context, cfg *config.Config, opts engine.Options, limits Limits) error
}

// Limits bound a run. Zero fields are unlimited.
type Limits struct {
	MaxTicks int64
	Duration time.Duration
}

// halt builds the engine halt predicate, or nil when nothing is bounded.
func (l Limits) halt(generation func() int64) engine.Halt {
	if l.MaxTicks <= 0 && l.Duration <= 0 {
		return nil
	}
	return func(elapsed time.Duration) bool {
		if l.MaxTicks > 0 && generation() >= l.MaxTicks {
			return true
		}
		return l.Duration > 0 && elapsed >= l.Duration
	}
}

// All returns every demo in display order.
func All() []Demo {
	return []Demo{
		{Name: "bouncing", Short: "Balls under gravity and a perlin wind, bouncing off the window edges", Run: RunBouncing},
		{Name: "verlet", Short: "Verlet-integrated balls settling in a circular container", Run: RunVerlet},
		{Name: "solar", Short: "Bodies orbiting a star, with Barnes-Hut gravity", Run: RunSolar},
		{Name: "rigidbody", Short: "Interactive elastic collisions: right-drag to spawn, left-drag to pan, scroll to zoom", Run: RunRigidbody},
	}
}

// Lookup finds a demo by name.
func Lookup(name string) (Demo, bool) {
	for _, d := range All() {
		if d.Name == name {
			return d, true
		}
	}
	return Demo{}, false
}

// run creates the engine from cfg and blocks in Start.
func run[T particle.Particle](ctx context.Context, e *engine.Engine[T], cfg *config.Config, title string, limits Limits) error {
	err := e.Create(cfg.Window.Width, cfg.Window.Height, engine.CreateOptions{
		Capacity:   cfg.Engine.Capacity,
		Title:      title,
		Vsync:      cfg.Window.Vsync,
		Fullscreen: cfg.Window.Fullscreen,
	})
	if err != nil {
		return err
	}
	return e.Start(ctx, cfg.Engine.DrawInterval, cfg.Engine.SimInterval, limits.halt(e.Generation))
}

// withEngineConfig fills engine options the caller left unset from cfg.
func withEngineConfig(opts engine.Options, cfg *config.Config) engine.Options {
	if opts.Threads == 0 {
		opts.Threads = cfg.Derived.Threads
	}
	if opts.EventInterval == 0 {
		opts.EventInterval = cfg.Engine.EventInterval
	}
	if opts.RequestQueue == 0 {
		opts.RequestQueue = cfg.Engine.RequestQueue
	}
	return opts
}

// title combines the window title from cfg with a demo name.
func title(cfg *config.Config, name string) string {
	if cfg.Window.Title == "" {
		return name
	}
	return cfg.Window.Title + ": " + name
}

// parity colours particles alternately by index.
func parity(index int) uint32 {
	if index%2 == 0 {
		return Violet
	}
	return Blue
}
