package telemetry

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase names recorded by the engine.
const (
	PhaseSimulate = "simulate"
	PhaseCommit   = "commit"
	PhaseRender   = "render"
	PhaseEvents   = "events"
)

// Phases lists the engine phases in reporting order.
var Phases = []string{PhaseSimulate, PhaseCommit, PhaseRender, PhaseEvents}

// ring is a fixed-size window of duration samples in microseconds.
type ring struct {
	samples []float64
	next    int
	count   int
}

func (r *ring) add(v float64) {
	r.samples[r.next] = v
	r.next = (r.next + 1) % len(r.samples)
	if r.count < len(r.samples) {
		r.count++
	}
}

// Perf tracks per-phase timings over a rolling window.
// It is safe for concurrent use; the simulation and render loops record into it
// from different goroutines. A nil *Perf discards everything.
type Perf struct {
	mu         sync.Mutex
	windowSize int
	phases     map[string]*ring

	generations int64
	frames      int64

	// Frame timing
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerf creates a collector averaging over windowSize samples per phase.
func NewPerf(windowSize int) *Perf {
	if windowSize < 1 {
		windowSize = 60
	}
	return &Perf{
		windowSize: windowSize,
		phases:     make(map[string]*ring),
	}
}

// Record adds one sample for phase.
func (p *Perf) Record(phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.phases[phase]
	if !ok {
		r = &ring{samples: make([]float64, p.windowSize)}
		p.phases[phase] = r
	}
	r.add(float64(d.Microseconds()))
	if phase == PhaseCommit {
		p.generations++
	}
}

// Time starts timing phase and returns the function that records it.
//
//	defer perf.Time(telemetry.PhaseRender)()
func (p *Perf) Time(phase string) func() {
	if p == nil {
		return func() {}
	}
	start := time.Now()
	return func() { p.Record(phase, time.Since(start)) }
}

// RecordFrame records frame-to-frame timing for the render loop.
func (p *Perf) RecordFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
	p.frames++
}

// PhaseStats summarises one phase's window. Durations are in microseconds.
type PhaseStats struct {
	Count  int
	MeanUS float64
	StdUS  float64
	P50US  float64
	P90US  float64
	MaxUS  float64
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Phases      map[string]PhaseStats
	Generations int64
	Frames      int64

	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *Perf) Stats() PerfStats {
	out := PerfStats{Phases: make(map[string]PhaseStats)}
	if p == nil {
		return out
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	out.Generations = p.generations
	out.Frames = p.frames
	out.FrameDuration = p.frameDuration
	if p.frameDuration > 0 {
		out.FPS = float64(time.Second) / float64(p.frameDuration)
	}

	for name, r := range p.phases {
		if r.count == 0 {
			continue
		}
		xs := slices.Clone(r.samples[:r.count])
		slices.Sort(xs)

		ps := PhaseStats{
			Count:  r.count,
			MeanUS: stat.Mean(xs, nil),
			P50US:  stat.Quantile(0.5, stat.Empirical, xs, nil),
			P90US:  stat.Quantile(0.9, stat.Empirical, xs, nil),
			MaxUS:  xs[len(xs)-1],
		}
		if r.count > 1 {
			ps.StdUS = stat.StdDev(xs, nil)
		}
		if math.IsNaN(ps.StdUS) {
			ps.StdUS = 0
		}
		out.Phases[name] = ps
	}
	return out
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats(logger *slog.Logger) {
	attrs := []any{
		"generations", s.Generations,
		"frames", s.Frames,
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}

	for _, phase := range Phases {
		if ps, ok := s.Phases[phase]; ok {
			attrs = append(attrs,
				phase+"_mean_us", int64(ps.MeanUS),
				phase+"_p90_us", int64(ps.P90US),
			)
		}
	}

	logger.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("generations", s.Generations),
		slog.Int64("frames", s.Frames),
	}

	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}

	for _, phase := range Phases {
		if ps, ok := s.Phases[phase]; ok {
			attrs = append(attrs, slog.Group(phase,
				slog.Float64("mean_us", ps.MeanUS),
				slog.Float64("std_us", ps.StdUS),
				slog.Float64("p50_us", ps.P50US),
				slog.Float64("p90_us", ps.P90US),
				slog.Float64("max_us", ps.MaxUS),
			))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Generation     int64   `csv:"generation"`
	Frames         int64   `csv:"frames"`
	Particles      int     `csv:"particles"`
	FPS            float64 `csv:"fps"`
	SimulateMeanUS float64 `csv:"simulate_mean_us"`
	SimulateP90US  float64 `csv:"simulate_p90_us"`
	CommitMeanUS   float64 `csv:"commit_mean_us"`
	RenderMeanUS   float64 `csv:"render_mean_us"`
	RenderP90US    float64 `csv:"render_p90_us"`
	EventsMeanUS   float64 `csv:"events_mean_us"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(particles int) PerfStatsCSV {
	return PerfStatsCSV{
		Generation:     s.Generations,
		Frames:         s.Frames,
		Particles:      particles,
		FPS:            s.FPS,
		SimulateMeanUS: s.Phases[PhaseSimulate].MeanUS,
		SimulateP90US:  s.Phases[PhaseSimulate].P90US,
		CommitMeanUS:   s.Phases[PhaseCommit].MeanUS,
		RenderMeanUS:   s.Phases[PhaseRender].MeanUS,
		RenderP90US:    s.Phases[PhaseRender].P90US,
		EventsMeanUS:   s.Phases[PhaseEvents].MeanUS,
	}
}
