package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// PopulationStats summarises the particle population at one generation.
type PopulationStats struct {
	Generation int64 `csv:"generation"`
	Count      int   `csv:"particles"`

	// Radius distribution
	RadiusMean float64 `csv:"radius_mean"`
	RadiusP10  float64 `csv:"radius_p10"`
	RadiusP50  float64 `csv:"radius_p50"`
	RadiusP90  float64 `csv:"radius_p90"`

	// Spatial distribution
	CentroidX float64 `csv:"centroid_x"`
	CentroidY float64 `csv:"centroid_y"`
	Spread    float64 `csv:"spread"` // RMS distance from the centroid
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Distribution calculates mean and percentiles from values.
func Distribution(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)
	return mean, p10, p50, p90
}

// Population computes the population summary of a captured snapshot.
func Population(generation int64, states []ParticleState) PopulationStats {
	s := PopulationStats{Generation: generation, Count: len(states)}
	if len(states) == 0 {
		return s
	}

	radii := make([]float64, len(states))
	xs := make([]float64, len(states))
	ys := make([]float64, len(states))
	for i, p := range states {
		radii[i] = float64(p.Radius)
		xs[i] = float64(p.X)
		ys[i] = float64(p.Y)
	}
	s.RadiusMean, s.RadiusP10, s.RadiusP50, s.RadiusP90 = Distribution(radii)

	s.CentroidX = stat.Mean(xs, nil)
	s.CentroidY = stat.Mean(ys, nil)
	var sq float64
	for i := range xs {
		dx, dy := xs[i]-s.CentroidX, ys[i]-s.CentroidY
		sq += dx*dx + dy*dy
	}
	s.Spread = math.Sqrt(sq / float64(len(xs)))
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s PopulationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("generation", s.Generation),
		slog.Int("particles", s.Count),
		slog.Float64("radius_mean", s.RadiusMean),
		slog.Float64("radius_p10", s.RadiusP10),
		slog.Float64("radius_p50", s.RadiusP50),
		slog.Float64("radius_p90", s.RadiusP90),
		slog.Float64("centroid_x", s.CentroidX),
		slog.Float64("centroid_y", s.CentroidY),
		slog.Float64("spread", s.Spread),
	)
}

// LogStats logs the population summary.
func (s PopulationStats) LogStats(logger *slog.Logger) {
	logger.Info("population",
		"generation", s.Generation,
		"particles", s.Count,
		"radius_mean", s.RadiusMean,
		"radius_p50", s.RadiusP50,
		"centroid_x", s.CentroidX,
		"centroid_y", s.CentroidY,
		"spread", s.Spread,
	)
}
