package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/motes/particle"
)

// ParticleState is one row of a particle snapshot.
type ParticleState struct {
	Index  int     `csv:"index"`
	X      float32 `csv:"x"`
	Y      float32 `csv:"y"`
	Radius float32 `csv:"radius"`
	RGBA   uint32  `csv:"rgba"`
}

// Capture copies the render-visible state of every particle in live.
func Capture[T particle.Particle](live []T) []ParticleState {
	states := make([]ParticleState, len(live))
	for i, p := range live {
		x, y := p.Position()
		states[i] = ParticleState{
			Index:  p.Index(),
			X:      x,
			Y:      y,
			Radius: p.Radius(),
			RGBA:   p.Color(),
		}
	}
	return states
}

// WriteSnapshot saves states as snapshot_<generation>.csv in the output directory.
// Returns the path it was written to, or "" when output is disabled.
func (om *OutputManager) WriteSnapshot(generation int64, states []ParticleState) (string, error) {
	if om == nil {
		return "", nil
	}

	path := filepath.Join(om.dir, fmt.Sprintf("snapshot_%d.csv", generation))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&states, f); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, f.Close()
}

// LoadSnapshot reads a snapshot written by WriteSnapshot.
func LoadSnapshot(path string) ([]ParticleState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer f.Close()

	var states []ParticleState
	if err := gocsv.UnmarshalFile(f, &states); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return states, nil
}
