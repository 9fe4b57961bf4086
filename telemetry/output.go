package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/motes/config"
)

// OutputManager writes run output (perf and population rows, snapshots, effective
// config) into a directory.
type OutputManager struct {
	dir       string
	perfFile  *os.File
	statsFile *os.File

	perfHeaderWritten  bool
	statsHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}

	sf, err := os.Create(filepath.Join(dir, "stats.csv"))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating stats.csv: %w", err)
	}

	return &OutputManager{dir: dir, perfFile: f, statsFile: sf}, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WritePerf appends a performance row to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, particles int) error {
	if om == nil {
		return nil
	}

	records := []PerfStatsCSV{stats.ToCSV(particles)}

	if !om.perfHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf: %w", err)
		}
	}

	return nil
}

// WriteStats appends a population row to stats.csv.
func (om *OutputManager) WriteStats(stats PopulationStats) error {
	if om == nil {
		return nil
	}

	records := []PopulationStats{stats}
	write := gocsv.MarshalWithoutHeaders
	if !om.statsHeaderWritten {
		write = gocsv.Marshal
	}
	if err := write(records, om.statsFile); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	om.statsHeaderWritten = true
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var errs []error
	for _, f := range []*os.File{om.perfFile, om.statsFile} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}
