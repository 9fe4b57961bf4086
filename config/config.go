// Package config provides configuration loading and access for motes.
package config

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all runtime configuration.
type Config struct {
	Window    WindowConfig    `yaml:"window"`
	Engine    EngineConfig    `yaml:"engine"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Bouncing  BouncingConfig  `yaml:"bouncing"`
	Verlet    VerletConfig    `yaml:"verlet"`
	Solar     SolarConfig     `yaml:"solar"`
	Rigidbody RigidbodyConfig `yaml:"rigidbody"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WindowConfig holds surface settings.
type WindowConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Title      string `yaml:"title"`
	Vsync      bool   `yaml:"vsync"`
	Fullscreen bool   `yaml:"fullscreen"`
}

// EngineConfig holds scheduler settings.
type EngineConfig struct {
	Threads       int           `yaml:"threads"`  // 0 = GOMAXPROCS
	Capacity      int           `yaml:"capacity"` // maximum live particles
	DrawInterval  time.Duration `yaml:"draw_interval"`
	SimInterval   time.Duration `yaml:"sim_interval"` // 0 = unthrottled
	EventInterval time.Duration `yaml:"event_interval"`
	RequestQueue  int           `yaml:"request_queue"`
}

// TelemetryConfig holds performance logging settings.
type TelemetryConfig struct {
	PerfWindow  int           `yaml:"perf_window"`  // samples per phase
	LogInterval time.Duration `yaml:"log_interval"` // 0 = no periodic perf log
}

// BouncingConfig holds the bouncing balls demo parameters.
type BouncingConfig struct {
	Count       int     `yaml:"count"`
	MinRadius   float32 `yaml:"min_radius"`
	MaxRadius   float32 `yaml:"max_radius"`
	Gravity     float32 `yaml:"gravity"`     // px/s^2
	Restitution float32 `yaml:"restitution"` // velocity kept on wall bounce
	Wind        float32 `yaml:"wind"`        // peak noise force
	WindScale   float64 `yaml:"wind_scale"`  // noise frequency in 1/px
}

// VerletConfig holds the verlet demo parameters.
type VerletConfig struct {
	Count    int     `yaml:"count"`
	Radius   float32 `yaml:"radius"`
	Gravity  float32 `yaml:"gravity"`
	Substeps int     `yaml:"substeps"`
	Spawn    float32 `yaml:"spawn"` // particles spawned per second until Count
}

// SolarConfig holds the solar system demo parameters.
type SolarConfig struct {
	Bodies    int     `yaml:"bodies"`
	StarMass  float64 `yaml:"star_mass"`
	BodyMass  float64 `yaml:"body_mass"`
	G         float64 `yaml:"g"`
	Theta     float64 `yaml:"theta"` // Barnes-Hut opening angle
	Softening float64 `yaml:"softening"`
	MinOrbit  float32 `yaml:"min_orbit"`
	MaxOrbit  float32 `yaml:"max_orbit"`
}

// RigidbodyConfig holds the interactive rigid body demo parameters.
type RigidbodyConfig struct {
	Count      int     `yaml:"count"`
	MinRadius  float32 `yaml:"min_radius"`
	MaxRadius  float32 `yaml:"max_radius"`
	Gravity    float32 `yaml:"gravity"`
	SpawnBatch int     `yaml:"spawn_batch"` // particles added by the bulk spawn key
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Threads   int // resolved worker count
	WindowW32 float32
	WindowH32 float32
	SimDT32   float32 // SimInterval in seconds, or DrawInterval when unthrottled
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Window.Width <= 0 || c.Window.Height <= 0:
		return fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	case c.Engine.Capacity <= 0:
		return fmt.Errorf("engine capacity %d must be positive", c.Engine.Capacity)
	case c.Engine.Threads < 0:
		return fmt.Errorf("engine threads %d must not be negative", c.Engine.Threads)
	case c.Engine.DrawInterval <= 0:
		return fmt.Errorf("engine draw_interval %v must be positive", c.Engine.DrawInterval)
	case c.Engine.SimInterval < 0:
		return fmt.Errorf("engine sim_interval %v must not be negative", c.Engine.SimInterval)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Threads = c.Engine.Threads
	if c.Derived.Threads == 0 {
		c.Derived.Threads = runtime.GOMAXPROCS(0)
	}
	c.Derived.WindowW32 = float32(c.Window.Width)
	c.Derived.WindowH32 = float32(c.Window.Height)

	dt := c.Engine.SimInterval
	if dt == 0 {
		dt = c.Engine.DrawInterval
	}
	c.Derived.SimDT32 = float32(dt.Seconds())

	if c.Engine.EventInterval <= 0 {
		c.Engine.EventInterval = c.Engine.DrawInterval
	}
	if c.Engine.RequestQueue <= 0 {
		c.Engine.RequestQueue = 4
	}
	if c.Verlet.Substeps < 1 {
		c.Verlet.Substeps = 1
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Encode writes the configuration as YAML to w.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
