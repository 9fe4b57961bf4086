package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/motes/config"
	"github.com/pthm-cable/motes/demos"
	"github.com/pthm-cable/motes/engine"
	"github.com/pthm-cable/motes/surface"
	"github.com/pthm-cable/motes/surface/headless"
	"github.com/pthm-cable/motes/surface/rlsurface"
	"github.com/pthm-cable/motes/telemetry"
)

// flags holds the persistent CLI flags.
type flags struct {
	configPath string
	headless   bool
	seed       int64
	maxTicks   int64
	duration   time.Duration
	outputDir  string
	logFormat  string
	threads    int
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "motes",
		Short:        "Real-time particle simulations on a parallel scheduler",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	pf.BoolVar(&f.headless, "headless", false, "Run without a window")
	pf.Int64Var(&f.seed, "seed", 0, "RNG seed (0 = time-based)")
	pf.Int64Var(&f.maxTicks, "max-ticks", 0, "Stop after N generations (0 = unlimited)")
	pf.DurationVar(&f.duration, "duration", 0, "Stop after this long (0 = unlimited)")
	pf.StringVar(&f.outputDir, "output-dir", "", "Output directory for perf CSV and config snapshot")
	pf.StringVar(&f.logFormat, "log-format", "json", "Log format: json or text")
	pf.IntVar(&f.threads, "threads", 0, "Simulation workers (0 = config)")

	for _, d := range demos.All() {
		root.AddCommand(newDemoCmd(d, f))
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			return cfg.Encode(cmd.OutOrStdout())
		},
	}
	root.AddCommand(configCmd)

	return root
}

func newDemoCmd(d demos.Demo, f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   d.Name,
		Short: d.Short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), d, f, cmd.OutOrStdout())
		},
	}
}

func runDemo(ctx context.Context, d demos.Demo, f *flags, stdout io.Writer) error {
	if err := config.Init(f.configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Cfg()

	logger, err := newLogger(f.logFormat, stdout)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	seed := f.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	output, err := telemetry.NewOutputManager(f.outputDir)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	var surf surface.Surface
	if f.headless {
		surf = headless.New()
	} else {
		surf = rlsurface.New(true)
	}

	opts := engine.Options{
		Threads: f.threads,
		Seed:    seed,
		Logger:  logger.With("demo", d.Name),
		Surface: surf,
		Perf:    telemetry.NewPerf(cfg.Telemetry.PerfWindow),
		PerfLog: cfg.Telemetry.LogInterval,
		Output:  output,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting demo",
		"demo", d.Name,
		"seed", seed,
		"headless", f.headless,
		"max_ticks", f.maxTicks,
		"duration", f.duration,
		"output_dir", output.Dir(),
	)

	return d.Run(ctx, cfg, opts, demos.Limits{MaxTicks: f.maxTicks, Duration: f.duration})
}

func newLogger(format string, w io.Writer) (*slog.Logger, error) {
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, nil)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, nil)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
