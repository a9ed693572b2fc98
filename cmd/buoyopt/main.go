package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/buoyopt/internal/config"
	"github.com/san-kum/buoyopt/internal/logger"
	"github.com/san-kum/buoyopt/internal/storage"
	"github.com/san-kum/buoyopt/internal/viz"
	"github.com/san-kum/buoyopt/internal/wave"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	theme      string

	// optimize
	live      bool
	noFigure  bool
	workers   int
	seed      int64
	strategy  string
	maxEvals  int
	maxGens   int
	accelMax  float64
	withPlots bool

	// simulate
	mass    float64
	damping float64

	// synth
	amplitude float64
	period    float64
	duration  float64
	sampleDt  float64

	// scan
	gridPoints int

	// montecarlo
	trials     int
	ampSpread  float64
	periodSprd float64
	trialsSeed int64
)

// main registers the buoyopt commands and exits with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "buoyopt",
		Short:         "wave energy buoy heave simulation and design optimization",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			viz.SetTheme(theme)
			level := logLevel
			if level == "" {
				level = "info"
			}
			return logger.Init(level, false)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", "", "run storage directory (default from config: .buoyopt)")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "start from a named preset")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&theme, "theme", "ocean", "terminal colour theme")

	optimizeCmd := &cobra.Command{
		Use:   "optimize [wave.csv]",
		Short: "search mass and PTO damping for maximum mean power",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().BoolVar(&live, "live", false, "show a live progress view")
	optimizeCmd.Flags().BoolVar(&noFigure, "no-figure", false, "skip the results figure")
	optimizeCmd.Flags().IntVar(&workers, "workers", 0, "parallel evaluations (0 keeps config)")
	optimizeCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 keeps config)")
	optimizeCmd.Flags().StringVar(&strategy, "strategy", "", "differential_evolution or grid_search")
	optimizeCmd.Flags().IntVar(&maxEvals, "max-evals", -1, "evaluation budget (0 = unlimited)")
	optimizeCmd.Flags().IntVar(&maxGens, "max-gens", 0, "generation budget (0 keeps config)")
	optimizeCmd.Flags().Float64Var(&accelMax, "max-accel", 0, "peak acceleration limit in m/s² (0 keeps config)")

	simulateCmd := &cobra.Command{
		Use:   "simulate [wave.csv]",
		Short: "simulate one buoy design",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulate,
	}
	simulateCmd.Flags().Float64Var(&mass, "mass", 0, "buoy mass in kg (default: centre of mass bounds)")
	simulateCmd.Flags().Float64Var(&damping, "damping", 0, "PTO damping in N·s/m (default: centre of damping bounds)")
	simulateCmd.Flags().BoolVar(&noFigure, "no-figure", false, "skip the results figure")
	simulateCmd.Flags().BoolVar(&withPlots, "plot", false, "print terminal plots of the trajectory")

	synthCmd := &cobra.Command{
		Use:   "synth [out.csv]",
		Short: "write a regular sinusoidal wave record (stdout when no file given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSynth,
	}
	synthCmd.Flags().Float64Var(&amplitude, "amplitude", -1, "wave amplitude in m")
	synthCmd.Flags().Float64Var(&period, "period", 0, "wave period in s")
	synthCmd.Flags().Float64Var(&duration, "duration", 0, "record length in s")
	synthCmd.Flags().Float64Var(&sampleDt, "dt", 0, "sample spacing in s")

	spectrumCmd := &cobra.Command{
		Use:   "spectrum [wave.csv]",
		Short: "wave elevation power spectrum and peak frequency",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSpectrum,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [wave.csv]",
		Short: "evaluate a regular grid over the mass and damping bounds",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}
	scanCmd.Flags().IntVar(&gridPoints, "points", 0, "grid points per axis (0 keeps config)")
	scanCmd.Flags().IntVar(&workers, "workers", 0, "parallel evaluations (0 keeps config)")

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run a scripted scenario of simulations and searches",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "test one design against randomly perturbed regular waves",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	monteCarloCmd.Flags().Float64Var(&mass, "mass", 0, "buoy mass in kg (default: centre of mass bounds)")
	monteCarloCmd.Flags().Float64Var(&damping, "damping", 0, "PTO damping in N·s/m (default: centre of damping bounds)")
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of perturbed waves")
	monteCarloCmd.Flags().Float64Var(&ampSpread, "amplitude-spread", 0.2, "relative amplitude perturbation")
	monteCarloCmd.Flags().Float64Var(&periodSprd, "period-spread", 0.1, "relative period perturbation")
	monteCarloCmd.Flags().Int64Var(&trialsSeed, "seed", 1, "random seed (0 = time based)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id] [out.csv]",
		Short: "export a run trajectory to CSV (stdout when no file given)",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  exportCSV,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Printf("  %-12s %s\n", name, config.Presets[name].Description)
			}
			return nil
		},
	}

	rootCmd.AddCommand(optimizeCmd, simulateCmd, synthCmd, spectrumCmd, scanCmd, batchCmd, monteCarloCmd, listCmd, showCmd, exportCSVCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig resolves preset, then file, then environment, then flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	base := config.DefaultConfig()
	if preset != "" {
		base = config.GetPreset(preset)
		if base == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	}

	cfg, err := config.LoadOver(configFile, base)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("data") {
		cfg.Output.Dir = dataDir
	}
	if !cmd.Flags().Changed("log-level") && cfg.Output.LogLevel != "" {
		if err := logger.Init(cfg.Output.LogLevel, false); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadWave reads the CSV named by args, or synthesises the configured
// regular wave when none is given.
func loadWave(cfg *config.Config, args []string) (wave.Record, string, error) {
	if len(args) == 0 {
		s := cfg.Wave.Synthetic
		rec, err := wave.Sinusoid(s.Amplitude, s.Period, s.Duration, s.Dt)
		if err != nil {
			return wave.Record{}, "", err
		}
		source := fmt.Sprintf("synthetic A=%gm T=%gs %gs", s.Amplitude, s.Period, s.Duration)
		logger.Log.Infow("using synthetic wave", "amplitude", s.Amplitude, "period", s.Period, "duration", s.Duration)
		return rec, source, nil
	}

	rec, dropped, err := wave.LoadCSV(args[0], cfg.CSVOptions())
	if err != nil {
		return wave.Record{}, "", err
	}
	t0, t1 := rec.Span()
	logger.Log.Infow("loaded wave record",
		"path", args[0],
		"samples", rec.Len(),
		"dropped", dropped,
		"t0", t0,
		"t1", t1,
	)
	return rec, args[0], nil
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	st := storage.New(cfg.Output.Dir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
