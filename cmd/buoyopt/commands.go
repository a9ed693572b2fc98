package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/buoyopt/internal/analysis"
	"github.com/san-kum/buoyopt/internal/config"
	"github.com/san-kum/buoyopt/internal/experiment"
	"github.com/san-kum/buoyopt/internal/export"
	"github.com/san-kum/buoyopt/internal/logger"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/storage"
	"github.com/san-kum/buoyopt/internal/viz"
	"github.com/san-kum/buoyopt/internal/wave"
)

const spectrumDt = 0.1

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("workers") && workers > 0 {
		cfg.Optimizer.Workers = workers
	}
	if f.Changed("seed") {
		cfg.Optimizer.Seed = seed
	}
	if f.Changed("strategy") {
		cfg.Optimizer.Strategy = strategy
	}
	if f.Changed("max-evals") && maxEvals >= 0 {
		cfg.Optimizer.MaxEvaluations = maxEvals
	}
	if f.Changed("max-gens") && maxGens > 0 {
		cfg.Optimizer.MaxGenerations = maxGens
	}
	if f.Changed("max-accel") && accelMax > 0 {
		cfg.Constraints.MaxAcceleration = accelMax
	}

	rec, source, err := loadWave(cfg, args)
	if err != nil {
		return err
	}
	exp, err := experiment.Setup(cfg, rec)
	if err != nil {
		return err
	}
	search, err := experiment.NewRegistry().GetStrategy(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Log.Infow("starting optimization",
		"strategy", cfg.Optimizer.Strategy,
		"mass_bounds", cfg.Optimizer.Mass,
		"damping_bounds", cfg.Optimizer.Damping,
		"max_acceleration", cfg.Constraints.MaxAcceleration,
		"seed", cfg.Optimizer.Seed,
	)
	start := time.Now()

	var out optim.Outcome
	if live {
		out, err = optimizeLive(ctx, cancel, cfg, search, exp)
	} else {
		search.SetObserver(func(g optim.GenerationStats) {
			logger.Log.Infow("generation",
				"generation", g.Generation,
				"evaluations", g.Evaluations,
				"best_score", g.BestScore,
				"feasible", g.Feasible,
			)
		})
		out, err = search.Optimize(ctx, exp)
	}
	if err != nil {
		return err
	}
	logger.Log.Infow("optimization finished", "elapsed", time.Since(start).String(), "evaluations", out.Evaluations)

	fmt.Println(viz.RenderOutcome(out))

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	record := storage.Record{Kind: "optimize", Source: source, Config: cfg, Outcome: &out}

	var run *experiment.Run
	if out.Best.Status == optim.StatusFeasible || out.Best.Status == optim.StatusInfeasible {
		// Re-run the best candidate to keep its trajectory.
		run, err = exp.Run(ctx, out.Best.Candidate)
		if err != nil {
			return err
		}
		record.Result = run.Result
		record.Power = run.Power
	}

	runID, err := st.Save(record)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)

	if run != nil && !noFigure {
		return saveFigure(st, runID, cfg, run, "best design")
	}
	return nil
}

func optimizeLive(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, search experiment.Strategy, exp *experiment.Experiment) (optim.Outcome, error) {
	// The progress view owns the terminal; keep the log quiet underneath it.
	if err := logger.Init("error", false); err != nil {
		return optim.Outcome{}, err
	}

	total := cfg.Optimizer.MaxGenerations
	if cfg.Optimizer.Strategy == config.StrategyGrid {
		total = 1
	}
	p := tea.NewProgram(viz.NewProgress("optimize", total, cancel))
	search.SetObserver(func(g optim.GenerationStats) { p.Send(viz.GenerationMsg(g)) })

	go func() {
		out, err := search.Optimize(ctx, exp)
		p.Send(viz.DoneMsg{Outcome: out, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return optim.Outcome{}, err
	}
	return final.(viz.Progress).Result()
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rec, source, err := loadWave(cfg, args)
	if err != nil {
		return err
	}

	c := optim.Candidate{Mass: cfg.Optimizer.Mass.At(0.5), Damping: cfg.Optimizer.Damping.At(0.5)}
	if cmd.Flags().Changed("mass") {
		c.Mass = mass
	}
	if cmd.Flags().Changed("damping") {
		c.Damping = damping
	}
	// A single simulation is not bound by the search box.
	cfg.Optimizer.Mass.Min = math.Min(cfg.Optimizer.Mass.Min, c.Mass)
	cfg.Optimizer.Mass.Max = math.Max(cfg.Optimizer.Mass.Max, c.Mass)
	cfg.Optimizer.Damping.Min = math.Min(cfg.Optimizer.Damping.Min, c.Damping)
	cfg.Optimizer.Damping.Max = math.Max(cfg.Optimizer.Damping.Max, c.Damping)

	exp, err := experiment.Setup(cfg, rec)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	run, runErr := exp.Run(ctx, c)
	fmt.Println(viz.RenderEvaluation(run.Evaluation))
	if run.Result == nil {
		return runErr
	}

	if withPlots {
		fmt.Println(viz.Plot(run.Result.Z, "heave displacement z (m)", 10, 80))
		fmt.Println(viz.Plot(run.Result.ZDDot, "heave acceleration (m/s²)", 10, 80))
		fmt.Println(viz.Plot(run.Power, "electrical power (W)", 10, 80))
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	ev := run.Evaluation
	runID, err := st.Save(storage.Record{
		Kind:       "simulate",
		Source:     source,
		Config:     cfg,
		Evaluation: &ev,
		Result:     run.Result,
		Power:      run.Power,
	})
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)

	classified := ev.Status == optim.StatusFeasible || ev.Status == optim.StatusInfeasible
	if !noFigure && classified {
		return saveFigure(st, runID, cfg, run, "simulation")
	}
	return nil
}

func saveFigure(st *storage.Store, runID string, cfg *config.Config, run *experiment.Run, title string) error {
	path := filepath.Join(st.Dir(runID), cfg.Output.Figure)
	err := export.SaveFigure(path, export.FigureData{
		Title:           title,
		Result:          run.Result,
		Power:           run.Power,
		Peak:            run.Peak,
		MeanPower:       run.Evaluation.MeanPower,
		MaxAcceleration: cfg.Constraints.MaxAcceleration,
	})
	if err != nil {
		return err
	}
	fmt.Printf("figure: %s\n", path)
	return nil
}

func runSynth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	s := cfg.Wave.Synthetic
	f := cmd.Flags()
	if f.Changed("amplitude") {
		s.Amplitude = amplitude
	}
	if f.Changed("period") {
		s.Period = period
	}
	if f.Changed("duration") {
		s.Duration = duration
	}
	if f.Changed("dt") {
		s.Dt = sampleDt
	}

	rec, err := wave.Sinusoid(s.Amplitude, s.Period, s.Duration, s.Dt)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if len(args) == 1 {
		file, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if err := wave.WriteCSV(w, rec); err != nil {
		return err
	}
	if len(args) == 1 {
		fmt.Fprintf(os.Stderr, "wrote %d samples to %s\n", rec.Len(), args[0])
	}
	return nil
}

func runSpectrum(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rec, source, err := loadWave(cfg, args)
	if err != nil {
		return err
	}
	uniform, err := rec.Resample(spectrumDt)
	if err != nil {
		return err
	}
	ps, err := analysis.PowerSpectrum(uniform.Elevations(), spectrumDt)
	if err != nil {
		return err
	}

	freq, power := ps.Peak()
	stats := rec.Stats()
	fmt.Printf("source:        %s\n", source)
	fmt.Printf("samples:       %d\n", rec.Len())
	fmt.Printf("elevation:     min %.3f m, max %.3f m, mean %.3f m\n", stats.Min, stats.Max, stats.Mean)
	if freq > 0 {
		fmt.Printf("peak:          %.4f Hz (T = %.2f s, ωp = %.4f rad/s), power %.4g\n", freq, 1/freq, 2*math.Pi*freq, power)
	} else {
		fmt.Println("peak:          none (flat record)")
	}

	// Plot up to 0.5 Hz, where ocean wave energy lives.
	var shown []float64
	for i, fr := range ps.Freq {
		if i == 0 {
			continue
		}
		if fr > 0.5 {
			break
		}
		shown = append(shown, ps.Power[i])
	}
	fmt.Println(viz.Plot(shown, "elevation power spectrum, 0 to 0.5 Hz", 12, 80))
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("points") && gridPoints > 0 {
		cfg.Optimizer.GridPoints = gridPoints
	}
	if cmd.Flags().Changed("workers") && workers > 0 {
		cfg.Optimizer.Workers = workers
	}

	rec, source, err := loadWave(cfg, args)
	if err != nil {
		return err
	}
	exp, err := experiment.Setup(cfg, rec)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	grid := optim.NewGridSearch(cfg.Bounds(), cfg.Optimizer.GridPoints, cfg.Optimizer.Workers, cfg.Penalty())
	evals, err := grid.Sweep(ctx, exp)
	if err != nil {
		return err
	}

	fmt.Printf("%12s %12s %-10s %12s %12s\n", "MASS", "DAMPING", "STATUS", "POWER kW", "ACCEL")
	for _, e := range evals {
		fmt.Printf("%12.1f %12.1f %-10s %12.2f %12.3f\n",
			e.Candidate.Mass, e.Candidate.Damping, e.Status, e.MeanPower/1000, e.PeakAcceleration)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	runID, err := st.Save(storage.Record{Kind: "scan", Source: source, Config: cfg, Scan: evals})
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runs, err := storage.New(cfg.Output.Dir).List()
	if err != nil {
		return err
	}
	fmt.Print(viz.RenderRuns(runs))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.Output.Dir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	fmt.Println(viz.RenderRun(*meta))

	if out, err := st.LoadOutcome(args[0]); err == nil {
		fmt.Println(viz.RenderOutcome(*out))
	}

	res, power, err := st.LoadTrajectory(args[0])
	if err != nil {
		return nil
	}
	fmt.Println(viz.Plot(res.Elevation, "wave elevation (m)", 8, 80))
	fmt.Println(viz.Plot(res.Z, "heave displacement (m)", 8, 80))
	fmt.Println(viz.Plot(res.ZDDot, "heave acceleration (m/s²)", 8, 80))
	fmt.Println(viz.Plot(power, "electrical power (W)", 8, 80))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st := storage.New(cfg.Output.Dir)
	src, err := os.Open(st.TrajectoryPath(args[0]))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s has no trajectory", storage.ErrNotFound, args[0])
		}
		return err
	}
	defer src.Close()

	var dst io.Writer = os.Stdout
	if len(args) == 2 {
		file, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer file.Close()
		dst = file
	}
	_, err = io.Copy(dst, src)
	return err
}
