package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/san-kum/buoyopt/internal/automation"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/viz"
)

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunScenario(ctx, sc, filepath.Dir(args[0]), st)
	for _, r := range results {
		fmt.Printf("%-20s %-9s %s\n", r.Name, r.Mode, r.RunID)
		fmt.Println(viz.RenderEvaluation(r.Evaluation))
	}
	return err
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
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

	ctx, cancel := signalContext()
	defer cancel()

	results, err := automation.RunMonteCarlo(ctx, cfg, automation.MonteCarloConfig{
		Candidate:       c,
		AmplitudeSpread: ampSpread,
		PeriodSpread:    periodSprd,
		NumTrials:       trials,
		Seed:            trialsSeed,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%6s %10s %10s %-10s %12s %12s\n", "TRIAL", "AMP m", "PERIOD s", "STATUS", "POWER kW", "ACCEL")
	for _, r := range results {
		e := r.Evaluation
		fmt.Printf("%6d %10.3f %10.3f %-10s %12.2f %12.3f\n",
			r.TrialID, r.Amplitude, r.Period, e.Status, e.MeanPower/1000, e.PeakAcceleration)
	}
	sum := automation.MonteCarloStats(results)
	fmt.Printf("\nfeasible %d, infeasible %d, other %d\n", sum.Feasible, sum.Infeasible, sum.Other)
	fmt.Printf("mean power %.2f kW ± %.2f kW\n", sum.MeanPower/1000, sum.StdPower/1000)
	return nil
}
