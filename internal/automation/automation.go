package automation

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/buoyopt/internal/config"
	"github.com/san-kum/buoyopt/internal/experiment"
	"github.com/san-kum/buoyopt/internal/logger"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/storage"
	"github.com/san-kum/buoyopt/internal/wave"
)

const (
	ModeOptimize = "optimize"
	ModeSimulate = "simulate"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Paths are relative to the scenario file.
type ScenarioStep struct {
	Name      string                  `yaml:"name"`
	Mode      string                  `yaml:"mode"`
	Preset    string                  `yaml:"preset"`
	Config    string                  `yaml:"config"`
	Wave      string                  `yaml:"wave"`
	Synthetic *config.SyntheticConfig `yaml:"synthetic"`
	Candidate *optim.Candidate        `yaml:"candidate"`
}

type StepResult struct {
	Name       string
	Mode       string
	RunID      string
	Outcome    *optim.Outcome
	Evaluation optim.Evaluation
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// RunScenario executes the steps in order, saving each to st when it is not
// nil. dir resolves relative paths in the steps.
func RunScenario(ctx context.Context, scenario *Scenario, dir string, st *storage.Store) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))
	registry := experiment.NewRegistry()

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		logger.Log.Infow("scenario step", "scenario", scenario.Name, "step", name, "n", i+1, "of", len(scenario.Steps))

		cfg, err := stepConfig(step, dir)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		rec, source, err := stepWave(step, cfg, dir)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		exp, err := experiment.Setup(cfg, rec)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		res := StepResult{Name: name, Mode: step.Mode}
		save := storage.Record{Source: name + ": " + source, Config: cfg}

		switch step.Mode {
		case ModeOptimize, "":
			res.Mode = ModeOptimize
			search, err := registry.GetStrategy(cfg)
			if err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
			out, err := search.Optimize(ctx, exp)
			if err != nil {
				return results, fmt.Errorf("step %d run: %w", i+1, err)
			}
			res.Outcome = &out
			res.Evaluation = out.Best
			save.Outcome = &out

		case ModeSimulate:
			c := optim.Candidate{Mass: cfg.Optimizer.Mass.At(0.5), Damping: cfg.Optimizer.Damping.At(0.5)}
			if step.Candidate != nil {
				c = *step.Candidate
			}
			run, err := exp.Run(ctx, c)
			if run.Result == nil {
				return results, fmt.Errorf("step %d run: %w", i+1, err)
			}
			res.Evaluation = run.Evaluation
			save.Evaluation = &res.Evaluation
			save.Result = run.Result
			save.Power = run.Power

		default:
			return results, fmt.Errorf("step %d: unknown mode %q", i+1, step.Mode)
		}

		save.Kind = res.Mode
		if st != nil {
			if res.RunID, err = st.Save(save); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, res)
	}

	return results, nil
}

func stepConfig(step ScenarioStep, dir string) (*config.Config, error) {
	base := config.DefaultConfig()
	if step.Preset != "" {
		if base = config.GetPreset(step.Preset); base == nil {
			return nil, fmt.Errorf("unknown preset: %s", step.Preset)
		}
	}
	path := step.Config
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	cfg, err := config.LoadOver(path, base)
	if err != nil {
		return nil, err
	}
	if step.Synthetic != nil {
		cfg.Wave.Synthetic = *step.Synthetic
	}
	return cfg, nil
}

func stepWave(step ScenarioStep, cfg *config.Config, dir string) (wave.Record, string, error) {
	if step.Wave == "" {
		s := cfg.Wave.Synthetic
		rec, err := wave.Sinusoid(s.Amplitude, s.Period, s.Duration, s.Dt)
		return rec, "synthetic", err
	}
	path := step.Wave
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	rec, _, err := wave.LoadCSV(path, cfg.CSVOptions())
	return rec, path, err
}

// MonteCarloConfig perturbs the regular sea state around the configured
// synthetic wave to test one design's robustness.
type MonteCarloConfig struct {
	Candidate optim.Candidate
	// Relative half-widths of the uniform perturbation of amplitude and period.
	AmplitudeSpread float64
	PeriodSpread    float64
	NumTrials       int
	Seed            int64
}

type MonteCarloResult struct {
	TrialID    int
	Amplitude  float64
	Period     float64
	Evaluation optim.Evaluation
}

// RunMonteCarlo evaluates the candidate against NumTrials perturbed waves.
func RunMonteCarlo(ctx context.Context, base *config.Config, mc MonteCarloConfig) ([]MonteCarloResult, error) {
	if mc.NumTrials < 1 {
		return nil, fmt.Errorf("monte carlo: need at least one trial, got %d", mc.NumTrials)
	}
	results := make([]MonteCarloResult, 0, mc.NumTrials)

	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := base.Wave.Synthetic
	for trial := 0; trial < mc.NumTrials; trial++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		amp := s.Amplitude * (1 + (rng.Float64()-0.5)*2*mc.AmplitudeSpread)
		per := s.Period * (1 + (rng.Float64()-0.5)*2*mc.PeriodSpread)

		rec, err := wave.Sinusoid(amp, per, s.Duration, s.Dt)
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}
		exp, err := experiment.Setup(base, rec)
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}

		results = append(results, MonteCarloResult{
			TrialID:    trial,
			Amplitude:  amp,
			Period:     per,
			Evaluation: exp.Evaluate(ctx, mc.Candidate),
		})

		if (trial+1)%10 == 0 {
			logger.Log.Infow("monte carlo progress", "done", trial+1, "of", mc.NumTrials)
		}
	}

	return results, nil
}

// MonteCarloSummary condenses a set of trials.
type MonteCarloSummary struct {
	Feasible, Infeasible, Other int
	MeanPower, StdPower         float64
}

// MonteCarloStats computes summary statistics; power is averaged over
// classified trials only.
func MonteCarloStats(results []MonteCarloResult) MonteCarloSummary {
	var sum MonteCarloSummary
	var power []float64
	for _, r := range results {
		switch r.Evaluation.Status {
		case optim.StatusFeasible:
			sum.Feasible++
		case optim.StatusInfeasible:
			sum.Infeasible++
		default:
			sum.Other++
			continue
		}
		power = append(power, r.Evaluation.MeanPower)
	}
	switch len(power) {
	case 0:
	case 1:
		sum.MeanPower = power[0]
	default:
		sum.MeanPower, sum.StdPower = stat.MeanStdDev(power, nil)
	}
	return sum
}
