package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/buoyopt/internal/analysis"
	"github.com/san-kum/buoyopt/internal/config"
	"github.com/san-kum/buoyopt/internal/logger"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/wave"
)

// autoPeakDt is the resampling step used for the spectral peak estimate.
const autoPeakDt = 0.1

// Setup builds an experiment for rec from a loaded configuration.
func Setup(cfg *config.Config, rec wave.Record) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	forcing, err := wave.NewForcing(rec)
	if err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}

	env := cfg.Environment()
	if cfg.Physics.AutoPeakFrequency {
		wp, err := estimatePeak(rec)
		if err != nil {
			return nil, err
		}
		logger.Log.Infow("estimated peak frequency", "omega_p", wp, "configured", env.PeakFrequency)
		env.PeakFrequency = wp
	}

	base, err := cfg.PropertiesWith(env)
	if err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}

	return New(Config{
		Base:   base,
		Bounds: cfg.Bounds(),
		Limits: Limits{
			MaxAcceleration: cfg.Constraints.MaxAcceleration,
			MaxDisplacement: cfg.Constraints.MaxDisplacement,
			MaxPTOForce:     cfg.Constraints.MaxPTOForce,
		},
		Integrator:      cfg.IntegratorOptions(),
		Sim:             cfg.SimConfig(),
		TransientCutoff: cfg.Analysis.TransientCutoff,
		Subdivisions:    cfg.Analysis.Subdivisions,
	}, forcing)
}

func estimatePeak(rec wave.Record) (float64, error) {
	uniform, err := rec.Resample(autoPeakDt)
	if err != nil {
		return 0, fmt.Errorf("experiment: resample for peak frequency: %w", err)
	}
	wp, err := analysis.PeakAngularFrequency(uniform.Elevations(), autoPeakDt)
	if err != nil {
		return 0, fmt.Errorf("experiment: peak frequency: %w", err)
	}
	return wp, nil
}

// Strategy is an optimizer that can report per-generation progress.
type Strategy interface {
	optim.Optimizer
	SetObserver(optim.Observer)
}

type Registry struct {
	strategies map[string]func(*config.Config) Strategy
}

func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]func(*config.Config) Strategy)}

	r.strategies[config.StrategyDE] = func(c *config.Config) Strategy {
		return optim.NewDifferentialEvolution(c.Bounds(), c.DE())
	}
	r.strategies[config.StrategyGrid] = func(c *config.Config) Strategy {
		return optim.NewGridSearch(c.Bounds(), c.Optimizer.GridPoints, c.Optimizer.Workers, c.Penalty())
	}

	return r
}

func (r *Registry) GetStrategy(cfg *config.Config) (Strategy, error) {
	fn, ok := r.strategies[cfg.Optimizer.Strategy]
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", cfg.Optimizer.Strategy)
	}
	return fn(cfg), nil
}

func (r *Registry) ListStrategies() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
