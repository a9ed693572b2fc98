package config

import "sort"

// Preset is a named overlay on the default configuration.
type Preset struct {
	Description string
	Apply       func(*Config)
}

var Presets = map[string]Preset{
	"default": {
		Description: "defaults: 8 m buoy, wide mass and damping bounds",
		Apply:       func(*Config) {},
	},
	"regular-8s": {
		Description: "600 s regular wave, A=1 m, T=8 s, light buoy bounds, seed 42",
		Apply: func(c *Config) {
			c.Wave.Synthetic = SyntheticConfig{Amplitude: 1, Period: 8, Duration: 600, Dt: 0.1}
			c.Optimizer.Mass.Min, c.Optimizer.Mass.Max = 5000, 20000
			c.Optimizer.Damping.Min, c.Optimizer.Damping.Max = 1000, 50000
			c.Constraints.MaxAcceleration = 2
			c.Optimizer.Seed = 42
		},
	},
	"quick": {
		Description: "small population and few generations for a fast look",
		Apply: func(c *Config) {
			c.Optimizer.PopSize = 3
			c.Optimizer.MaxGenerations = 3
			c.Solver.OutputRate = 2
		},
	},
	"thorough": {
		Description: "larger population, tight tolerance and Nelder-Mead polish",
		Apply: func(c *Config) {
			c.Optimizer.PopSize = 15
			c.Optimizer.MaxGenerations = 60
			c.Optimizer.Tol = 0.01
			c.Optimizer.Polish = true
			c.Optimizer.PolishEvaluations = 80
			c.Solver.RTol = 1e-6
			c.Solver.ATol = 1e-8
		},
	},
	"sweep": {
		Description: "exhaustive grid over the bounds, as a parameter scan",
		Apply: func(c *Config) {
			c.Optimizer.Strategy = StrategyGrid
			c.Optimizer.GridPoints = 8
		},
	},
	"linear": {
		Description: "linear hydrodynamics: no viscous drag",
		Apply: func(c *Config) {
			c.Physics.Drag = false
		},
	},
}

// GetPreset returns the defaults with the named preset applied, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.Apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
