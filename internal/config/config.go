package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/buoyopt/internal/analysis"
	"github.com/san-kum/buoyopt/internal/dynamo"
	"github.com/san-kum/buoyopt/internal/integrators"
	"github.com/san-kum/buoyopt/internal/metrics"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/physics"
	"github.com/san-kum/buoyopt/internal/sim"
	"github.com/san-kum/buoyopt/internal/wave"
)

// EnvPrefix namespaces environment overrides, e.g.
// BUOYOPT_OPTIMIZER_SEED=7 or BUOYOPT_CONSTRAINTS_MAX_ACCELERATION=1.5.
const EnvPrefix = "BUOYOPT"

const (
	StrategyDE   = "differential_evolution"
	StrategyGrid = "grid_search"
)

type Config struct {
	Wave        WaveConfig       `yaml:"wave" mapstructure:"wave"`
	Buoy        BuoyConfig       `yaml:"buoy" mapstructure:"buoy"`
	Physics     PhysicsConfig    `yaml:"physics" mapstructure:"physics"`
	Solver      SolverConfig     `yaml:"solver" mapstructure:"solver"`
	Analysis    AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Constraints ConstraintConfig `yaml:"constraints" mapstructure:"constraints"`
	Optimizer   OptimizerConfig  `yaml:"optimizer" mapstructure:"optimizer"`
	Output      OutputConfig     `yaml:"output" mapstructure:"output"`
}

type WaveConfig struct {
	TimeColumn      string          `yaml:"time_column" mapstructure:"time_column"`
	ElevationColumn string          `yaml:"elevation_column" mapstructure:"elevation_column"`
	Synthetic       SyntheticConfig `yaml:"synthetic" mapstructure:"synthetic"`
}

// SyntheticConfig describes the regular wave used when no record is given.
type SyntheticConfig struct {
	Amplitude float64 `yaml:"amplitude" mapstructure:"amplitude"`
	Period    float64 `yaml:"period" mapstructure:"period"`
	Duration  float64 `yaml:"duration" mapstructure:"duration"`
	Dt        float64 `yaml:"dt" mapstructure:"dt"`
}

type BuoyConfig struct {
	Diameter   float64 `yaml:"diameter" mapstructure:"diameter"`
	Draft      float64 `yaml:"draft" mapstructure:"draft"`
	Efficiency float64 `yaml:"pto_efficiency" mapstructure:"pto_efficiency"`
}

type PhysicsConfig struct {
	WaterDensity      float64 `yaml:"water_density" mapstructure:"water_density"`
	Gravity           float64 `yaml:"gravity" mapstructure:"gravity"`
	AddedMassCoeff    float64 `yaml:"added_mass_coeff" mapstructure:"added_mass_coeff"`
	DragCoeff         float64 `yaml:"drag_coeff" mapstructure:"drag_coeff"`
	PeakFrequency     float64 `yaml:"peak_frequency" mapstructure:"peak_frequency"`
	AutoPeakFrequency bool    `yaml:"auto_peak_frequency" mapstructure:"auto_peak_frequency"`

	AddedMass          bool `yaml:"added_mass" mapstructure:"added_mass"`
	Radiation          bool `yaml:"radiation" mapstructure:"radiation"`
	Drag               bool `yaml:"drag" mapstructure:"drag"`
	Efficiency         bool `yaml:"efficiency" mapstructure:"efficiency"`
	VelocityExcitation bool `yaml:"velocity_excitation" mapstructure:"velocity_excitation"`
}

type SolverConfig struct {
	RTol       float64 `yaml:"rtol" mapstructure:"rtol"`
	ATol       float64 `yaml:"atol" mapstructure:"atol"`
	MaxStep    float64 `yaml:"max_step" mapstructure:"max_step"`
	MaxSteps   int     `yaml:"max_steps" mapstructure:"max_steps"`
	OutputRate float64 `yaml:"output_rate" mapstructure:"output_rate"`
}

type AnalysisConfig struct {
	TransientCutoff float64 `yaml:"transient_cutoff" mapstructure:"transient_cutoff"`
	Subdivisions    int     `yaml:"subdivisions" mapstructure:"subdivisions"`
}

// ConstraintConfig holds design limits; zero disables a limit.
type ConstraintConfig struct {
	MaxAcceleration float64 `yaml:"max_acceleration" mapstructure:"max_acceleration"`
	MaxDisplacement float64 `yaml:"max_displacement" mapstructure:"max_displacement"`
	MaxPTOForce     float64 `yaml:"max_pto_force" mapstructure:"max_pto_force"`
}

type OptimizerConfig struct {
	Strategy          string      `yaml:"strategy" mapstructure:"strategy"`
	Mass              optim.Range `yaml:"mass" mapstructure:"mass"`
	Damping           optim.Range `yaml:"damping" mapstructure:"damping"`
	PopSize           int         `yaml:"popsize" mapstructure:"popsize"`
	MaxGenerations    int         `yaml:"max_generations" mapstructure:"max_generations"`
	MaxEvaluations    int         `yaml:"max_evaluations" mapstructure:"max_evaluations"`
	Tol               float64     `yaml:"tol" mapstructure:"tol"`
	Atol              float64     `yaml:"atol" mapstructure:"atol"`
	Mutation          optim.Range `yaml:"mutation" mapstructure:"mutation"`
	Recombination     float64     `yaml:"recombination" mapstructure:"recombination"`
	Seed              int64       `yaml:"seed" mapstructure:"seed"`
	Workers           int         `yaml:"workers" mapstructure:"workers"`
	Penalty           float64     `yaml:"penalty" mapstructure:"penalty"`
	Polish            bool        `yaml:"polish" mapstructure:"polish"`
	PolishEvaluations int         `yaml:"polish_evaluations" mapstructure:"polish_evaluations"`
	GridPoints        int         `yaml:"grid_points" mapstructure:"grid_points"`
}

type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Figure   string `yaml:"figure" mapstructure:"figure"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

func DefaultConfig() *Config {
	de := optim.DefaultDEConfig()
	return &Config{
		Wave: WaveConfig{
			TimeColumn:      wave.DefaultTimeColumn,
			ElevationColumn: wave.DefaultElevationColumn,
			Synthetic:       SyntheticConfig{Amplitude: 1, Period: 8, Duration: 600, Dt: 0.1},
		},
		Buoy: BuoyConfig{Diameter: 8, Draft: 6, Efficiency: physics.DefaultEfficiency},
		Physics: PhysicsConfig{
			WaterDensity:   physics.DefaultWaterDensity,
			Gravity:        physics.DefaultGravity,
			AddedMassCoeff: physics.DefaultAddedMassCoeff,
			DragCoeff:      physics.DefaultDragCoeff,
			PeakFrequency:  physics.DefaultPeakFrequency,
			AddedMass:      true,
			Radiation:      true,
			Drag:           true,
			Efficiency:     true,
		},
		Solver: SolverConfig{
			RTol:       integrators.DefaultRTol,
			ATol:       integrators.DefaultATol,
			MaxStep:    integrators.DefaultMaxStep,
			MaxSteps:   integrators.DefaultMaxSteps,
			OutputRate: sim.DefaultOutputRate,
		},
		Analysis: AnalysisConfig{
			TransientCutoff: metrics.DefaultTransientCutoff,
			Subdivisions:    analysis.DefaultSubdivisions,
		},
		Constraints: ConstraintConfig{
			MaxAcceleration: 2.0,
			MaxDisplacement: 3.5,
			MaxPTOForce:     1.5e6,
		},
		Optimizer: OptimizerConfig{
			Strategy:          StrategyDE,
			Mass:              optim.Range{Min: 20000, Max: 200000},
			Damping:           optim.Range{Min: 10000, Max: 1000000},
			PopSize:           de.PopSize,
			MaxGenerations:    de.MaxGenerations,
			Tol:               de.Tol,
			Mutation:          optim.Range{Min: de.MutationMin, Max: de.MutationMax},
			Recombination:     de.Recombination,
			Seed:              de.Seed,
			Workers:           1,
			Penalty:           optim.DefaultPenalty,
			PolishEvaluations: de.PolishEvaluations,
			GridPoints:        8,
		},
		Output: OutputConfig{
			Dir:      ".buoyopt",
			Figure:   "buoy_optimization.png",
			LogLevel: "info",
		},
	}
}

// Load reads an optional YAML file over the defaults, then applies
// BUOYOPT_* environment overrides.
func Load(path string) (*Config, error) {
	return load(path, DefaultConfig())
}

// LoadOver is Load with a caller-supplied base, such as a preset.
func LoadOver(path string, base *Config) (*Config, error) {
	return load(path, base)
}

func load(path string, base *Config) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("config: encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, name string, v float64, reason string) {
		if !ok {
			errs = append(errs, &dynamo.InvalidParameterError{Name: name, Value: v, Reason: reason})
		}
	}
	positive := func(name string, v float64) { check(v > 0 && dynamo.IsFinite(v), name, v, "must be positive") }
	nonNegative := func(name string, v float64) { check(v >= 0 && dynamo.IsFinite(v), name, v, "must be non-negative") }

	positive("buoy.diameter", c.Buoy.Diameter)
	positive("buoy.draft", c.Buoy.Draft)
	check(c.Buoy.Efficiency > 0 && c.Buoy.Efficiency <= 1, "buoy.pto_efficiency", c.Buoy.Efficiency, "must be in (0, 1]")

	positive("physics.water_density", c.Physics.WaterDensity)
	positive("physics.gravity", c.Physics.Gravity)
	nonNegative("physics.added_mass_coeff", c.Physics.AddedMassCoeff)
	nonNegative("physics.drag_coeff", c.Physics.DragCoeff)
	positive("physics.peak_frequency", c.Physics.PeakFrequency)

	positive("solver.rtol", c.Solver.RTol)
	positive("solver.atol", c.Solver.ATol)
	positive("solver.max_step", c.Solver.MaxStep)
	check(c.Solver.MaxSteps > 0, "solver.max_steps", float64(c.Solver.MaxSteps), "must be positive")
	positive("solver.output_rate", c.Solver.OutputRate)

	nonNegative("analysis.transient_cutoff", c.Analysis.TransientCutoff)
	check(c.Analysis.Subdivisions >= 1, "analysis.subdivisions", float64(c.Analysis.Subdivisions), "must be at least 1")

	nonNegative("constraints.max_acceleration", c.Constraints.MaxAcceleration)
	nonNegative("constraints.max_displacement", c.Constraints.MaxDisplacement)
	nonNegative("constraints.max_pto_force", c.Constraints.MaxPTOForce)

	o := c.Optimizer
	check(o.Strategy == StrategyDE || o.Strategy == StrategyGrid, "optimizer.strategy", 0, fmt.Sprintf("unknown strategy %q", o.Strategy))
	if err := c.Bounds().Validate(); err != nil {
		errs = append(errs, err)
	}
	check(o.Mass.Min > 0, "optimizer.mass.min", o.Mass.Min, "mass must be positive")
	nonNegative("optimizer.damping.min", o.Damping.Min)
	check(o.Workers >= 1, "optimizer.workers", float64(o.Workers), "must be at least 1")
	positive("optimizer.penalty", o.Penalty)
	check(o.GridPoints >= 1, "optimizer.grid_points", float64(o.GridPoints), "must be at least 1")
	nonNegative("optimizer.polish_evaluations", float64(o.PolishEvaluations))
	if err := c.DE().Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Config) Bounds() optim.Bounds {
	return optim.Bounds{Mass: c.Optimizer.Mass, Damping: c.Optimizer.Damping}
}

func (c *Config) DE() optim.DEConfig {
	o := c.Optimizer
	return optim.DEConfig{
		PopSize:           o.PopSize,
		MaxGenerations:    o.MaxGenerations,
		MaxEvaluations:    o.MaxEvaluations,
		Tol:               o.Tol,
		Atol:              o.Atol,
		MutationMin:       o.Mutation.Min,
		MutationMax:       o.Mutation.Max,
		Recombination:     o.Recombination,
		Seed:              o.Seed,
		Workers:           o.Workers,
		Penalty:           c.Penalty(),
		Polish:            o.Polish,
		PolishEvaluations: o.PolishEvaluations,
	}
}

func (c *Config) Penalty() optim.Penalty { return optim.Penalty{Base: c.Optimizer.Penalty} }

func (c *Config) Geometry() physics.Geometry {
	return physics.Geometry{Diameter: c.Buoy.Diameter, Draft: c.Buoy.Draft}
}

func (c *Config) Environment() physics.Environment {
	p := c.Physics
	return physics.Environment{
		WaterDensity:   p.WaterDensity,
		Gravity:        p.Gravity,
		AddedMassCoeff: p.AddedMassCoeff,
		DragCoeff:      p.DragCoeff,
		PeakFrequency:  p.PeakFrequency,
	}
}

func (c *Config) Toggles() physics.Toggles {
	p := c.Physics
	return physics.Toggles{
		AddedMass:          p.AddedMass,
		Radiation:          p.Radiation,
		Drag:               p.Drag,
		Efficiency:         p.Efficiency,
		VelocityExcitation: p.VelocityExcitation,
	}
}

// Properties builds the base buoy at the centre of the search bounds.
func (c *Config) Properties() (physics.Properties, error) {
	return c.PropertiesWith(c.Environment())
}

// PropertiesWith is Properties with an explicit environment, used when the
// peak frequency is estimated from the wave record.
func (c *Config) PropertiesWith(env physics.Environment) (physics.Properties, error) {
	m := c.Optimizer.Mass.At(0.5)
	d := c.Optimizer.Damping.At(0.5)
	return physics.NewProperties(m, d, c.Buoy.Efficiency, c.Geometry(), env, c.Toggles())
}

func (c *Config) IntegratorOptions() integrators.Options {
	return integrators.Options{
		RTol:     c.Solver.RTol,
		ATol:     c.Solver.ATol,
		MaxStep:  c.Solver.MaxStep,
		MaxSteps: c.Solver.MaxSteps,
	}
}

func (c *Config) SimConfig() sim.Config { return sim.Config{OutputRate: c.Solver.OutputRate} }

func (c *Config) CSVOptions() wave.CSVOptions {
	return wave.CSVOptions{TimeColumn: c.Wave.TimeColumn, ElevationColumn: c.Wave.ElevationColumn}
}
