package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/buoyopt/internal/analysis"
	"github.com/san-kum/buoyopt/internal/dynamo"
	"github.com/san-kum/buoyopt/internal/integrators"
	"github.com/san-kum/buoyopt/internal/logger"
	"github.com/san-kum/buoyopt/internal/metrics"
	"github.com/san-kum/buoyopt/internal/optim"
	"github.com/san-kum/buoyopt/internal/physics"
	"github.com/san-kum/buoyopt/internal/sim"
	"github.com/san-kum/buoyopt/internal/wave"
)

// Limits are the design limits checked per candidate; zero disables one.
type Limits struct {
	MaxAcceleration float64
	MaxDisplacement float64
	MaxPTOForce     float64
}

type Config struct {
	Base            physics.Properties
	Bounds          optim.Bounds
	Limits          Limits
	Integrator      integrators.Options
	Sim             sim.Config
	TransientCutoff float64
	Subdivisions    int
}

// Experiment is the per-candidate pipeline
// simulate → peak acceleration → mean power → constraint checks.
// It holds only read-only state and is safe for concurrent Evaluate calls.
type Experiment struct {
	cfg      Config
	forcing  *wave.Forcing
	analyzer *analysis.AccelerationAnalyzer
}

func New(cfg Config, forcing *wave.Forcing) (*Experiment, error) {
	if forcing == nil {
		return nil, fmt.Errorf("experiment: nil forcing")
	}
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}
	if err := cfg.Integrator.Validate(); err != nil {
		return nil, fmt.Errorf("experiment: %w", err)
	}
	return &Experiment{
		cfg:      cfg,
		forcing:  forcing,
		analyzer: analysis.NewAccelerationAnalyzer(cfg.Subdivisions),
	}, nil
}

func (e *Experiment) Config() Config { return e.cfg }

func (e *Experiment) Forcing() *wave.Forcing { return e.forcing }

// Run is the full record of one simulated candidate.
type Run struct {
	Evaluation optim.Evaluation
	Properties physics.Properties
	Result     *sim.Result
	Peak       analysis.Extremum
	Power      []float64 // instantaneous electrical power per sample
}

// Evaluate scores nothing; it classifies. Scoring belongs to the search.
func (e *Experiment) Evaluate(ctx context.Context, c optim.Candidate) optim.Evaluation {
	run, _ := e.Run(ctx, c)
	return run.Evaluation
}

// Run evaluates c and keeps the trajectory. The error mirrors
// Evaluation.Err for callers that only want the happy path.
func (e *Experiment) Run(ctx context.Context, c optim.Candidate) (*Run, error) {
	run := &Run{Evaluation: optim.Evaluation{Candidate: c}}
	ev := &run.Evaluation

	reject := func(status optim.Status, reason string, err error) (*Run, error) {
		ev.Status = status
		ev.Reason = reason
		ev.Err = err
		logger.Log.Debugw("candidate rejected",
			"candidate", c.String(),
			"status", status.String(),
			"reason", reason,
		)
		if err == nil {
			err = errors.New(reason)
		}
		return run, err
	}

	if !e.cfg.Bounds.Contains(c) {
		return reject(optim.StatusRejected, "out of bounds", nil)
	}

	props, err := e.cfg.Base.WithCandidate(c.Mass, c.Damping)
	if err != nil {
		return reject(optim.StatusRejected, "invalid parameters", err)
	}
	run.Properties = props

	buoy, err := physics.NewBuoy(props, e.forcing)
	if err != nil {
		return reject(optim.StatusRejected, "invalid parameters", err)
	}

	power := metrics.NewMeanPower(props.PTODamping, props.ConversionEfficiency(), e.cfg.TransientCutoff)
	disp := metrics.NewMaxDisplacement()
	pto := metrics.NewMaxPTOForce()

	s := sim.New(integrators.NewRK45(e.cfg.Integrator), e.cfg.Sim)
	s.AddMetric(power)
	s.AddMetric(disp)
	s.AddMetric(pto)

	t0, t1 := e.forcing.Domain()
	res, err := s.Run(ctx, buoy, t0, t1)
	if err != nil {
		return reject(optim.StatusFailed, "simulation failed", err)
	}
	run.Result = res
	run.Power = metrics.InstantaneousPower(res, props.PTODamping, props.ConversionEfficiency())

	peak, err := e.analyzer.Peak(res.Time, res.ZDDot)
	if err != nil {
		return reject(optim.StatusFailed, "peak analysis failed", err)
	}
	run.Peak = peak

	ev.PeakAcceleration = peak.Abs()
	ev.PeakTime = peak.Time
	ev.MaxDisplacement = disp.Value()
	ev.MaxPTOForce = pto.Value()

	if !power.Ok() {
		return reject(optim.StatusRejected, "no samples after the transient cutoff", nil)
	}
	ev.MeanPower = power.Value()
	if !dynamo.IsFinite(ev.MeanPower) {
		return reject(optim.StatusFailed, "non-finite mean power", nil)
	}

	ev.Violations = e.violations(ev)
	ev.Status = optim.StatusFeasible
	if len(ev.Violations) > 0 {
		ev.Status = optim.StatusInfeasible
	}
	return run, nil
}

func (e *Experiment) violations(ev *optim.Evaluation) []dynamo.ConstraintViolation {
	var out []dynamo.ConstraintViolation
	add := func(name string, value, limit float64) {
		if limit > 0 && (value > limit || math.IsNaN(value)) {
			out = append(out, dynamo.ConstraintViolation{Name: name, Value: value, Limit: limit})
		}
	}
	add("peak_acceleration", ev.PeakAcceleration, e.cfg.Limits.MaxAcceleration)
	add("max_displacement", ev.MaxDisplacement, e.cfg.Limits.MaxDisplacement)
	add("max_pto_force", ev.MaxPTOForce, e.cfg.Limits.MaxPTOForce)
	return out
}
