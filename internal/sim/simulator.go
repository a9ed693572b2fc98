package sim

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

type Simulator struct {
	integrator Integrator
	cfg        Config
	metrics    []Metric
}

func New(integrator Integrator, cfg Config) *Simulator {
	return &Simulator{
		integrator: integrator,
		cfg:        cfg,
		metrics:    make([]Metric, 0),
	}
}

func (s *Simulator) AddMetric(m Metric) { s.metrics = append(s.metrics, m) }

// Run integrates m from rest over [t0, t1] and resamples the dense solution
// onto the output grid.
func (s *Simulator) Run(ctx context.Context, m Model, t0, t1 float64) (*Result, error) {
	if err := s.validate(t0, t1); err != nil {
		return nil, err
	}

	x0 := make(dynamo.State, m.StateDim())
	sol, err := s.integrator.Integrate(ctx, m, x0, t0, t1)
	if err != nil {
		return nil, err
	}

	times := Grid(t0, t1, s.cfg.OutputRate)
	result := newResult(len(times))
	result.Stats = sol.Stats

	for _, metric := range s.metrics {
		metric.Reset()
	}

	x := make(dynamo.State, m.StateDim())
	for i, t := range times {
		sol.AtInto(t, x)
		forces, err := m.Forces(t, x)
		if err != nil {
			return nil, &dynamo.IntegrationError{Step: i, Time: t, Reason: "force reconstruction failed", Wrapped: err}
		}
		eta, err := m.Elevation(t)
		if err != nil {
			return nil, &dynamo.IntegrationError{Step: i, Time: t, Reason: "force reconstruction failed", Wrapped: err}
		}

		sample := Sample{
			Time:      t,
			Z:         x[0],
			ZDot:      x[1],
			ZDDot:     m.Acceleration(forces),
			Elevation: eta,
			Forces:    forces,
		}
		if !sample.valid() {
			return nil, &dynamo.IntegrationError{Step: i, Time: t, Reason: "non-finite output sample"}
		}
		result.set(i, sample)

		for _, metric := range s.metrics {
			metric.Observe(sample)
		}
	}

	for _, metric := range s.metrics {
		result.Metrics[metric.Name()] = metric.Value()
	}
	return result, nil
}

func (s *Simulator) validate(t0, t1 float64) error {
	if !dynamo.IsFinite(t0) || !dynamo.IsFinite(t1) || t1 <= t0 {
		return fmt.Errorf("simulation span [%g, %g] is empty: %w", t0, t1, dynamo.ErrInvalidParameter)
	}
	if !(s.cfg.OutputRate > 0) || !dynamo.IsFinite(s.cfg.OutputRate) {
		return &dynamo.InvalidParameterError{Name: "output_rate", Value: s.cfg.OutputRate, Reason: "must be positive"}
	}
	return nil
}

// Grid returns ceil((t1-t0)·rate)+1 evenly spaced times spanning exactly
// [t0, t1]. The spacing is (t1-t0)/(n-1), which is 1/rate only when
// (t1-t0)·rate is an integer; otherwise it is slightly finer.
func Grid(t0, t1, rate float64) []float64 {
	// Absorb rounding so that e.g. 600 s at 4 Hz gives 2401 points.
	n := int(math.Ceil((t1-t0)*rate-1e-9)) + 1
	if n < 2 {
		n = 2
	}
	return floats.Span(make([]float64, n), t0, t1)
}
