package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

type Candidate struct {
	Mass    float64 `json:"mass"`
	Damping float64 `json:"damping"`
}

func (c Candidate) String() string {
	return fmt.Sprintf("m=%.0f kg c=%.0f N·s/m", c.Mass, c.Damping)
}

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64 `json:"min" yaml:"min" mapstructure:"min"`
	Max float64 `json:"max" yaml:"max" mapstructure:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

func (r Range) Width() float64 { return r.Max - r.Min }

// At maps u in [0, 1] onto the range.
func (r Range) At(u float64) float64 { return r.Min + u*(r.Max-r.Min) }

// Unit is the inverse of At.
func (r Range) Unit(v float64) float64 {
	if r.Max == r.Min {
		return 0
	}
	return (v - r.Min) / (r.Max - r.Min)
}

type Bounds struct {
	Mass    Range `json:"mass"`
	Damping Range `json:"damping"`
}

const dims = 2

func (b Bounds) Validate() error {
	for _, r := range []struct {
		name string
		r    Range
	}{{"mass", b.Mass}, {"damping", b.Damping}} {
		if !dynamo.IsFinite(r.r.Min) || !dynamo.IsFinite(r.r.Max) || r.r.Min > r.r.Max {
			return &dynamo.InvalidParameterError{Name: r.name + "_bounds", Value: r.r.Min, Reason: fmt.Sprintf("invalid range [%g, %g]", r.r.Min, r.r.Max)}
		}
	}
	return nil
}

func (b Bounds) Contains(c Candidate) bool {
	return b.Mass.Contains(c.Mass) && b.Damping.Contains(c.Damping)
}

// FromUnit maps a point of the unit square onto a candidate.
func (b Bounds) FromUnit(u []float64) Candidate {
	return Candidate{Mass: b.Mass.At(u[0]), Damping: b.Damping.At(u[1])}
}

func (b Bounds) ToUnit(c Candidate) []float64 {
	return []float64{b.Mass.Unit(c.Mass), b.Damping.Unit(c.Damping)}
}

type Status int

const (
	StatusFeasible Status = iota
	StatusInfeasible
	StatusRejected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusRejected:
		return "rejected"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	for _, v := range []Status{StatusFeasible, StatusInfeasible, StatusRejected, StatusFailed} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("optim: unknown status %q", b)
}

// Evaluation is the typed outcome of scoring one candidate.
type Evaluation struct {
	Index            int                          `json:"index"`
	Candidate        Candidate                    `json:"candidate"`
	Status           Status                       `json:"status"`
	Score            float64                      `json:"score"`
	MeanPower        float64                      `json:"mean_power"`
	PeakAcceleration float64                      `json:"peak_acceleration"`
	PeakTime         float64                      `json:"peak_time"`
	MaxDisplacement  float64                      `json:"max_displacement"`
	MaxPTOForce      float64                      `json:"max_pto_force"`
	Violations       []dynamo.ConstraintViolation `json:"violations,omitempty"`
	Reason           string                       `json:"reason,omitempty"`
	Err              error                        `json:"-"`
}

// Violation is the worst relative exceedance across all violated limits.
func (e Evaluation) Violation() float64 {
	worst := 0.0
	for _, v := range e.Violations {
		if x := v.Excess(); x > worst || math.IsNaN(x) {
			worst = x
		}
	}
	return worst
}

type Objective interface {
	Evaluate(ctx context.Context, c Candidate) Evaluation
}

type ObjectiveFunc func(ctx context.Context, c Candidate) Evaluation

func (f ObjectiveFunc) Evaluate(ctx context.Context, c Candidate) Evaluation { return f(ctx, c) }

type Optimizer interface {
	Optimize(ctx context.Context, obj Objective) (Outcome, error)
}

// GenerationStats summarises one generation (or batch) of a search.
type GenerationStats struct {
	Generation  int        `json:"generation"`
	Evaluations int        `json:"evaluations"`
	BestScore   float64    `json:"best_score"`
	MeanScore   float64    `json:"mean_score"`
	StdScore    float64    `json:"std_score"`
	Feasible    int        `json:"feasible"`
	Best        Evaluation `json:"best"`
}

type Observer func(GenerationStats)

type Outcome struct {
	Strategy    string            `json:"strategy"`
	Best        Evaluation        `json:"best"`
	Feasible    bool              `json:"feasible"`
	Generations int               `json:"generations"`
	Evaluations int               `json:"evaluations"`
	Converged   bool              `json:"converged"`
	Polished    bool              `json:"polished"`
	Message     string            `json:"message"`
	History     []GenerationStats `json:"history,omitempty"`
}
