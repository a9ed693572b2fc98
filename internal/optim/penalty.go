package optim

import "math"

const (
	DefaultPenalty = 1e10

	// Infeasible scores grow with the violation up to this factor, so they
	// always rank below feasible ones and above rejected ones.
	maxViolationFactor = 98
	rejectedFactor     = 100
)

// Penalty maps an evaluation onto a single score to be minimised.
type Penalty struct {
	Base float64
}

func (p Penalty) base() float64 {
	if p.Base > 0 {
		return p.Base
	}
	return DefaultPenalty
}

func (p Penalty) Score(e Evaluation) float64 {
	switch e.Status {
	case StatusFeasible:
		return -e.MeanPower
	case StatusInfeasible:
		v := e.Violation()
		if math.IsNaN(v) {
			v = maxViolationFactor
		}
		return p.base() * (1 + math.Min(math.Max(v, 0), maxViolationFactor))
	}
	return p.base() * rejectedFactor
}

// Apply fills in e.Score.
func (p Penalty) Apply(e Evaluation) Evaluation {
	e.Score = p.Score(e)
	return e
}
