package wave

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

// Forcing is a continuous wave-elevation function over a record's span.
// It is safe for concurrent use once built.
type Forcing struct {
	lin    interp.PiecewiseLinear
	ts, es []float64
	t0, t1 float64
	lo, hi float64
}

// NewForcing cleans r and fits a linear interpolant through what is left.
// Non-finite samples are dropped and the rest sorted by time, so fewer
// than two usable samples is ErrInsufficientData.
func NewForcing(r Record) (*Forcing, error) {
	r, _ = Clean(r.Samples)
	if r.Len() < 2 {
		return nil, fmt.Errorf("wave forcing: %d samples: %w", r.Len(), dynamo.ErrInsufficientData)
	}

	ts, es := r.Times(), r.Elevations()
	f := &Forcing{
		ts: ts,
		es: es,
		t0: ts[0],
		t1: ts[len(ts)-1],
		lo: floats.Min(es),
		hi: floats.Max(es),
	}
	if err := f.lin.Fit(ts, es); err != nil {
		return nil, fmt.Errorf("wave forcing: %w", err)
	}
	return f, nil
}

// Domain returns the valid time range [t0, t1].
func (f *Forcing) Domain() (float64, float64) { return f.t0, f.t1 }

// Range returns the minimum and maximum elevation of the source samples.
func (f *Forcing) Range() (float64, float64) { return f.lo, f.hi }

func (f *Forcing) check(t float64) error {
	if math.IsNaN(t) || t < f.t0 || t > f.t1 {
		return &dynamo.DomainError{T: t, Min: f.t0, Max: f.t1}
	}
	return nil
}

// Elevation returns η(t).
func (f *Forcing) Elevation(t float64) (float64, error) {
	if err := f.check(t); err != nil {
		return 0, err
	}
	// Rounding in the interpolation weights must not leave the sample range.
	return math.Max(f.lo, math.Min(f.hi, f.lin.Predict(t))), nil
}

// Velocity returns dη/dt, the slope of the segment containing t.
func (f *Forcing) Velocity(t float64) (float64, error) {
	if err := f.check(t); err != nil {
		return 0, err
	}
	i := sort.SearchFloat64s(f.ts, t)
	if i == 0 {
		i = 1
	}
	if i >= len(f.ts) {
		i = len(f.ts) - 1
	}
	return (f.es[i] - f.es[i-1]) / (f.ts[i] - f.ts[i-1]), nil
}
