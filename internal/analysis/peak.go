package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

// DefaultSubdivisions is the number of sub-intervals scanned per knot interval.
// The derivative of a cubic is quadratic and may change sign twice between
// knots, so one sample per interval can miss a pair of roots.
const DefaultSubdivisions = 4

const maxBrentIter = 100

// Extremum is the signed acceleration at the instant of largest magnitude.
type Extremum struct {
	Time      float64 `json:"time"`
	Value     float64 `json:"value"`
	FromRoots bool    `json:"from_roots"`
	Roots     int     `json:"roots"`
}

func (e Extremum) Abs() float64 { return math.Abs(e.Value) }

type AccelerationAnalyzer struct {
	Subdivisions int
	Tol          float64
}

func NewAccelerationAnalyzer(subdivisions int) *AccelerationAnalyzer {
	if subdivisions < 1 {
		subdivisions = DefaultSubdivisions
	}
	return &AccelerationAnalyzer{Subdivisions: subdivisions, Tol: DefaultRootTol}
}

// Peak locates max |a(t)| over the sampled window. It fits a natural cubic
// spline through (times, accel), finds every sign change of its derivative
// and evaluates the spline there and at both endpoints. With no sign change
// the largest raw sample is returned.
func (a *AccelerationAnalyzer) Peak(times, accel []float64) (Extremum, error) {
	if len(times) != len(accel) {
		return Extremum{}, fmt.Errorf("peak: %d times for %d samples", len(times), len(accel))
	}
	if len(times) < 2 {
		return Extremum{}, fmt.Errorf("peak: %d samples: %w", len(times), dynamo.ErrInsufficientData)
	}

	best := rawPeak(times, accel)
	if len(times) < 3 {
		return best, nil
	}

	var spline interp.NaturalCubic
	if err := spline.Fit(times, accel); err != nil {
		return Extremum{}, fmt.Errorf("peak: %w", err)
	}

	roots := a.jerkRoots(&spline, times)
	if len(roots) == 0 {
		return best, nil
	}

	best.FromRoots = true
	best.Roots = len(roots)
	for _, t := range roots {
		v := spline.Predict(t)
		if math.Abs(v) > best.Abs() {
			best.Time, best.Value = t, v
		}
	}
	return best, nil
}

// jerkRoots scans each knot interval for sign changes of the spline
// derivative and refines every bracket with Brent's method.
func (a *AccelerationAnalyzer) jerkRoots(spline *interp.NaturalCubic, times []float64) []float64 {
	subdivisions := a.Subdivisions
	if subdivisions < 1 {
		subdivisions = DefaultSubdivisions
	}
	jerk := spline.PredictDerivative

	var roots []float64
	prevT := times[0]
	prevJ := jerk(prevT)
	for i := 0; i+1 < len(times); i++ {
		lo, hi := times[i], times[i+1]
		for j := 1; j <= subdivisions; j++ {
			t := lo + (hi-lo)*float64(j)/float64(subdivisions)
			if j == subdivisions {
				t = hi
			}
			jt := jerk(t)
			switch {
			case prevJ == 0:
				if jt != 0 {
					roots = append(roots, prevT)
				}
			case jt != 0 && (prevJ > 0) != (jt > 0):
				if r, err := Brent(jerk, prevT, t, a.Tol, maxBrentIter); err == nil {
					roots = append(roots, r)
				}
			}
			prevT, prevJ = t, jt
		}
	}
	return roots
}

// rawPeak is the sampled maximum; the endpoints are samples too.
func rawPeak(times, accel []float64) Extremum {
	best := Extremum{Time: times[0], Value: accel[0]}
	for i, v := range accel {
		if math.Abs(v) > best.Abs() {
			best.Time, best.Value = times[i], v
		}
	}
	return best
}
