package integrators

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0

	// continuous extension
	d1 = -12715105075.0 / 11282082432.0
	d3 = 87487479700.0 / 32700410799.0
	d4 = -10690763975.0 / 1880347072.0
	d5 = 701980252875.0 / 199316789632.0
	d6 = -1453857185.0 / 822651844.0
	d7 = 69997945.0 / 29380423.0
)

const (
	DefaultRTol     = 1e-3
	DefaultATol     = 1e-6
	DefaultMaxStep  = 0.5
	DefaultMaxSteps = 1_000_000
)

// Options control step-size selection.
type Options struct {
	RTol     float64
	ATol     float64
	MaxStep  float64 // hard ceiling on h
	MaxSteps int     // accepted + rejected steps before giving up
}

func DefaultOptions() Options {
	return Options{
		RTol:     DefaultRTol,
		ATol:     DefaultATol,
		MaxStep:  DefaultMaxStep,
		MaxSteps: DefaultMaxSteps,
	}
}

func (o Options) Validate() error {
	switch {
	case !(o.RTol > 0):
		return &dynamo.InvalidParameterError{Name: "rtol", Value: o.RTol, Reason: "must be positive"}
	case !(o.ATol > 0):
		return &dynamo.InvalidParameterError{Name: "atol", Value: o.ATol, Reason: "must be positive"}
	case !(o.MaxStep > 0):
		return &dynamo.InvalidParameterError{Name: "max_step", Value: o.MaxStep, Reason: "must be positive"}
	case o.MaxSteps <= 0:
		return &dynamo.InvalidParameterError{Name: "max_steps", Value: float64(o.MaxSteps), Reason: "must be positive"}
	}
	return nil
}

type RK45 struct {
	opts     Options
	safety   float64
	minScale float64
	maxScale float64
}

func NewRK45(opts Options) *RK45 {
	return &RK45{
		opts:     opts,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Options() Options { return r.opts }

// stepper holds the scratch state for one integration run.
type stepper struct {
	sys    dynamo.System
	t1     float64
	n      int
	k      [7]dynamo.State
	tmp    dynamo.State
	evals  int
}

func (s *stepper) derive(x dynamo.State, t float64) (dynamo.State, error) {
	s.evals++
	// Stage times never leave the span, so the forcing stays in its domain.
	if t > s.t1 {
		t = s.t1
	}
	return s.sys.Derive(x, t)
}

// attempt takes one trial step of size h from (t, x) with k[0] = f(t, x)
// already populated. It returns the proposed state and the scaled RMS error.
func (s *stepper) attempt(x dynamo.State, t, h float64, opts Options) (dynamo.State, float64, error) {
	n := s.n
	k := &s.k
	var err error

	stage := func(dst dynamo.State, coef ...float64) {
		for i := 0; i < n; i++ {
			sum := 0.0
			for j, c := range coef {
				sum += c * k[j][i]
			}
			dst[i] = x[i] + h*sum
		}
	}

	stage(s.tmp, b21)
	if k[1], err = s.derive(s.tmp, t+a2*h); err != nil {
		return nil, 0, err
	}
	stage(s.tmp, b31, b32)
	if k[2], err = s.derive(s.tmp, t+a3*h); err != nil {
		return nil, 0, err
	}
	stage(s.tmp, b41, b42, b43)
	if k[3], err = s.derive(s.tmp, t+a4*h); err != nil {
		return nil, 0, err
	}
	stage(s.tmp, b51, b52, b53, b54)
	if k[4], err = s.derive(s.tmp, t+a5*h); err != nil {
		return nil, 0, err
	}
	stage(s.tmp, b61, b62, b63, b64, b65)
	if k[5], err = s.derive(s.tmp, t+h); err != nil {
		return nil, 0, err
	}

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + h*(c1*k[0][i]+c3*k[2][i]+c4*k[3][i]+c5*k[4][i]+c6*k[5][i])
	}
	if !xNew.IsValid() {
		return xNew, math.Inf(1), nil
	}
	if k[6], err = s.derive(xNew, t+h); err != nil {
		return nil, 0, err
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
		scale := opts.ATol + math.Max(math.Abs(x[i]), math.Abs(xNew[i]))*opts.RTol
		e := errEst / scale
		sum += e * e
	}
	return xNew, math.Sqrt(sum / float64(n)), nil
}

// segment builds the continuous extension of the accepted step just taken.
func (s *stepper) segment(x, xNew dynamo.State, t, h float64) Segment {
	n := s.n
	k := &s.k
	seg := Segment{T0: t, H: h, coef: make([]float64, 5*n)}
	r := seg.coef
	for i := 0; i < n; i++ {
		diff := xNew[i] - x[i]
		bspl := h*k[0][i] - diff
		r[i] = x[i]
		r[n+i] = diff
		r[2*n+i] = bspl
		r[3*n+i] = diff - h*k[6][i] - bspl
		r[4*n+i] = h * (d1*k[0][i] + d3*k[2][i] + d4*k[3][i] + d5*k[4][i] + d6*k[5][i] + d7*k[6][i])
	}
	return seg
}

// Integrate solves sys from x0 over [t0, t1] and returns the dense solution.
func (r *RK45) Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, t0, t1 float64) (*Solution, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, err
	}
	if !dynamo.IsFinite(t0) || !dynamo.IsFinite(t1) || t1 <= t0 {
		return nil, fmt.Errorf("rk45: invalid span [%g, %g]: %w", t0, t1, dynamo.ErrInvalidParameter)
	}
	if len(x0) != sys.StateDim() {
		return nil, fmt.Errorf("rk45: initial state has %d components, system wants %d: %w",
			len(x0), sys.StateDim(), dynamo.ErrInvalidParameter)
	}

	n := len(x0)
	s := &stepper{sys: sys, t1: t1, n: n, tmp: make(dynamo.State, n)}
	sol := &Solution{t0: t0, t1: t1, dim: n}

	fail := func(step int, t float64, reason string, err error) (*Solution, error) {
		sol.Stats.Evaluations = s.evals
		return sol, &dynamo.IntegrationError{Step: step, Time: t, Reason: reason, Wrapped: err}
	}

	x := x0.Clone()
	t := t0
	var err error
	if s.k[0], err = s.derive(x, t); err != nil {
		return fail(0, t, "derivative evaluation failed", err)
	}
	if !s.k[0].IsValid() {
		return fail(0, t, "non-finite derivative", nil)
	}

	h := r.initialStep(s, x, t)
	steps := 0
	rejected := false
	for t < t1 {
		if err := ctx.Err(); err != nil {
			return sol, fmt.Errorf("rk45: %w", err)
		}
		if steps >= r.opts.MaxSteps {
			return fail(steps, t, fmt.Sprintf("step budget of %d exhausted", r.opts.MaxSteps), nil)
		}

		minStep := 10 * (math.Nextafter(math.Abs(t), math.Inf(1)) - math.Abs(t))
		h = math.Min(h, r.opts.MaxStep)
		last := false
		if t+h >= t1 {
			h = t1 - t
			last = true
		}
		if h < minStep {
			return fail(steps, t, fmt.Sprintf("step size %g below resolution", h), nil)
		}

		steps++
		xNew, errNorm, err := s.attempt(x, t, h, r.opts)
		if err != nil {
			return fail(steps, t, "derivative evaluation failed", err)
		}

		if !(errNorm < 1) {
			sol.Stats.Rejected++
			scale := r.minScale
			if dynamo.IsFinite(errNorm) {
				scale = math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2))
			}
			h *= scale
			rejected = true
			continue
		}

		sol.segments = append(sol.segments, s.segment(x, xNew, t, h))
		sol.Stats.Accepted++

		if last {
			t = t1
		} else {
			t += h
		}
		x = xNew
		s.k[0] = s.k[6]

		scale := r.maxScale
		if errNorm > 0 {
			scale = math.Min(r.maxScale, r.safety*math.Pow(errNorm, -0.2))
		}
		if rejected {
			scale = math.Min(1, scale)
			rejected = false
		}
		h *= scale
	}

	sol.Stats.Evaluations = s.evals
	return sol, nil
}

// initialStep estimates a first step from the local scale of the solution.
func (r *RK45) initialStep(s *stepper, x dynamo.State, t float64) float64 {
	n := s.n
	f0 := s.k[0]
	rms := func(v func(i int) float64) float64 {
		sum := 0.0
		for i := 0; i < n; i++ {
			sc := r.opts.ATol + math.Abs(x[i])*r.opts.RTol
			e := v(i) / sc
			sum += e * e
		}
		return math.Sqrt(sum / float64(n))
	}

	dx0 := rms(func(i int) float64 { return x[i] })
	df0 := rms(func(i int) float64 { return f0[i] })
	h0 := 1e-6
	if dx0 >= 1e-5 && df0 >= 1e-5 {
		h0 = 0.01 * dx0 / df0
	}
	h0 = math.Min(h0, s.t1-t)

	x1 := make(dynamo.State, n)
	for i := range x1 {
		x1[i] = x[i] + h0*f0[i]
	}
	f1, err := s.derive(x1, t+h0)
	if err != nil {
		return math.Min(h0, r.opts.MaxStep)
	}
	df1 := rms(func(i int) float64 { return f1[i] - f0[i] }) / h0

	var h1 float64
	if m := math.Max(df0, df1); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 0.2)
	}
	h := math.Min(math.Min(100*h0, h1), r.opts.MaxStep)
	if !(h > 0) || !dynamo.IsFinite(h) {
		return h0
	}
	return h
}
