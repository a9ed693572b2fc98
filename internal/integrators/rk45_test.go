package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) StateDim() int { return 2 }

func (h *harmonicOscillator) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{x[1], -x[0]}, nil
}

type boundedSystem struct{ limit float64 }

func (b *boundedSystem) StateDim() int { return 1 }

func (b *boundedSystem) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	if t > b.limit {
		return nil, &dynamo.DomainError{T: t, Min: 0, Max: b.limit}
	}
	return dynamo.State{-x[0]}, nil
}

type nanSystem struct{}

func (nanSystem) StateDim() int { return 1 }

func (nanSystem) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	return dynamo.State{math.NaN()}, nil
}

func tight() Options {
	opts := DefaultOptions()
	opts.RTol = 1e-9
	opts.ATol = 1e-11
	return opts
}

func TestRK45Accuracy(t *testing.T) {
	sol, err := NewRK45(tight()).Integrate(context.Background(), &harmonicOscillator{}, dynamo.State{1, 0}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}

	x := sol.At(10)
	if math.Abs(x[0]-math.Cos(10)) > 1e-6 || math.Abs(x[1]+math.Sin(10)) > 1e-6 {
		t.Errorf("x(10) = %v, want [%v %v]", x, math.Cos(10), -math.Sin(10))
	}
	if sol.Stats.Accepted == 0 || sol.Stats.Evaluations < 6*sol.Stats.Accepted {
		t.Errorf("implausible stats %+v", sol.Stats)
	}
}

func TestRK45DenseOutput(t *testing.T) {
	sol, err := NewRK45(tight()).Integrate(context.Background(), &harmonicOscillator{}, dynamo.State{1, 0}, 0, 2*math.Pi)
	if err != nil {
		t.Fatal(err)
	}

	// Points between step boundaries come from the continuous extension.
	for i := 0; i <= 997; i++ {
		tt := 2 * math.Pi * float64(i) / 997
		x := sol.At(tt)
		if d := math.Abs(x[0] - math.Cos(tt)); d > 1e-5 {
			t.Fatalf("t=%.4f: z error %.2e", tt, d)
		}
		if d := math.Abs(x[1] + math.Sin(tt)); d > 1e-5 {
			t.Fatalf("t=%.4f: ż error %.2e", tt, d)
		}
	}
}

func TestRK45SegmentsCoverSpan(t *testing.T) {
	sol, err := NewRK45(DefaultOptions()).Integrate(context.Background(), &harmonicOscillator{}, dynamo.State{1, 0}, 3, 17)
	if err != nil {
		t.Fatal(err)
	}

	segs := sol.Segments()
	if segs[0].T0 != 3 {
		t.Errorf("first segment starts at %v", segs[0].T0)
	}
	for i := 1; i < len(segs); i++ {
		if math.Abs(segs[i].T0-(segs[i-1].T0+segs[i-1].H)) > 1e-12 {
			t.Fatalf("gap between segments %d and %d", i-1, i)
		}
	}
	last := segs[len(segs)-1]
	if math.Abs(last.T0+last.H-17) > 1e-12 {
		t.Errorf("last segment ends at %v", last.T0+last.H)
	}
}

func TestRK45MaxStep(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxStep = 0.05

	sol, err := NewRK45(opts).Integrate(context.Background(), &harmonicOscillator{}, dynamo.State{1, 0}, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i, seg := range sol.Segments() {
		if seg.H > opts.MaxStep*(1+1e-12) {
			t.Fatalf("segment %d: h = %v exceeds %v", i, seg.H, opts.MaxStep)
		}
	}
	if sol.Stats.Accepted < 100 {
		t.Errorf("accepted = %d, want at least 100", sol.Stats.Accepted)
	}
}

func TestRK45StageTimesStayInSpan(t *testing.T) {
	sys := &boundedSystem{limit: 4}
	if _, err := NewRK45(DefaultOptions()).Integrate(context.Background(), sys, dynamo.State{1}, 0, 4); err != nil {
		t.Fatalf("integration touched t > 4: %v", err)
	}
}

func TestRK45Failures(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSteps = 3

	tests := []struct {
		name string
		sys  dynamo.System
		opts Options
		t1   float64
	}{
		{"step budget", &harmonicOscillator{}, opts, 100},
		{"domain", &boundedSystem{limit: 1}, DefaultOptions(), 2},
		{"non-finite", nanSystem{}, DefaultOptions(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x0 := make(dynamo.State, tt.sys.StateDim())
			x0[0] = 1
			_, err := NewRK45(tt.opts).Integrate(context.Background(), tt.sys, x0, 0, tt.t1)
			if !errors.Is(err, dynamo.ErrIntegration) {
				t.Fatalf("err = %v, want ErrIntegration", err)
			}
		})
	}
}

func TestRK45DomainErrorUnwraps(t *testing.T) {
	_, err := NewRK45(DefaultOptions()).Integrate(context.Background(), &boundedSystem{limit: 1}, dynamo.State{1}, 0, 2)
	if !errors.Is(err, dynamo.ErrDomain) {
		t.Errorf("err = %v, want wrapped ErrDomain", err)
	}
}

func TestRK45Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRK45(DefaultOptions()).Integrate(ctx, &harmonicOscillator{}, dynamo.State{1, 0}, 0, 10)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	bad := []Options{
		{RTol: 0, ATol: 1, MaxStep: 1, MaxSteps: 1},
		{RTol: 1, ATol: -1, MaxStep: 1, MaxSteps: 1},
		{RTol: 1, ATol: 1, MaxStep: math.NaN(), MaxSteps: 1},
		{RTol: 1, ATol: 1, MaxStep: 1, MaxSteps: 0},
	}
	for i, o := range bad {
		if err := o.Validate(); !errors.Is(err, dynamo.ErrInvalidParameter) {
			t.Errorf("case %d: err = %v", i, err)
		}
	}
	if err := DefaultOptions().Validate(); err != nil {
		t.Error(err)
	}
}
