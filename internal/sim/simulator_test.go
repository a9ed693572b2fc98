package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/buoyopt/internal/dynamo"
	"github.com/san-kum/buoyopt/internal/integrators"
	"github.com/san-kum/buoyopt/internal/physics"
	"github.com/san-kum/buoyopt/internal/wave"
)

func newBuoy(t *testing.T, amplitude, duration float64) *physics.Buoy {
	t.Helper()
	rec, err := wave.Sinusoid(amplitude, 8, duration, 0.25)
	if err != nil {
		t.Fatal(err)
	}
	f, err := wave.NewForcing(rec)
	if err != nil {
		t.Fatal(err)
	}
	p, err := physics.NewProperties(10000, 20000, physics.DefaultEfficiency,
		physics.Geometry{Diameter: 8, Draft: 6}, physics.DefaultEnvironment(), physics.DefaultToggles())
	if err != nil {
		t.Fatal(err)
	}
	b, err := physics.NewBuoy(p, f)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newSimulator() *Simulator {
	return New(integrators.NewRK45(integrators.DefaultOptions()), DefaultConfig())
}

type countMetric struct{ n int }

func (c *countMetric) Name() string { return "count" }
func (c *countMetric) Observe(Sample) { c.n++ }
func (c *countMetric) Value() float64 { return float64(c.n) }
func (c *countMetric) Reset() { c.n = 0 }

type failingIntegrator struct{}

func (failingIntegrator) Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, t0, t1 float64) (*integrators.Solution, error) {
	return nil, &dynamo.IntegrationError{Step: 7, Time: t0, Reason: "diverged"}
}

func TestGrid(t *testing.T) {
	tests := []struct {
		t0, t1, rate float64
		n            int
	}{
		{0, 600, 4, 2401},
		{0, 10.1, 4, 42},
		{5, 6, 1, 2},
		{0, 0.1, 1, 2},
		{0, 1, 10, 11},
	}
	for _, tt := range tests {
		g := Grid(tt.t0, tt.t1, tt.rate)
		if len(g) != tt.n {
			t.Errorf("Grid(%v, %v, %v): %d points, want %d", tt.t0, tt.t1, tt.rate, len(g), tt.n)
			continue
		}
		if g[0] != tt.t0 || g[len(g)-1] != tt.t1 {
			t.Errorf("Grid(%v, %v, %v) spans [%v, %v]", tt.t0, tt.t1, tt.rate, g[0], g[len(g)-1])
		}
		step := (tt.t1 - tt.t0) / float64(tt.n-1)
		if step > 1/tt.rate+1e-12 {
			t.Errorf("Grid(%v, %v, %v): step %v coarser than 1/rate", tt.t0, tt.t1, tt.rate, step)
		}
		for i := 1; i < len(g); i++ {
			if math.Abs(g[i]-g[i-1]-step) > 1e-9 {
				t.Errorf("Grid(%v, %v, %v): uneven step at %d: %v", tt.t0, tt.t1, tt.rate, i, g[i]-g[i-1])
				break
			}
		}
	}
}

func TestSimulatorRun(t *testing.T) {
	b := newBuoy(t, 1, 100)
	s := newSimulator()
	count := &countMetric{}
	s.AddMetric(count)

	res, err := s.Run(context.Background(), b, 0, 100)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.Len() != 401 {
		t.Fatalf("expected 401 samples, got %d", res.Len())
	}
	if res.Time[0] != 0 || res.Time[400] != 100 {
		t.Errorf("grid spans [%v, %v]", res.Time[0], res.Time[400])
	}
	if res.Z[0] != 0 || res.ZDot[0] != 0 {
		t.Errorf("initial state [%v %v], want rest", res.Z[0], res.ZDot[0])
	}
	if res.Metrics["count"] != 401 {
		t.Errorf("metric saw %v samples", res.Metrics["count"])
	}
	if res.Stats.Accepted < 200 {
		t.Errorf("accepted %d steps, max step should force at least 200", res.Stats.Accepted)
	}

	mEff := b.Properties().EffectiveMass()
	for i := 0; i < res.Len(); i++ {
		f := res.Sample(i).Forces
		if d := math.Abs(res.ZDDot[i] - f.Total()/mEff); d > 1e-9 {
			t.Fatalf("sample %d: acceleration inconsistent with forces (%g)", i, d)
		}
		if f.PTO != -20000*res.ZDot[i] {
			t.Fatalf("sample %d: pto force %v", i, f.PTO)
		}
	}

	// A 1 m wave cannot drive a heavily damped buoy through metres of stroke.
	for i, z := range res.Z {
		if math.Abs(z) > 3 {
			t.Fatalf("sample %d: |z| = %v", i, z)
		}
	}
}

func TestSimulatorCalmSea(t *testing.T) {
	res, err := newSimulator().Run(context.Background(), newBuoy(t, 0, 30), 0, 30)
	if err != nil {
		t.Fatal(err)
	}
	for i := range res.Z {
		if res.Z[i] != 0 || res.ZDot[i] != 0 || res.ZDDot[i] != 0 {
			t.Fatalf("sample %d moved in calm water", i)
		}
	}
}

func TestSimulatorInvalid(t *testing.T) {
	b := newBuoy(t, 1, 10)

	if _, err := newSimulator().Run(context.Background(), b, 5, 5); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("empty span: err = %v", err)
	}

	s := New(integrators.NewRK45(integrators.DefaultOptions()), Config{OutputRate: 0})
	if _, err := s.Run(context.Background(), b, 0, 10); !errors.Is(err, dynamo.ErrInvalidParameter) {
		t.Errorf("zero rate: err = %v", err)
	}
}

func TestSimulatorIntegrationError(t *testing.T) {
	s := New(failingIntegrator{}, DefaultConfig())

	_, err := s.Run(context.Background(), newBuoy(t, 1, 10), 0, 10)
	var ierr *dynamo.IntegrationError
	if !errors.As(err, &ierr) || ierr.Step != 7 {
		t.Errorf("err = %v, want the integrator's failure", err)
	}
}

func TestSimulatorDomainOverrun(t *testing.T) {
	// Asking for more than the record covers must fail, not extrapolate.
	_, err := newSimulator().Run(context.Background(), newBuoy(t, 1, 10), 0, 20)
	if !errors.Is(err, dynamo.ErrDomain) {
		t.Errorf("err = %v, want ErrDomain", err)
	}
}
