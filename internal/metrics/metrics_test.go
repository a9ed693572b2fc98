package metrics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"github.com/san-kum/buoyopt/internal/physics"
	"github.com/san-kum/buoyopt/internal/sim"
)

func feed(m sim.Metric, n int, dt float64, zdot func(float64) float64) {
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		v := zdot(t)
		m.Observe(sim.Sample{Time: t, ZDot: v, Z: math.Sin(t), Forces: physics.Forces{PTO: -1000 * v}})
	}
}

func TestMeanPowerSinusoid(t *testing.T) {
	// c·(A ω cos ωt)² averages to c·A²ω²/2 over whole periods.
	const c, amp, period = 1000.0, 0.5, 8.0
	omega := 2 * math.Pi / period
	m := NewMeanPower(c, 0.9, 48)

	feed(m, 4*400+1, 0.25, func(t float64) float64 { return amp * omega * math.Cos(omega*t) })

	want := 0.9 * c * amp * amp * omega * omega / 2
	if !m.Ok() {
		t.Fatal("no samples retained")
	}
	if !scalar.EqualWithinRel(m.Value(), want, 1e-3) {
		t.Errorf("mean power = %v, want %v", m.Value(), want)
	}
}

func TestMeanPowerConstant(t *testing.T) {
	m := NewMeanPower(200, 1, 10)
	feed(m, 101, 0.5, func(float64) float64 { return 2 })

	if !scalar.EqualWithinAbs(m.Value(), 800, 1e-9) {
		t.Errorf("mean power = %v, want 800", m.Value())
	}
	if !scalar.EqualWithinAbs(m.Energy(), 800*40, 1e-6) {
		t.Errorf("energy = %v, want %v", m.Energy(), 800*40)
	}
}

func TestMeanPowerNonNegative(t *testing.T) {
	m := NewMeanPower(5e4, 0.8, 0)
	feed(m, 500, 0.1, func(t float64) float64 { return math.Sin(3*t) - 0.4*math.Cos(7*t) })
	if m.Value() < 0 {
		t.Errorf("negative power %v", m.Value())
	}
}

func TestMeanPowerCutoff(t *testing.T) {
	m := NewMeanPower(1, 1, 50)
	feed(m, 100, 0.25, func(float64) float64 { return 1 })
	if m.Ok() {
		t.Error("samples before the cutoff were retained")
	}
	if m.Value() != 0 {
		t.Errorf("value = %v", m.Value())
	}

	// Cutoff is measured from the first observed time.
	m.Reset()
	for _, tt := range []float64{100, 140, 150, 160} {
		m.Observe(sim.Sample{Time: tt, ZDot: 1})
	}
	if !m.Ok() || m.Value() != 1 {
		t.Errorf("after reset: ok=%v value=%v", m.Ok(), m.Value())
	}
}

func TestLimitMonitors(t *testing.T) {
	d := NewMaxDisplacement()
	f := NewMaxPTOForce()
	for _, m := range []sim.Metric{d, f} {
		feed(m, 200, 0.05, func(t float64) float64 { return -3 * math.Cos(t) })
	}

	if !scalar.EqualWithinAbs(d.Value(), 1, 1e-3) {
		t.Errorf("max displacement = %v, want about 1", d.Value())
	}
	if !scalar.EqualWithinAbs(f.Value(), 3000, 1e-9) {
		t.Errorf("max pto force = %v, want 3000", f.Value())
	}

	d.Reset()
	f.Reset()
	if d.Value() != 0 || f.Value() != 0 {
		t.Error("reset did not clear monitors")
	}
}
