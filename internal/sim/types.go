package sim

import (
	"context"

	"github.com/san-kum/buoyopt/internal/dynamo"
	"github.com/san-kum/buoyopt/internal/integrators"
	"github.com/san-kum/buoyopt/internal/physics"
)

// Model is a heave model whose forces can be reconstructed from its state.
type Model interface {
	dynamo.System
	Forces(t float64, x dynamo.State) (physics.Forces, error)
	Acceleration(f physics.Forces) float64
	Elevation(t float64) (float64, error)
}

type Integrator interface {
	Integrate(ctx context.Context, sys dynamo.System, x0 dynamo.State, t0, t1 float64) (*integrators.Solution, error)
}

// Metric consumes output samples in time order.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Config struct {
	OutputRate float64 // samples per second
}

const DefaultOutputRate = 4.0

func DefaultConfig() Config {
	return Config{OutputRate: DefaultOutputRate}
}

// Sample is one point of the output grid.
type Sample struct {
	Time      float64
	Z         float64
	ZDot      float64
	ZDDot     float64
	Elevation float64
	Forces    physics.Forces
}

// Result holds the trajectory on a uniform grid as parallel slices.
type Result struct {
	Time         []float64
	Z            []float64
	ZDot         []float64
	ZDDot        []float64
	Elevation    []float64
	FWave        []float64
	FHydrostatic []float64
	FPTO         []float64
	FRadiation   []float64
	FDrag        []float64

	Stats   integrators.Stats
	Metrics map[string]float64
}

func newResult(n int) *Result {
	col := func() []float64 { return make([]float64, n) }
	return &Result{
		Time:         col(),
		Z:            col(),
		ZDot:         col(),
		ZDDot:        col(),
		Elevation:    col(),
		FWave:        col(),
		FHydrostatic: col(),
		FPTO:         col(),
		FRadiation:   col(),
		FDrag:        col(),
		Metrics:      make(map[string]float64),
	}
}

func (r *Result) Len() int { return len(r.Time) }

func (r *Result) Sample(i int) Sample {
	return Sample{
		Time:      r.Time[i],
		Z:         r.Z[i],
		ZDot:      r.ZDot[i],
		ZDDot:     r.ZDDot[i],
		Elevation: r.Elevation[i],
		Forces: physics.Forces{
			Wave:        r.FWave[i],
			Hydrostatic: r.FHydrostatic[i],
			PTO:         r.FPTO[i],
			Radiation:   r.FRadiation[i],
			Drag:        r.FDrag[i],
		},
	}
}

func (r *Result) set(i int, s Sample) {
	r.Time[i] = s.Time
	r.Z[i] = s.Z
	r.ZDot[i] = s.ZDot
	r.ZDDot[i] = s.ZDDot
	r.Elevation[i] = s.Elevation
	r.FWave[i] = s.Forces.Wave
	r.FHydrostatic[i] = s.Forces.Hydrostatic
	r.FPTO[i] = s.Forces.PTO
	r.FRadiation[i] = s.Forces.Radiation
	r.FDrag[i] = s.Forces.Drag
}

// Append adds s after the last sample, for results rebuilt from storage.
func (r *Result) Append(s Sample) {
	if r.Metrics == nil {
		r.Metrics = make(map[string]float64)
	}
	r.Time = append(r.Time, s.Time)
	r.Z = append(r.Z, s.Z)
	r.ZDot = append(r.ZDot, s.ZDot)
	r.ZDDot = append(r.ZDDot, s.ZDDot)
	r.Elevation = append(r.Elevation, s.Elevation)
	r.FWave = append(r.FWave, s.Forces.Wave)
	r.FHydrostatic = append(r.FHydrostatic, s.Forces.Hydrostatic)
	r.FPTO = append(r.FPTO, s.Forces.PTO)
	r.FRadiation = append(r.FRadiation, s.Forces.Radiation)
	r.FDrag = append(r.FDrag, s.Forces.Drag)
}

func (s Sample) valid() bool {
	f := s.Forces
	for _, v := range []float64{s.Time, s.Z, s.ZDot, s.ZDDot, s.Elevation, f.Wave, f.Hydrostatic, f.PTO, f.Radiation, f.Drag} {
		if !dynamo.IsFinite(v) {
			return false
		}
	}
	return true
}
