package metrics

import (
	"math"

	"github.com/san-kum/buoyopt/internal/sim"
)

// MaxDisplacement tracks the largest heave excursion |z|.
type MaxDisplacement struct {
	name string
	max  float64
}

func NewMaxDisplacement() *MaxDisplacement {
	return &MaxDisplacement{name: "max_displacement"}
}

func (m *MaxDisplacement) Name() string { return m.name }

func (m *MaxDisplacement) Observe(s sim.Sample) {
	m.max = math.Max(m.max, math.Abs(s.Z))
}

func (m *MaxDisplacement) Value() float64 { return m.max }

func (m *MaxDisplacement) Reset() { m.max = 0 }

// MaxPTOForce tracks the largest generator force |c_pto·ż|.
type MaxPTOForce struct {
	name string
	max  float64
}

func NewMaxPTOForce() *MaxPTOForce {
	return &MaxPTOForce{name: "max_pto_force"}
}

func (m *MaxPTOForce) Name() string { return m.name }

func (m *MaxPTOForce) Observe(s sim.Sample) {
	m.max = math.Max(m.max, math.Abs(s.Forces.PTO))
}

func (m *MaxPTOForce) Value() float64 { return m.max }

func (m *MaxPTOForce) Reset() { m.max = 0 }
