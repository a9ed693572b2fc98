package metrics

import (
	"github.com/san-kum/buoyopt/internal/sim"
)

const DefaultTransientCutoff = 50.0

// MeanPower is the time-averaged electrical power c_pto·ż²·η over samples
// at or after the transient cutoff, integrated with the trapezoidal rule.
type MeanPower struct {
	name       string
	damping    float64
	efficiency float64
	cutoff     float64

	seen       bool
	t0         float64
	samples    int
	prevT      float64
	prevP      float64
	start, end float64
	energy     float64
}

func NewMeanPower(damping, efficiency, transientCutoff float64) *MeanPower {
	return &MeanPower{
		name:       "mean_power",
		damping:    damping,
		efficiency: efficiency,
		cutoff:     transientCutoff,
	}
}

func (m *MeanPower) Name() string { return m.name }

func (m *MeanPower) Observe(s sim.Sample) {
	if !m.seen {
		m.seen = true
		m.t0 = s.Time
	}
	if s.Time < m.t0+m.cutoff {
		return
	}

	p := m.damping * s.ZDot * s.ZDot
	if m.samples == 0 {
		m.start = s.Time
	} else {
		m.energy += 0.5 * (p + m.prevP) * (s.Time - m.prevT)
	}
	m.prevT, m.prevP = s.Time, p
	m.end = s.Time
	m.samples++
}

// Ok reports whether any sample fell after the cutoff.
func (m *MeanPower) Ok() bool { return m.samples > 0 }

// Value is the mean electrical power in watts. A single retained sample
// yields its instantaneous power.
func (m *MeanPower) Value() float64 {
	switch {
	case m.samples == 0:
		return 0
	case m.end <= m.start:
		return m.prevP * m.efficiency
	}
	return m.energy / (m.end - m.start) * m.efficiency
}

// Energy is the absorbed mechanical energy over the covered window, in joules.
func (m *MeanPower) Energy() float64 { return m.energy }

func (m *MeanPower) Reset() {
	*m = MeanPower{name: m.name, damping: m.damping, efficiency: m.efficiency, cutoff: m.cutoff}
}

// InstantaneousPower returns c·ż² for every sample of a result.
func InstantaneousPower(res *sim.Result, damping, efficiency float64) []float64 {
	p := make([]float64, res.Len())
	for i, v := range res.ZDot {
		p[i] = damping * v * v * efficiency
	}
	return p
}
