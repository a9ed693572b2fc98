package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

// minEffectiveMass guards the division in the equation of motion.
const minEffectiveMass = 1e-9

// Excitation supplies the incident wave at time t.
type Excitation interface {
	Elevation(t float64) (float64, error)
	Velocity(t float64) (float64, error)
}

// Forces is the breakdown of the heave force at one instant, in newtons.
type Forces struct {
	Wave        float64
	Hydrostatic float64
	PTO         float64
	Radiation   float64
	Drag        float64
}

func (f Forces) Total() float64 {
	return f.Wave + f.Hydrostatic + f.PTO + f.Radiation + f.Drag
}

// Buoy is the heave equation of motion with state [z, ż].
type Buoy struct {
	props   Properties
	forcing Excitation
	mTotal  float64
}

func NewBuoy(p Properties, forcing Excitation) (*Buoy, error) {
	if forcing == nil {
		return nil, fmt.Errorf("buoy: nil forcing")
	}
	m := p.EffectiveMass()
	if !dynamo.IsFinite(m) || m <= minEffectiveMass {
		return nil, &dynamo.InvalidParameterError{Name: "effective_mass", Value: m, Reason: "mass + added mass must be positive"}
	}
	return &Buoy{props: p, forcing: forcing, mTotal: m}, nil
}

func (b *Buoy) StateDim() int { return 2 }

func (b *Buoy) Properties() Properties { return b.props }

// Forces evaluates every force term at (t, x).
func (b *Buoy) Forces(t float64, x dynamo.State) (Forces, error) {
	z, zDot := x[0], x[1]
	c := b.props.Coefficients
	tg := b.props.Toggles

	eta, err := b.forcing.Elevation(t)
	if err != nil {
		return Forces{}, err
	}

	f := Forces{
		Wave:        c.HydrostaticStiffness * eta,
		Hydrostatic: -c.HydrostaticStiffness * z,
		PTO:         -b.props.PTODamping * zDot,
	}
	if tg.VelocityExcitation {
		etaDot, err := b.forcing.Velocity(t)
		if err != nil {
			return Forces{}, err
		}
		f.Wave += c.RadiationDamping * etaDot
	}
	if tg.Radiation {
		f.Radiation = -c.RadiationDamping * zDot
	}
	if tg.Drag {
		f.Drag = -c.DragCoefficient * math.Abs(zDot) * zDot
	}
	return f, nil
}

// Elevation is the incident wave η(t) seen by the buoy.
func (b *Buoy) Elevation(t float64) (float64, error) {
	return b.forcing.Elevation(t)
}

// Acceleration converts a force breakdown into z̈.
func (b *Buoy) Acceleration(f Forces) float64 {
	return f.Total() / b.mTotal
}

func (b *Buoy) Derive(x dynamo.State, t float64) (dynamo.State, error) {
	f, err := b.Forces(t, x)
	if err != nil {
		return nil, err
	}
	return dynamo.State{x[1], b.Acceleration(f)}, nil
}

func (b *Buoy) GetParams() map[string]float64 {
	c := b.props.Coefficients
	return map[string]float64{
		"mass":           b.props.Mass,
		"added_mass":     b.props.AddedMass(),
		"pto_damping":    b.props.PTODamping,
		"stiffness":      c.HydrostaticStiffness,
		"radiation":      c.RadiationDamping,
		"drag":           c.DragCoefficient,
		"efficiency":     b.props.ConversionEfficiency(),
		"natural_period": 2 * math.Pi * math.Sqrt(b.mTotal/c.HydrostaticStiffness),
	}
}
