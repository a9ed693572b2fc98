package physics

import "github.com/san-kum/buoyopt/internal/dynamo"

const DefaultEfficiency = 0.90

// Toggles switch individual physical effects on or off.
type Toggles struct {
	AddedMass          bool // include water entrained by the hull
	Radiation          bool // include damping from radiated waves
	Drag               bool // include quadratic viscous drag
	Efficiency         bool // apply PTO efficiency to electrical power
	VelocityExcitation bool // add c_rad·η̇ to the wave force
}

func DefaultToggles() Toggles {
	return Toggles{AddedMass: true, Radiation: true, Drag: true, Efficiency: true}
}

// Properties is the validated parameter set for one evaluation. Treat it as
// a value: derive variants with WithCandidate rather than mutating fields.
type Properties struct {
	Mass       float64 // kg
	PTODamping float64 // N·s/m
	Efficiency float64 // (0, 1]

	Geometry     Geometry
	Environment  Environment
	Coefficients Coefficients
	Toggles      Toggles
}

// NewProperties computes the coefficients for the geometry and validates the
// complete set.
func NewProperties(mass, ptoDamping, efficiency float64, g Geometry, env Environment, tg Toggles) (Properties, error) {
	coeffs, err := ComputeCoefficients(g, env)
	if err != nil {
		return Properties{}, err
	}
	p := Properties{
		Mass:         mass,
		PTODamping:   ptoDamping,
		Efficiency:   efficiency,
		Geometry:     g,
		Environment:  env,
		Coefficients: coeffs,
		Toggles:      tg,
	}
	if err := p.validate(); err != nil {
		return Properties{}, err
	}
	return p, nil
}

// WithCandidate returns a validated copy with a new mass and PTO damping.
// The coefficients do not depend on either, so they are reused.
func (p Properties) WithCandidate(mass, ptoDamping float64) (Properties, error) {
	p.Mass = mass
	p.PTODamping = ptoDamping
	if err := p.validate(); err != nil {
		return Properties{}, err
	}
	return p, nil
}

// AddedMass is the entrained mass actually used in the equation of motion.
func (p Properties) AddedMass() float64 {
	if !p.Toggles.AddedMass {
		return 0
	}
	return p.Coefficients.AddedMass
}

func (p Properties) EffectiveMass() float64 { return p.Mass + p.AddedMass() }

// ConversionEfficiency is the mechanical-to-electrical factor applied to power.
func (p Properties) ConversionEfficiency() float64 {
	if !p.Toggles.Efficiency {
		return 1
	}
	return p.Efficiency
}

func (p Properties) validate() error {
	if err := positive("mass", p.Mass); err != nil {
		return err
	}
	if err := nonNegative("pto_damping", p.PTODamping); err != nil {
		return err
	}
	if !dynamo.IsFinite(p.Efficiency) || p.Efficiency <= 0 || p.Efficiency > 1 {
		return &dynamo.InvalidParameterError{Name: "pto_efficiency", Value: p.Efficiency, Reason: "must be in (0, 1]"}
	}
	if m := p.EffectiveMass(); m <= 0 {
		return &dynamo.InvalidParameterError{Name: "effective_mass", Value: m, Reason: "mass + added mass must be positive"}
	}
	return nil
}
