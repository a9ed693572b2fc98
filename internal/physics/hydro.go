package physics

import (
	"math"

	"github.com/san-kum/buoyopt/internal/dynamo"
)

const (
	DefaultGravity        = 9.81
	DefaultWaterDensity   = 1025.0 // sea water, kg/m³
	DefaultAddedMassCoeff = 0.5
	DefaultDragCoeff      = 1.0 // bluff body
	DefaultPeakFrequency  = 0.8 // rad/s
)

// Geometry of a vertical cylinder buoy.
type Geometry struct {
	Diameter float64 // m
	Draft    float64 // m
}

// Environment holds the fluid constants and empirical coefficients.
type Environment struct {
	WaterDensity   float64 // kg/m³
	Gravity        float64 // m/s²
	AddedMassCoeff float64
	DragCoeff      float64
	PeakFrequency  float64 // rad/s, used for radiation damping
}

func DefaultEnvironment() Environment {
	return Environment{
		WaterDensity:   DefaultWaterDensity,
		Gravity:        DefaultGravity,
		AddedMassCoeff: DefaultAddedMassCoeff,
		DragCoeff:      DefaultDragCoeff,
		PeakFrequency:  DefaultPeakFrequency,
	}
}

// Coefficients are the hydrodynamic terms of the equation of motion.
type Coefficients struct {
	WaterplaneArea       float64 // m²
	Volume               float64 // m³
	AddedMass            float64 // kg
	RadiationDamping     float64 // N·s/m
	HydrostaticStiffness float64 // N/m
	DragCoefficient      float64 // kg/m
}

// ComputeCoefficients evaluates the closed-form relations for a cylinder.
func ComputeCoefficients(g Geometry, env Environment) (Coefficients, error) {
	if err := positive("diameter", g.Diameter); err != nil {
		return Coefficients{}, err
	}
	if err := positive("draft", g.Draft); err != nil {
		return Coefficients{}, err
	}
	if err := positive("water_density", env.WaterDensity); err != nil {
		return Coefficients{}, err
	}
	if err := positive("gravity", env.Gravity); err != nil {
		return Coefficients{}, err
	}
	if err := positive("peak_frequency", env.PeakFrequency); err != nil {
		return Coefficients{}, err
	}
	if err := nonNegative("added_mass_coeff", env.AddedMassCoeff); err != nil {
		return Coefficients{}, err
	}
	if err := nonNegative("drag_coeff", env.DragCoeff); err != nil {
		return Coefficients{}, err
	}

	r := g.Diameter / 2
	area := math.Pi * r * r
	volume := area * g.Draft

	return Coefficients{
		WaterplaneArea:       area,
		Volume:               volume,
		AddedMass:            env.AddedMassCoeff * env.WaterDensity * volume,
		RadiationDamping:     env.WaterDensity * env.Gravity * g.Diameter * g.Diameter / (2 * env.PeakFrequency),
		HydrostaticStiffness: env.WaterDensity * env.Gravity * area,
		DragCoefficient:      0.5 * env.WaterDensity * env.DragCoeff * area,
	}, nil
}

func positive(name string, v float64) error {
	if !dynamo.IsFinite(v) || v <= 0 {
		return &dynamo.InvalidParameterError{Name: name, Value: v, Reason: "must be positive"}
	}
	return nil
}

func nonNegative(name string, v float64) error {
	if !dynamo.IsFinite(v) || v < 0 {
		return &dynamo.InvalidParameterError{Name: name, Value: v, Reason: "must be non-negative"}
	}
	return nil
}
