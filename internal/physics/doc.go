// Package physics models a heaving point-absorber buoy.
//
// [ComputeCoefficients] derives the geometry-dependent hydrodynamic
// coefficients once per geometry; [NewProperties] validates the full
// parameter set as an immutable value; [Buoy] implements [dynamo.System]
// for the single degree-of-freedom equation of motion
//
//	(m + mₐ) z̈ = F_wave + F_hydrostatic + F_PTO + F_radiation + F_drag
//
// with
//
//	F_wave        = k η(t)            (+ c_rad η̇(t) when velocity excitation is on)
//	F_hydrostatic = -k z
//	F_PTO         = -c_pto ż
//	F_radiation   = -c_rad ż
//	F_drag        = -k_drag |ż| ż
package physics
