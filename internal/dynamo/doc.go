// Package dynamo provides the core primitives shared by the buoy model,
// the integrator and the simulator.
//
// The package defines:
//
//   - [State]: state vector, [z, ż] for the heaving buoy
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - the error taxonomy returned by loading, modelling and integration
//   - [ConstraintViolation]: a flagged, non-error constraint outcome
//
// # Errors
//
// Every typed error matches one sentinel through [errors.Is]:
//
//	_, err := forcing.Elevation(t)
//	if errors.Is(err, dynamo.ErrDomain) {
//	    // t was outside the wave record
//	}
package dynamo
