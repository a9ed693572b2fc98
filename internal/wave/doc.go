// Package wave turns measured or synthetic wave-elevation samples into the
// continuous forcing consumed by the buoy model.
//
// Raw samples go through [Clean], which removes non-finite entries and
// duplicate timestamps, before [NewForcing] builds a piecewise-linear
// interpolant. The forcing never extrapolates: evaluating it outside the
// record returns a [dynamo.DomainError].
package wave
