// Package integrators provides the adaptive Dormand-Prince 5(4) solver used
// by the simulator, with the DOPRI5 continuous extension kept for every
// accepted step so the solution can be evaluated anywhere in its span.
package integrators
