package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for loading, modelling and integration.
var (
	// ErrInsufficientData indicates fewer than two usable samples.
	ErrInsufficientData = errors.New("dynamo: insufficient data (need at least 2 valid samples)")

	// ErrDomain indicates a function evaluated outside its valid range.
	ErrDomain = errors.New("dynamo: evaluated outside valid domain")

	// ErrInvalidParameter indicates a non-physical parameter value.
	ErrInvalidParameter = errors.New("dynamo: invalid parameter")

	// ErrIntegration indicates the solver failed or diverged.
	ErrIntegration = errors.New("dynamo: integration failed")
)

// DomainError reports an evaluation at T outside [Min, Max].
type DomainError struct {
	T        float64
	Min, Max float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("dynamo: t=%.6f outside domain [%.6f, %.6f]", e.T, e.Min, e.Max)
}

func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// InvalidParameterError names the offending parameter.
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("dynamo: invalid parameter %s=%g: %s", e.Name, e.Value, e.Reason)
}

func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// IntegrationError wraps a solver failure with its position in the run.
type IntegrationError struct {
	Step    int
	Time    float64
	Reason  string
	Wrapped error
}

func (e *IntegrationError) Error() string {
	msg := fmt.Sprintf("dynamo: integration failed at step %d (t=%.4f): %s", e.Step, e.Time, e.Reason)
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

func (e *IntegrationError) Is(target error) bool { return target == ErrIntegration }

func (e *IntegrationError) Unwrap() error { return e.Wrapped }

// ConstraintViolation records a design limit exceeded by a candidate. It is
// a flag carried through to the outcome, not an error.
type ConstraintViolation struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Limit float64 `json:"limit"`
}

// Excess returns the relative exceedance (Value-Limit)/Limit.
func (c ConstraintViolation) Excess() float64 {
	if c.Limit == 0 {
		return c.Value
	}
	return (c.Value - c.Limit) / c.Limit
}

func (c ConstraintViolation) String() string {
	return fmt.Sprintf("%s %.4g exceeds limit %.4g", c.Name, c.Value, c.Limit)
}
