package errors

import "fmt"

// InsufficientDataError reports a series too short for the requested
// analysis, with the minimum length required.
type InsufficientDataError struct {
	Required int // minimum number of samples needed
	Actual   int // samples actually supplied
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need at least %d samples, got %d", e.Required, e.Actual)
}

// Unwrap lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// NewInsufficientData returns a stack-traced InsufficientDataError.
func NewInsufficientData(required, actual int) error {
	return WithStack(&InsufficientDataError{Required: required, Actual: actual})
}

// ConvergenceError reports an iterative solver exhausting its budget.
// It carries the best-available estimate so callers may decide whether
// an approximate answer is acceptable.
type ConvergenceError struct {
	Method       string  // "BAR" or "MBAR"
	Estimate     float64 // best estimate at the point of failure
	Residual     float64 // final residual / step size
	Iterations   int     // iterations consumed
	BracketWidth float64 // width of the root bracket (BAR only, 0 otherwise)
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s did not converge after %d iterations (residual %.3g, best estimate %.6g)",
		e.Method, e.Iterations, e.Residual, e.Estimate)
}

func (e *ConvergenceError) Unwrap() error { return ErrConvergence }

// NewConvergence returns a stack-traced ConvergenceError.
func NewConvergence(method string, estimate, residual float64, iterations int, bracket float64) error {
	return WithStack(&ConvergenceError{
		Method:       method,
		Estimate:     estimate,
		Residual:     residual,
		Iterations:   iterations,
		BracketWidth: bracket,
	})
}

// SingularSystemError reports a numerically singular Hessian at the
// solution. States lists the offending state indices when identifiable
// (duplicate or degenerate lambda states); nil when unknown.
type SingularSystemError struct {
	States []int
}

func (e *SingularSystemError) Error() string {
	if len(e.States) == 0 {
		return "singular system: Hessian is numerically singular at the solution"
	}
	return fmt.Sprintf("singular system: states %v are degenerate", e.States)
}

func (e *SingularSystemError) Unwrap() error { return ErrSingularSystem }

// NewSingularSystem returns a stack-traced SingularSystemError.
func NewSingularSystem(states []int) error {
	return WithStack(&SingularSystemError{States: states})
}
