// Package errors provides error handling for alchemgo.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Typed domain errors for the estimation core
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrConvergence) {
//	    // decide whether the approximate answer is acceptable
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors for the estimation core.
// Use these with errors.Is() for type-safe error checking.
// The typed errors in taxonomy.go wrap these and carry payloads.
var (
	// ErrInsufficientData indicates a series too short to analyze
	ErrInsufficientData = New("insufficient data")

	// ErrInvalidInput indicates malformed input: bad lambda sequence,
	// mismatched matrix dimensions, or non-finite energies
	ErrInvalidInput = New("invalid input")

	// ErrConvergence indicates an iterative solver exhausted its budget
	ErrConvergence = New("solver did not converge")

	// ErrSingularSystem indicates a numerically singular Hessian/Jacobian
	ErrSingularSystem = New("singular system")
)

// IsInsufficientData checks if an error is or wraps ErrInsufficientData
func IsInsufficientData(err error) bool {
	return err != nil && Is(err, ErrInsufficientData)
}

// IsInvalidInput checks if an error is or wraps ErrInvalidInput
func IsInvalidInput(err error) bool {
	return err != nil && Is(err, ErrInvalidInput)
}

// IsConvergence checks if an error is or wraps ErrConvergence
func IsConvergence(err error) bool {
	return err != nil && Is(err, ErrConvergence)
}

// IsSingularSystem checks if an error is or wraps ErrSingularSystem
func IsSingularSystem(err error) bool {
	return err != nil && Is(err, ErrSingularSystem)
}
