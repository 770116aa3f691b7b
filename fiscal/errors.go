/*
errors.go - Centralized error types for the fiscal engine

ERROR CATEGORIES:
  1. Validation - malformed input at a boundary (settings, payment amounts)
  2. Not found  - a payment-lifecycle operation on an unknown obligation id
  3. Invariant  - a year with no parameter set; fatal, never defaulted

USAGE:
    if errors.Is(err, fiscal.ErrObligationNotFound) { ... }

    var missing *fiscal.MissingParametersError
    if errors.As(err, &missing) {
        fmt.Println("no rates for", missing.Year)
    }
*/
package fiscal

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned for malformed input at a validation boundary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrObligationNotFound is returned when an obligation id matches nothing.
	ErrObligationNotFound = errors.New("obligation not found")

	// ErrMissingParameters is returned when no parameter set exists for a year.
	// Using another year's rates instead would silently produce wrong amounts.
	ErrMissingParameters = errors.New("missing fiscal parameters")

	// ErrInvalidParameters is returned when a parameter set breaks its invariants.
	ErrInvalidParameters = errors.New("invalid fiscal parameters")

	// ErrEnterpriseNotFound is returned by repositories for unknown aggregates.
	ErrEnterpriseNotFound = errors.New("enterprise not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NotFoundError names the obligation id that could not be resolved.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("obligation not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrObligationNotFound }

// MissingParametersError names the year without a parameter set.
type MissingParametersError struct {
	Year int
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("missing fiscal parameters for year %d", e.Year)
}

func (e *MissingParametersError) Unwrap() error { return ErrMissingParameters }

// ParameterError describes why a parameter set was rejected.
type ParameterError struct {
	Year   int
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid fiscal parameters for %d: %s", e.Year, e.Reason)
}

func (e *ParameterError) Unwrap() error { return ErrInvalidParameters }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing obligation or aggregate.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObligationNotFound) || errors.Is(err, ErrEnterpriseNotFound)
}

// IsInvariantViolation returns true for errors that must reach the user as-is.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrMissingParameters)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidParameters)
}
