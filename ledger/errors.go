/*
errors.go - Error taxonomy for the finance engine

PURPOSE:
  All error types in one place. Three families cover the engine's failure
  modes: validation (bad input, no state change), locked budget (write
  against a finalized year, no state change), and not-found.

  Calculations themselves are total functions: missing budgets, empty
  years and absent transactions produce zero values, never errors.

USAGE:
  Callers classify with errors.Is / the helpers below:

    if errors.Is(err, ledger.ErrBudgetLocked) { ... 409 ... }
    if ledger.IsNotFound(err) { ... 404 ... }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBudgetLocked is returned when a write targets a locked year.
	ErrBudgetLocked = errors.New("budget year is locked")

	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LockedBudgetError identifies the year that rejected a write.
type LockedBudgetError struct {
	Year int
}

func (e *LockedBudgetError) Error() string {
	return fmt.Sprintf("budget for %d is locked", e.Year)
}

func (e *LockedBudgetError) Unwrap() error { return ErrBudgetLocked }

// ValidationError reports which field failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports the missing record kind and key.
type NotFoundError struct {
	Kind string // "unit", "category", "rule", "transaction"
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is the caller's fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrBudgetLocked) ||
		errors.Is(err, ErrNotFound)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
