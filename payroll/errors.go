/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejected operation names the record/employee and the rule that
  triggered it - never a generic failure.

ERROR CATEGORIES:
  1. Validation errors - bad input shape, rejected before the pipeline
  2. State errors - illegal transition or edit against run status
  3. Balance errors - vacation payout exceeding balance
  4. Infrastructure errors - concurrency conflicts, rate provider outage

CAPS ARE NOT ERRORS:
  Hitting a CPP/EI annual maximum clamps the contribution and records a
  warning on the record. It never fails the computation.

USAGE:
  if errors.Is(err, payroll.ErrInvalidTransition) { ... }

SEE ALSO:
  - run.go: Emits InvalidTransitionError
  - engine.go: Emits StateError, ConcurrentModification
*/
package payroll

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input (negative hours,
	// unknown adjustment types). Rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidState is returned when an edit is attempted against a
	// run status that forbids it.
	ErrInvalidState = errors.New("operation not allowed in current run status")

	// ErrInvalidTransition is returned for lifecycle actions attempted
	// from the wrong status.
	ErrInvalidTransition = errors.New("invalid run transition")

	// ErrUnrecalculatedChanges is returned when finalizing a run that
	// still has modified, uncalculated records.
	ErrUnrecalculatedChanges = errors.New("run has unrecalculated changes")

	// ErrInsufficientBalance is returned when a vacation payout exceeds
	// the available balance.
	ErrInsufficientBalance = errors.New("insufficient vacation balance")

	// ErrConcurrentModification is returned to the loser when two
	// recalculate/finalize attempts race on the same run. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrRateProviderUnavailable is returned when statutory rates cannot
	// be fetched. The run is left in its last-known-good state.
	ErrRateProviderUnavailable = errors.New("rate provider unavailable")

	// ErrDuplicateIdempotencyKey is returned when a ledger transaction
	// with the same idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrRunExists is returned when starting a run for a pay group and
	// period that already has one.
	ErrRunExists = errors.New("run already exists for period")

	ErrRunNotFound      = errors.New("run not found")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrPayGroupNotFound = errors.New("pay group not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError names the attempted action and current status.
type InvalidTransitionError struct {
	Action RunAction
	Status RunStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a run in status %q", e.Action, e.Status)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// StateError reports an edit rejected by the current run status.
type StateError struct {
	Op     string
	RunID  RunID
	Status RunStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: run %s is %s, inputs are read-only", e.Op, e.RunID, e.Status)
}

func (e *StateError) Unwrap() error { return ErrInvalidState }

// InsufficientBalanceError reports a vacation payout shortfall.
type InsufficientBalanceError struct {
	EmployeeID     EmployeeID
	AvailableHours string
	RequestedHours string
	ShortfallHours string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("employee %s: vacation payout of %sh exceeds balance of %sh (short %sh)",
		e.EmployeeID, e.RequestedHours, e.AvailableHours, e.ShortfallHours)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// UnrecalculatedChangesError lists the employees whose records were
// modified since the last calculation.
type UnrecalculatedChangesError struct {
	RunID     RunID
	Employees []EmployeeID
}

func (e *UnrecalculatedChangesError) Error() string {
	names := make([]string, len(e.Employees))
	for i, id := range e.Employees {
		names[i] = string(id)
	}
	return fmt.Sprintf("run %s: recalculate before finalizing; modified records for: %s",
		e.RunID, strings.Join(names, ", "))
}

func (e *UnrecalculatedChangesError) Unwrap() error { return ErrUnrecalculatedChanges }

// ValidationError reports which employee and field failed validation.
type ValidationError struct {
	EmployeeID EmployeeID
	Field      string
	Message    string
}

func (e *ValidationError) Error() string {
	if e.EmployeeID == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("employee %s: %s: %s", e.EmployeeID, e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnrecalculatedChanges) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrRunExists)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrPayGroupNotFound)
}

// IsUnavailable returns true if an external collaborator was down.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrRateProviderUnavailable)
}
