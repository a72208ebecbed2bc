/*
errors.go - Centralized error taxonomy for the coverage engine

ERROR CATEGORIES:
  1. VALIDATION  - bad references, malformed ranges; rejected before writes
  2. CONSISTENCY - would silently corrupt existing coverage; rejected
  3. NOT_FOUND   - missing enrolment/plan/template; transaction rolled back
  4. CONFLICT    - serializable transaction conflict; retryable

  A negative credit balance is NOT an error: it is the "overdue" business
  state and is reported via Snapshot, never thrown.

USAGE:
  Callers classify with errors.Is or the helpers below:

    if coverage.IsRetryable(err) { retry }
    if coverage.IsClientError(err) { respond 4xx }
*/
package coverage

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks structurally invalid input (end before start, plan
	// and template billing mismatch, unknown reference shape).
	ErrValidation = errors.New("validation failed")

	// ErrConsistency marks operations that would corrupt existing coverage,
	// e.g. moving an enrolment to an effective date its paid-through already
	// extends beyond.
	ErrConsistency = errors.New("consistency violation")

	// ErrEnrolmentNotFound / ErrPlanNotFound / ErrTemplateNotFound surface
	// missing references. The surrounding transaction is rolled back.
	ErrEnrolmentNotFound  = errors.New("enrolment not found")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrTemplateNotFound   = errors.New("template not found")
	ErrAdjustmentNotFound = errors.New("adjustment not found")
	ErrAwayPeriodNotFound = errors.New("away period not found")

	// ErrConcurrentConflict is returned when an isolated read-modify-write
	// sequence (away periods, moves) loses a race. Callers retry the whole
	// operation; the engine never partially applies.
	ErrConcurrentConflict = errors.New("concurrent transaction conflict")

	// ErrDuplicateConsumption is the store-level signal that a CONSUME entry
	// for (enrolment, day) already exists. The ledger treats it as a silent
	// skip, never a double count.
	ErrDuplicateConsumption = errors.New("duplicate consumption for day")

	// ErrHorizonExhausted is returned when open-ended occurrence projection
	// cannot resolve within the configured lookahead, instead of looping.
	ErrHorizonExhausted = errors.New("occurrence horizon exhausted")

	// ErrIllegalTransition marks a disallowed enrolment status change.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrCapacityExceeded rejects a makeup booking into a full occurrence.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError carries field-level context for a VALIDATION rejection.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError wraps a store conflict with the operation that hit it.
type ConflictError struct {
	Op  string
	Err error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict during %s: %v", e.Op, e.Err)
}

func (e *ConflictError) Unwrap() error { return ErrConcurrentConflict }

// TransitionError reports an illegal enrolment status change.
type TransitionError struct {
	EnrolmentID EnrolmentID
	From, To    EnrolmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("enrolment %s: cannot transition %s -> %s", e.EnrolmentID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// =============================================================================
// CLASSIFIERS
// =============================================================================

// IsRetryable reports whether the operation may succeed if retried whole.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentConflict)
}

// IsClientError reports whether the failure is the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConsistency) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrCapacityExceeded)
}

// IsNotFound reports whether a referenced record is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEnrolmentNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrAdjustmentNotFound) ||
		errors.Is(err, ErrAwayPeriodNotFound)
}
