/*
errors.go - Error types for the finance package and its collaborators

PURPOSE:
  The reconciliation engine itself never errors. These errors belong to the
  collaborators around it: stores, the payment ledger and the HTTP layer.

ERROR CATEGORIES:
  1. Not found - member/project/event missing in the studio
  2. Client errors - bad amounts, duplicate idempotency keys
  3. Fetch errors - wrapped by LoadSnapshot with the failing step

USAGE:
    if finance.IsNotFound(err) {
        // 404
    }
*/
package finance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrEventNotFound   = errors.New("event not found")

	// ErrDuplicateIdempotencyKey is returned when a payment with the same
	// idempotency key was already recorded. Expected on client retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrIDInUse is returned when a client-supplied member, project or event
	// ID is already taken. IDs are unique across studios.
	ErrIDInUse = errors.New("id already in use")

	// ErrInvalidAmount is returned for zero or negative payment amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrStudioRequired is returned when a write carries no studio.
	ErrStudioRequired = errors.New("studio id is required")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FetchError reports which step of a snapshot load failed.
type FetchError struct {
	Step     string // "member", "assignments", "payments"
	MemberID MemberID
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load %s for member %s: %v", e.Step, e.MemberID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrEventNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrIDInUse) ||
		errors.Is(err, ErrStudioRequired)
}
