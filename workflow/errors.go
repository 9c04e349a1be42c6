/*
errors.go - Centralized error taxonomy for the workflow engine

PURPOSE:
  All cross-package error categories in one place. Domain packages wrap
  these sentinels with structured errors carrying additional context.

ERROR CATEGORIES:
  1. Validation errors - missing/malformed required fields, caught before commit
  2. Conflict errors   - port or classification-guard violations detected at commit
  3. Not-found errors  - referenced catalog row missing or inactive
  4. Fatal errors      - storage/backend failures; operation not applied

USAGE:
  Domain packages wrap sentinels:

    if errors.Is(err, workflow.ErrConflict) {
        // recoverable: re-fetch and re-select
    }

  The API layer maps categories to HTTP status codes via the Is* helpers.

SEE ALSO:
  - odf/allocation.go: PortConflictError wraps ErrConflict
  - viability/machine.go: GuardError wraps ErrValidation
*/
package workflow

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a required field is missing or malformed.
	// The operation was rejected before any state changed.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a commit-time check fails: a port already
	// reserved, a classification guard violated, a circuit already created.
	// Recoverable by re-fetching current state and re-selecting.
	ErrConflict = errors.New("conflict detected at commit")

	// ErrNotFound is returned when a referenced record does not exist or is
	// no longer active. The caller must re-select.
	ErrNotFound = errors.New("record not found")

	// ErrFatal is returned for storage or backend failures. The operation is
	// considered not applied and is safe to retry.
	ErrFatal = errors.New("backend failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError reports a single invalid or missing field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// MissingField builds a FieldError for an absent required field.
func MissingField(field string) *FieldError {
	return &FieldError{Field: field, Message: "required"}
}

// NotFoundError names the record that could not be resolved.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports whether err is a pre-commit validation failure.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports whether err is a recoverable commit-time conflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err indicates a missing or inactive record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable reports whether the operation may succeed if re-submitted as-is.
// Conflicts are not retryable as-is: the caller must re-select first.
func IsRetryable(err error) bool { return errors.Is(err, ErrFatal) }
