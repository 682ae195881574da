/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context; the API maps
  them to status codes through the helpers at the bottom of this file.

ERROR CATEGORIES:
  1. Malformed input - unparseable amounts, dates, months
  2. Missing references - lookups by id that find nothing
  3. Referential integrity - deletes refused while records still point at the target
  4. Uniqueness - duplicate invoice numbers

  Degenerate arithmetic (zero distance, empty history) is NOT an error: the
  calculators fall back to zero or to documented defaults.

USAGE:
    if errors.Is(err, generic.ErrReferenceInUse) {
        var ref *generic.ReferenceError
        errors.As(err, &ref) // ref.Trips, ref.Fuels ...
    }

SEE ALSO:
  - parse.go: produces FieldError
  - fleet/dataset.go, interest/book.go: produce ReferenceError
  - api/handlers.go: maps errors to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMalformedInput is returned when a user-supplied value cannot be parsed.
	ErrMalformedInput = errors.New("malformed input")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrReferenceInUse is returned when deleting a record other records
	// still reference.
	ErrReferenceInUse = errors.New("reference in use")

	// ErrDuplicateInvoice is returned when an invoice number is already taken.
	ErrDuplicateInvoice = errors.New("duplicate invoice number")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldError names the offending field and the raw value.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: invalid value %q: %v", e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "vehicle", "driver", "invoice", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrEntityNotFound
}

// ReferenceError reports how many records still point at the target of a
// refused delete.
type ReferenceError struct {
	Kind     string
	ID       string
	Trips    int
	Fuels    int
	Invoices int
}

func (e *ReferenceError) Error() string {
	var uses []string
	if e.Trips > 0 {
		uses = append(uses, fmt.Sprintf("%d trips", e.Trips))
	}
	if e.Fuels > 0 {
		uses = append(uses, fmt.Sprintf("%d fuel expenses", e.Fuels))
	}
	if e.Invoices > 0 {
		uses = append(uses, fmt.Sprintf("%d invoices", e.Invoices))
	}
	return fmt.Sprintf("%s %s is referenced by %s", e.Kind, e.ID, strings.Join(uses, ", "))
}

func (e *ReferenceError) Unwrap() error {
	return ErrReferenceInUse
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the request clashes with existing data.
func IsConflict(err error) bool {
	return errors.Is(err, ErrReferenceInUse) ||
		errors.Is(err, ErrDuplicateInvoice)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
