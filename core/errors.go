/*
errors.go - Centralized error taxonomy for the allocation engines

PURPOSE:
  All engine error kinds in one place. Domain packages wrap these sentinels
  with structured context so the API layer can always attach actionable
  diagnostics (alternatives, candidates, valid days) to a response.

ERROR CATEGORIES:
  1. Lookup errors   - unknown owner / record / account
  2. Input errors    - malformed or missing request fields
  3. Conflict errors - slot already held, no alternative found
  4. Finance errors  - insufficient funds
  5. Ambiguity       - multiple matches where exactly one is required
  6. Transient       - external collaborator (forecaster, archive) down

PROPAGATION POLICY:
  Validation and conflict errors are ordinary return values; the engine
  keeps serving after every one of them. Panics are reserved for
  programming faults.

USAGE:
  if errors.Is(err, core.ErrConflict) {
      var conflictErr *core.ConflictError
      errors.As(err, &conflictErr) // conflictErr.Alternatives
  }
*/
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned for an unknown owner, record or account.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for a missing or malformed request field
	// (empty subject, amount <= 0, date or time outside the owner schedule).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when the requested slot is already held and
	// auto-rescheduling was not requested.
	ErrConflict = errors.New("slot conflict")

	// ErrNoAvailability is returned when the search horizon is exhausted
	// without a free slot.
	ErrNoAvailability = errors.New("no availability")

	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAmbiguousMatch is returned when a search matches several records
	// and the caller must disambiguate by id.
	ErrAmbiguousMatch = errors.New("ambiguous match")

	// ErrTransient is returned when an external collaborator is unreachable
	// and no fallback is defined.
	ErrTransient = errors.New("transient failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry actionable diagnostics
// =============================================================================

// UnavailableDateError reports a date outside an owner's configured days,
// carrying the valid day list as a diagnostic.
type UnavailableDateError struct {
	Owner     OwnerID
	Date      Date
	ValidDays []Date
}

func (e *UnavailableDateError) Error() string {
	return fmt.Sprintf("%s is not available on %s (valid days: %s)",
		e.Owner, e.Date, joinDates(e.ValidDays))
}

func (e *UnavailableDateError) Unwrap() error { return ErrInvalidInput }

// UnavailableTimeError reports a time outside an owner's configured hours.
type UnavailableTimeError struct {
	Owner      OwnerID
	Time       Clock
	ValidHours []Clock
}

func (e *UnavailableTimeError) Error() string {
	return fmt.Sprintf("%s is not in %s's schedule", e.Time, e.Owner)
}

func (e *UnavailableTimeError) Unwrap() error { return ErrInvalidInput }

// ConflictError reports an occupied slot with the owner's remaining free
// times on that date, in plain ascending order.
type ConflictError struct {
	Owner        OwnerID
	Date         Date
	Time         Clock
	HeldBy       RecordID
	Alternatives []Clock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot %s %s with %s is already booked (%s)",
		e.Date, e.Time, e.Owner, e.HeldBy)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// AmbiguousMatchError reports multiple candidate records for a search that
// must resolve to exactly one.
type AmbiguousMatchError struct {
	Candidates []RecordID
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("%d records match; specify one id", len(e.Candidates))
}

func (e *AmbiguousMatchError) Unwrap() error { return ErrAmbiguousMatch }

// InsufficientFundsError reports a rejected debit. The balance is unchanged.
type InsufficientFundsError struct {
	Account   OwnerID
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("account %s: balance %s, requested %s",
		e.Account, e.Balance, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing owner/record/account.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError reports whether err is due to the caller's input rather
// than engine state. Client errors never warrant a retry as-is.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrAmbiguousMatch) ||
		errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether err might clear on retry.
func IsRetryable(err error) bool { return errors.Is(err, ErrTransient) }

func joinDates(days []Date) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = d.String()
	}
	return strings.Join(parts, ", ")
}
