/*
Package core provides the shared primitives of the allocation engine.

PURPOSE:
  Every allocation domain in the hospital system (appointments, ward beds,
  finance, inventory) manages the same abstract thing: a finite pool of
  allocatable units owned by some entity, mutated one reservation at a
  time, with an append-only history behind it. This package holds the
  pieces those domains share.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers: OwnerID, SubjectID, RecordID
  - RecordStatus: the appointment/assignment lifecycle (SCHEDULED ->
    CANCELLED | COMPLETED, both terminal)
  - PaymentStatus: the two-state payment lifecycle

DESIGN PRINCIPLES:
  1. Strong typing for IDs prevents mixing a doctor id with a patient id.
  2. Terminal statuses never transition back; engines enforce this, the
     types only name it.
  3. No domain knowledge here: doctors, wards and accounts live in their
     own packages.

SEE ALSO:
  - time.go: Date and Clock value types
  - errors.go: the error taxonomy
  - sequence.go: zero-padded record id allocation
  - locks.go: per-owner mutual exclusion
*/
package core

// =============================================================================
// IDENTIFIERS
// =============================================================================

// OwnerID identifies the entity holding a resource pool: a doctor, a ward,
// an account or a department budget.
type OwnerID string

// SubjectID identifies the party a unit is allocated to: a patient, a
// payment recipient.
type SubjectID string

// RecordID identifies one allocation record (APT0001, PAY0003, ...).
type RecordID string

// =============================================================================
// RECORD STATUS - slot-type allocation lifecycle
// =============================================================================

type RecordStatus string

const (
	StatusScheduled RecordStatus = "scheduled"
	StatusCancelled RecordStatus = "cancelled"
	StatusCompleted RecordStatus = "completed"
)

// Terminal reports whether no further transition is permitted.
func (s RecordStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Active reports whether the record still holds its unit.
func (s RecordStatus) Active() bool { return s == StatusScheduled }

// =============================================================================
// PAYMENT STATUS - quantity-type allocation lifecycle
// =============================================================================

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)
