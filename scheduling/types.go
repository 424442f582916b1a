/*
Package scheduling implements appointment allocation for doctors.

PURPOSE:
  A doctor's pool is the cross product of configured available days and
  available hours. This package answers availability queries over that
  pool (AvailabilityEngine) and performs the state-changing reservation,
  cancellation and completion operations (AllocationEngine), including
  conflict detection and the auto-reschedule search.

KEY CONCEPTS IN THIS FILE (types.go):
  - Doctor: pool owner; metadata is immutable after registration
  - Appointment: allocation record; append-only history, status is the
    only mutable field and CANCELLED/COMPLETED are terminal

INVARIANTS:
  1. At most one non-terminal appointment holds a (doctor, date, time)
     triple at any instant.
  2. Appointment ids are assigned monotonically (APT0001, APT0002, ...)
     and never reused.
  3. Registration order of doctors is observable: least-loaded auto
     selection breaks ties in favor of the first-registered doctor.

SEE ALSO:
  - availability.go: read-only queries
  - engine.go: reserve / cancel / complete
  - specialty.go: free-text specialty normalization
*/
package scheduling

import (
	"time"

	"github.com/warp/hospital-engine/core"
)

// =============================================================================
// DOCTOR - Pool owner
// =============================================================================

// Doctor owns a pool of appointment slots: one slot per configured
// (available day, available hour) pair. Days and hours are kept sorted
// ascending; both are immutable after registration.
type Doctor struct {
	ID             core.OwnerID
	Name           string
	Specialty      string
	AvailableDays  []core.Date
	AvailableHours []core.Clock
}

// Capacity returns the total number of slots the doctor's schedule holds.
func (d Doctor) Capacity() int {
	return len(d.AvailableDays) * len(d.AvailableHours)
}

// HasDay reports whether date is one of the doctor's configured days.
func (d Doctor) HasDay(date core.Date) bool {
	for _, day := range d.AvailableDays {
		if day.Equal(date) {
			return true
		}
	}
	return false
}

// HasHour reports whether t is one of the doctor's configured hours.
func (d Doctor) HasHour(t core.Clock) bool {
	for _, h := range d.AvailableHours {
		if h == t {
			return true
		}
	}
	return false
}

// =============================================================================
// APPOINTMENT - Allocation record
// =============================================================================

// Appointment is the persisted outcome of a reservation. Records are never
// deleted; cancellation and completion are status transitions and both are
// terminal.
type Appointment struct {
	ID        core.RecordID
	PatientID core.SubjectID
	DoctorID  core.OwnerID
	Date      core.Date
	Time      core.Clock
	Status    core.RecordStatus
	Notes     string
	CreatedAt time.Time
}

// Holds reports whether the appointment currently occupies the given slot.
func (a Appointment) Holds(doctorID core.OwnerID, date core.Date, t core.Clock) bool {
	return a.Status.Active() && a.DoctorID == doctorID && a.Date.Equal(date) && a.Time == t
}
