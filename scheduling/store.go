/*
store.go - Doctor registry and append-only appointment history

PURPOSE:
  The Store is the single shared pool: engines hold no private copies of
  doctors or appointments, they read and mutate through this interface.
  History is append-only; a record's status is its only mutable field and
  terminal statuses are enforced here, at the lowest layer.

SNAPSHOT READS:
  Read methods return copies. Availability and analytics tolerate a
  snapshot going stale; the reservation commit path re-reads under the
  engine's per-owner lock, so the copy semantics never weaken the
  no-double-booking invariant.
*/
package scheduling

import (
	"fmt"
	"sync"

	"github.com/warp/hospital-engine/core"
)

// =============================================================================
// STORE - Interface between engines and the shared pool
// =============================================================================

type Store interface {
	// RegisterDoctor adds a doctor. Owner metadata is immutable afterwards.
	// Registration order is preserved and observable through Doctors().
	RegisterDoctor(d Doctor) error

	// Doctor returns the doctor by id.
	Doctor(id core.OwnerID) (Doctor, bool)

	// Doctors returns all doctors in registration order.
	Doctors() []Doctor

	// Append adds an appointment record. Append-only: no update, no delete.
	Append(a Appointment)

	// Appointment returns a record by id.
	Appointment(id core.RecordID) (Appointment, bool)

	// Appointments returns a snapshot copy of the full history.
	Appointments() []Appointment

	// SetStatus transitions a record's status. Fails when the record is
	// unknown or already terminal.
	SetStatus(id core.RecordID, status core.RecordStatus) error
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu           sync.RWMutex
	doctors      map[core.OwnerID]Doctor
	doctorOrder  []core.OwnerID
	appointments []Appointment
	byID         map[core.RecordID]int // index into appointments
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doctors: make(map[core.OwnerID]Doctor),
		byID:    make(map[core.RecordID]int),
	}
}

func (s *MemoryStore) RegisterDoctor(d Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.doctors[d.ID]; exists {
		return fmt.Errorf("doctor %s already registered: %w", d.ID, core.ErrConflict)
	}
	s.doctors[d.ID] = d
	s.doctorOrder = append(s.doctorOrder, d.ID)
	return nil
}

func (s *MemoryStore) Doctor(id core.OwnerID) (Doctor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	return d, ok
}

func (s *MemoryStore) Doctors() []Doctor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Doctor, 0, len(s.doctorOrder))
	for _, id := range s.doctorOrder {
		out = append(out, s.doctors[id])
	}
	return out
}

func (s *MemoryStore) Append(a Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[a.ID] = len(s.appointments)
	s.appointments = append(s.appointments, a)
}

func (s *MemoryStore) Appointment(id core.RecordID) (Appointment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return Appointment{}, false
	}
	return s.appointments[i], true
}

func (s *MemoryStore) Appointments() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Appointment, len(s.appointments))
	copy(out, s.appointments)
	return out
}

func (s *MemoryStore) SetStatus(id core.RecordID, status core.RecordStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("appointment %s: %w", id, core.ErrNotFound)
	}
	if s.appointments[i].Status.Terminal() {
		return fmt.Errorf("appointment %s is already %s: %w", id, s.appointments[i].Status, core.ErrNotFound)
	}
	s.appointments[i].Status = status
	return nil
}
