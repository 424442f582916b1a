package ward

import (
	"fmt"
	"sync"

	"github.com/warp/hospital-engine/core"
)

// =============================================================================
// STORE CONTRACT
// =============================================================================

// Store owns the ward pools, the patient registry and the append-only
// move history. Individual calls are atomic; multi-step sequences
// (check-then-occupy, transfer) are serialized by the engine's per-ward
// locks, not here.
type Store interface {
	RegisterWard(w Ward) error
	RegisterPatient(p Patient) error
	Ward(name string) (Ward, bool)
	Wards() []Ward
	Patient(id core.SubjectID) (Patient, bool)
	Occupy(wardName string, patientID core.SubjectID) (string, error)
	Release(wardName string, patientID core.SubjectID) (string, error)
	AppendMove(m Move)
	Moves() []Move
}

// =============================================================================
// IN-MEMORY STORE
// =============================================================================

type MemoryStore struct {
	mu        sync.RWMutex
	wards     map[string]*Ward
	wardOrder []string
	patients  map[core.SubjectID]*Patient
	moves     []Move
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wards:    make(map[string]*Ward),
		patients: make(map[core.SubjectID]*Patient),
	}
}

func (s *MemoryStore) RegisterWard(w Ward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wards[w.Name]; exists {
		return fmt.Errorf("ward %s already registered: %w", w.Name, core.ErrConflict)
	}
	clone := w
	clone.Beds = append([]Bed(nil), w.Beds...)
	s.wards[w.Name] = &clone
	s.wardOrder = append(s.wardOrder, w.Name)
	return nil
}

func (s *MemoryStore) RegisterPatient(p Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.patients[p.ID]; exists {
		return fmt.Errorf("patient %s already registered: %w", p.ID, core.ErrConflict)
	}
	clone := p
	s.patients[p.ID] = &clone
	return nil
}

// Ward returns a deep copy; callers may not reach the live bed slice.
func (s *MemoryStore) Ward(name string) (Ward, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wards[name]
	if !ok {
		return Ward{}, false
	}
	return s.copyWard(w), true
}

// Wards returns deep copies in registration order.
func (s *MemoryStore) Wards() []Ward {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Ward, 0, len(s.wardOrder))
	for _, name := range s.wardOrder {
		out = append(out, s.copyWard(s.wards[name]))
	}
	return out
}

func (s *MemoryStore) copyWard(w *Ward) Ward {
	clone := *w
	clone.Beds = append([]Bed(nil), w.Beds...)
	return clone
}

func (s *MemoryStore) Patient(id core.SubjectID) (Patient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patients[id]
	if !ok {
		return Patient{}, false
	}
	return *p, true
}

// Occupy places the patient in the ward's lowest-numbered free bed and
// records the ward on the patient.
func (s *MemoryStore) Occupy(wardName string, patientID core.SubjectID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wards[wardName]
	if !ok {
		return "", fmt.Errorf("ward %s: %w", wardName, core.ErrNotFound)
	}
	p, ok := s.patients[patientID]
	if !ok {
		return "", fmt.Errorf("patient %s: %w", patientID, core.ErrNotFound)
	}
	if p.Ward != "" {
		return "", &AlreadyAssignedError{Patient: patientID, Ward: p.Ward}
	}
	i := w.freeBedIndex()
	if i < 0 {
		return "", &TargetFullError{Ward: wardName}
	}
	w.Beds[i].Patient = patientID
	p.Ward = wardName
	return w.Beds[i].ID, nil
}

// Release frees the bed the patient occupies in the ward and clears the
// ward on the patient.
func (s *MemoryStore) Release(wardName string, patientID core.SubjectID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wards[wardName]
	if !ok {
		return "", fmt.Errorf("ward %s: %w", wardName, core.ErrNotFound)
	}
	i := w.bedOf(patientID)
	if i < 0 {
		return "", &NotInWardError{Patient: patientID, Ward: wardName}
	}
	bedID := w.Beds[i].ID
	w.Beds[i].Patient = ""
	if p, ok := s.patients[patientID]; ok && p.Ward == wardName {
		p.Ward = ""
	}
	return bedID, nil
}

func (s *MemoryStore) AppendMove(m Move) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, m)
}

func (s *MemoryStore) Moves() []Move {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Move(nil), s.moves...)
}
