/*
types.go - Ward, bed and patient model

PURPOSE:
  A ward is a fixed-capacity pool of beds. Each bed holds at most one
  patient; a patient occupies at most one bed across all wards. Capacity
  is immutable after registration, occupancy is the only mutable state.

KEY CONCEPTS:
  - Bed ids are derived from the ward name ("WardA_bed1" .. "WardA_bedN")
    and assignment always takes the lowest-numbered free bed.
  - Patient.Ward mirrors the occupying bed's ward. The pool keeps the two
    views consistent; callers never write either directly.

SEE ALSO:
  - engine.go: assign / discharge / transfer operations
*/
package ward

import (
	"fmt"
	"time"

	"github.com/warp/hospital-engine/core"
)

// Bed is one allocatable unit inside a ward.
type Bed struct {
	ID      string
	Patient core.SubjectID
}

// Occupied reports whether the bed holds a patient.
func (b Bed) Occupied() bool { return b.Patient != "" }

// Patient is an admitted subject. Ward is empty when not admitted to any
// bed.
type Patient struct {
	ID        core.SubjectID
	Name      string
	Condition string
	Ward      string
}

// Ward is a named pool of beds with immutable capacity.
type Ward struct {
	Name     string
	Capacity int
	Beds     []Bed
}

// NewWard builds a ward with numbered, unoccupied beds.
func NewWard(name string, capacity int) Ward {
	beds := make([]Bed, capacity)
	for i := range beds {
		beds[i] = Bed{ID: fmt.Sprintf("%s_bed%d", name, i+1)}
	}
	return Ward{Name: name, Capacity: capacity, Beds: beds}
}

// Occupied counts beds holding a patient.
func (w Ward) Occupied() int {
	n := 0
	for _, b := range w.Beds {
		if b.Occupied() {
			n++
		}
	}
	return n
}

// Full reports whether no free bed remains.
func (w Ward) Full() bool { return w.Occupied() >= w.Capacity }

// freeBedIndex returns the index of the lowest-numbered free bed, or -1.
func (w Ward) freeBedIndex() int {
	for i, b := range w.Beds {
		if !b.Occupied() {
			return i
		}
	}
	return -1
}

// bedOf returns the index of the bed occupied by the patient, or -1.
func (w Ward) bedOf(patientID core.SubjectID) int {
	for i, b := range w.Beds {
		if b.Patient == patientID {
			return i
		}
	}
	return -1
}

// Occupancy is the derived per-ward availability picture.
type Occupancy struct {
	Ward      string  `json:"ward"`
	TotalBeds int     `json:"total_beds"`
	Occupied  int     `json:"occupied_beds"`
	Percent   float64 `json:"occupancy_percent"`
}

// MoveKind tags one entry of the append-only move history.
type MoveKind string

const (
	MoveAssign    MoveKind = "assign"
	MoveDischarge MoveKind = "discharge"
	MoveTransfer  MoveKind = "transfer"
)

// Move is one committed bed mutation. History is append-only.
type Move struct {
	ID        core.RecordID
	Kind      MoveKind
	Patient   core.SubjectID
	FromWard  string
	ToWard    string
	Bed       string
	CreatedAt time.Time
}
