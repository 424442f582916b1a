/*
engine.go - Bed assignment, discharge and transfer

PURPOSE:
  State-changing operations on the bed pools. A transfer is one logical
  operation: free the source bed, occupy the target bed. The patient is
  never observable in neither or both wards.

CONCURRENCY:
  Every mutation runs under the involved ward's mutex. Transfer locks
  both wards through LockAll, which orders lock acquisition
  lexicographically, so two opposite-direction transfers cannot
  deadlock. Occupancy reads work on store snapshots without ward locks.
*/
package ward

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/metrics"
)

type Engine struct {
	store Store
	locks *core.KeyedMutex
	seq   *core.Sequence
	log   zerolog.Logger
	now   func() time.Time
}

func NewEngine(store Store, log zerolog.Logger) *Engine {
	return &Engine{
		store: store,
		locks: core.NewKeyedMutex(),
		seq:   core.NewSequence("MOV", 4),
		log:   log.With().Str("component", "ward").Logger(),
		now:   time.Now,
	}
}

// WithNow overrides the engine's wall clock. Test hook.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Assign admits the patient to the ward's lowest-numbered free bed.
func (e *Engine) Assign(patientID core.SubjectID, wardName string) (Move, error) {
	if patientID == "" || wardName == "" {
		return Move{}, fmt.Errorf("patient id and ward name are required: %w", core.ErrInvalidInput)
	}
	patient, ok := e.store.Patient(patientID)
	if !ok {
		return Move{}, fmt.Errorf("patient %s: %w", patientID, core.ErrNotFound)
	}
	if _, ok := e.store.Ward(wardName); !ok {
		return Move{}, fmt.Errorf("ward %s: %w", wardName, core.ErrNotFound)
	}
	if patient.Ward != "" {
		return Move{}, &AlreadyAssignedError{Patient: patientID, Ward: patient.Ward}
	}

	unlock := e.locks.Lock(core.OwnerID(wardName))
	defer unlock()

	bedID, err := e.store.Occupy(wardName, patientID)
	if err != nil {
		return Move{}, err
	}
	move := Move{
		ID:        e.seq.Next(),
		Kind:      MoveAssign,
		Patient:   patientID,
		ToWard:    wardName,
		Bed:       bedID,
		CreatedAt: e.now(),
	}
	e.commit(move)
	return move, nil
}

// Discharge frees the bed the patient occupies, wherever it is.
func (e *Engine) Discharge(patientID core.SubjectID) (Move, error) {
	if patientID == "" {
		return Move{}, fmt.Errorf("patient id is required: %w", core.ErrInvalidInput)
	}
	patient, ok := e.store.Patient(patientID)
	if !ok {
		return Move{}, fmt.Errorf("patient %s: %w", patientID, core.ErrNotFound)
	}
	if patient.Ward == "" {
		return Move{}, &NotAssignedError{Patient: patientID}
	}

	unlock := e.locks.Lock(core.OwnerID(patient.Ward))
	defer unlock()

	// Release revalidates under the lock; a concurrent transfer may
	// have moved the patient since the snapshot above.
	bedID, err := e.store.Release(patient.Ward, patientID)
	if err != nil {
		return Move{}, err
	}
	move := Move{
		ID:        e.seq.Next(),
		Kind:      MoveDischarge,
		Patient:   patientID,
		FromWard:  patient.Ward,
		Bed:       bedID,
		CreatedAt: e.now(),
	}
	e.commit(move)
	return move, nil
}

// Transfer moves the patient from one ward to another as one step.
// The target must have a free bed before the source bed is released.
func (e *Engine) Transfer(patientID core.SubjectID, fromWard, toWard string) (Move, error) {
	if patientID == "" || fromWard == "" || toWard == "" {
		return Move{}, fmt.Errorf("patient id, source and target wards are required: %w", core.ErrInvalidInput)
	}
	if fromWard == toWard {
		return Move{}, fmt.Errorf("source and target wards are the same: %w", core.ErrInvalidInput)
	}
	if _, ok := e.store.Patient(patientID); !ok {
		return Move{}, fmt.Errorf("patient %s: %w", patientID, core.ErrNotFound)
	}
	if _, ok := e.store.Ward(fromWard); !ok {
		return Move{}, fmt.Errorf("ward %s: %w", fromWard, core.ErrNotFound)
	}
	target, ok := e.store.Ward(toWard)
	if !ok {
		return Move{}, fmt.Errorf("ward %s: %w", toWard, core.ErrNotFound)
	}

	unlock := e.locks.LockAll(core.OwnerID(fromWard), core.OwnerID(toWard))
	defer unlock()

	// Both checks run under both locks: the source must still hold the
	// patient and the target must still have room, or nothing moves.
	source, _ := e.store.Ward(fromWard)
	if source.bedOf(patientID) < 0 {
		return Move{}, &NotInWardError{Patient: patientID, Ward: fromWard}
	}
	target, _ = e.store.Ward(toWard)
	if target.Full() {
		return Move{}, &TargetFullError{Ward: toWard}
	}

	if _, err := e.store.Release(fromWard, patientID); err != nil {
		return Move{}, err
	}
	bedID, err := e.store.Occupy(toWard, patientID)
	if err != nil {
		// Unreachable while both locks are held; restore the source bed
		// rather than lose the patient if it ever fires.
		if _, restoreErr := e.store.Occupy(fromWard, patientID); restoreErr != nil {
			e.log.Error().Err(restoreErr).
				Str("patient", string(patientID)).
				Msg("failed to restore source bed after transfer fault")
		}
		return Move{}, err
	}
	move := Move{
		ID:        e.seq.Next(),
		Kind:      MoveTransfer,
		Patient:   patientID,
		FromWard:  fromWard,
		ToWard:    toWard,
		Bed:       bedID,
		CreatedAt: e.now(),
	}
	e.commit(move)
	return move, nil
}

func (e *Engine) commit(move Move) {
	e.store.AppendMove(move)
	metrics.WardMovesTotal.WithLabelValues(string(move.Kind)).Inc()
	for _, w := range e.store.Wards() {
		metrics.WardOccupiedBeds.WithLabelValues(w.Name).Set(float64(w.Occupied()))
	}
	e.log.Info().
		Str("move", string(move.ID)).
		Str("kind", string(move.Kind)).
		Str("patient", string(move.Patient)).
		Str("from", move.FromWard).
		Str("to", move.ToWard).
		Str("bed", move.Bed).
		Msg("ward move committed")
}

// =============================================================================
// QUERIES
// =============================================================================

// OccupancyReport returns the per-ward picture in registration order.
func (e *Engine) OccupancyReport() []Occupancy {
	wards := e.store.Wards()
	out := make([]Occupancy, 0, len(wards))
	for _, w := range wards {
		out = append(out, occupancyOf(w))
	}
	return out
}

// OverallOccupancy aggregates every ward into one entry.
func (e *Engine) OverallOccupancy() Occupancy {
	total, occupied := 0, 0
	for _, w := range e.store.Wards() {
		total += w.Capacity
		occupied += w.Occupied()
	}
	agg := Occupancy{Ward: "overall", TotalBeds: total, Occupied: occupied}
	if total > 0 {
		agg.Percent = round2(float64(occupied) / float64(total) * 100)
	}
	return agg
}

// WardOccupancy reports one ward.
func (e *Engine) WardOccupancy(name string) (Occupancy, error) {
	w, ok := e.store.Ward(name)
	if !ok {
		return Occupancy{}, fmt.Errorf("ward %s: %w", name, core.ErrNotFound)
	}
	return occupancyOf(w), nil
}

func occupancyOf(w Ward) Occupancy {
	o := Occupancy{Ward: w.Name, TotalBeds: w.Capacity, Occupied: w.Occupied()}
	if w.Capacity > 0 {
		o.Percent = round2(float64(w.Occupied()) / float64(w.Capacity) * 100)
	}
	return o
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
