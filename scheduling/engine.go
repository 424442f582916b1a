/*
engine.go - Reservation, cancellation and completion

PURPOSE:
  The state machine of an allocation attempt:

    REQUESTED -> VALIDATED -> {CONFLICT_FREE -> COMMITTED}
                            | {CONFLICT -> RESOLVED(rescheduled) | REJECTED}

  Reserve auto-completes missing fields (doctor by least-loaded specialty
  match, date by first configured day from today, time by first free hour),
  validates against the owner's schedule, detects conflicts and either
  surfaces them with alternatives or resolves them via the nearest-slot
  search. Cancel finds the record by id or weighted criteria, transitions
  it to CANCELLED and computes rebooking suggestions.

CONCURRENCY:
  The conflict check and the commit are one critical section under the
  doctor's mutex. Two concurrent reservations for the same slot serialize;
  the loser sees the slot occupied and conflicts or reschedules.

RESOLUTION RULES (fixed, not heuristics):
  - Same-day search picks the free hour with the smallest absolute minute
    distance to the requested time; equidistant ties go to the later
    chronological time.
  - The forward search scans the next 7 calendar days in order and takes
    the first configured day with any free hour, preferring the exact
    requested time over the earliest free hour.
  - Least-loaded doctor selection counts SCHEDULED records only; ties go
    to the first-registered doctor.
*/
package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/metrics"
)

// forwardSearchDays bounds the day-by-day scan after a same-day miss.
const forwardSearchDays = 7

// maxCancelCandidates caps the candidate list of an ambiguous cancel.
const maxCancelCandidates = 5

// maxRebookingSuggestions caps the suggestion list after a cancel.
const maxRebookingSuggestions = 3

// =============================================================================
// REQUESTS AND RESULTS
// =============================================================================

// ReserveRequest carries an already-parsed reservation. DoctorID may be
// empty when Specialty is set; Date and Time may be nil (auto-completed).
type ReserveRequest struct {
	DoctorID       core.OwnerID
	Specialty      string
	Date           *core.Date
	Time           *core.Clock
	PatientID      core.SubjectID
	Notes          string
	AutoReschedule bool
}

// ReserveResult reports a committed reservation, which fields the engine
// filled in, and the delta when the commit moved off the requested slot.
type ReserveResult struct {
	Appointment   Appointment
	AutoCompleted []string
	Rescheduled   bool
	RequestedDate core.Date
	RequestedTime core.Clock
}

// CancelRequest names a record directly or by search criteria.
type CancelRequest struct {
	RecordID  core.RecordID
	PatientID core.SubjectID
	DoctorID  core.OwnerID
	Date      *core.Date
	Reason    string
}

// FreedSlot names the slot a cancellation released.
type FreedSlot struct {
	DoctorID core.OwnerID
	Date     core.Date
	Time     core.Clock
}

// RebookingSuggestion is one alternative offered after a cancellation.
// Priority 1 = same doctor, 2 = another doctor of the same specialty.
type RebookingSuggestion struct {
	DoctorID   core.OwnerID
	DoctorName string
	Specialty  string
	Date       core.Date
	Times      []core.Clock
	Priority   int
}

// CancelResult reports the cancelled record, the freed slot and up to
// three rebooking suggestions sorted by priority.
type CancelResult struct {
	Cancelled   Appointment
	FreedSlot   FreedSlot
	Suggestions []RebookingSuggestion
}

// UnknownRecordError reports a cancel id that matched no active record,
// with fuzzy-containment candidates as a diagnostic. The engine never
// guesses which record was meant.
type UnknownRecordError struct {
	ID      core.RecordID
	Similar []core.RecordID
}

func (e *UnknownRecordError) Error() string {
	return fmt.Sprintf("appointment %s not found or already cancelled", e.ID)
}

func (e *UnknownRecordError) Unwrap() error { return core.ErrNotFound }

// =============================================================================
// ALLOCATION ENGINE
// =============================================================================

type AllocationEngine struct {
	store Store
	avail *AvailabilityEngine
	locks *core.KeyedMutex
	seq   *core.Sequence
	log   zerolog.Logger
	today func() core.Date
	now   func() time.Time
}

func NewAllocationEngine(store Store, avail *AvailabilityEngine, log zerolog.Logger) *AllocationEngine {
	return &AllocationEngine{
		store: store,
		avail: avail,
		locks: core.NewKeyedMutex(),
		seq:   core.NewSequence("APT", 4),
		log:   log.With().Str("component", "allocation").Logger(),
		today: core.Today,
		now:   time.Now,
	}
}

// WithClock overrides the engine's wall clock. Test hook.
func (e *AllocationEngine) WithClock(today func() core.Date, now func() time.Time) *AllocationEngine {
	if today != nil {
		e.today = today
		e.avail.WithToday(today)
	}
	if now != nil {
		e.now = now
	}
	return e
}

// -----------------------------------------------------------------------------
// Reserve
// -----------------------------------------------------------------------------

// Reserve validates, auto-completes and commits a reservation.
func (e *AllocationEngine) Reserve(req ReserveRequest) (*ReserveResult, error) {
	res, err := e.reserve(req)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrConflict):
			metrics.RejectionsTotal.WithLabelValues("conflict").Inc()
		case errors.Is(err, core.ErrNoAvailability):
			metrics.RejectionsTotal.WithLabelValues("no_availability").Inc()
		case errors.Is(err, core.ErrNotFound):
			metrics.RejectionsTotal.WithLabelValues("not_found").Inc()
		default:
			metrics.RejectionsTotal.WithLabelValues("invalid_input").Inc()
		}
	}
	return res, err
}

func (e *AllocationEngine) reserve(req ReserveRequest) (*ReserveResult, error) {
	if req.PatientID == "" {
		return nil, fmt.Errorf("patient id is required: %w", core.ErrInvalidInput)
	}

	var autoCompleted []string

	doctorID := req.DoctorID
	if doctorID == "" {
		if req.Specialty == "" {
			return nil, fmt.Errorf("doctor id or specialty is required: %w", core.ErrInvalidInput)
		}
		selected, err := e.leastLoadedDoctor(req.Specialty)
		if err != nil {
			return nil, err
		}
		doctorID = selected
		autoCompleted = append(autoCompleted, "doctor_id")
	}

	doctor, ok := e.store.Doctor(doctorID)
	if !ok {
		return nil, fmt.Errorf("doctor %s: %w", doctorID, core.ErrNotFound)
	}

	date, err := e.chooseDate(doctor, req.Date)
	if err != nil {
		return nil, err
	}
	if req.Date == nil {
		autoCompleted = append(autoCompleted, "date")
	}

	// Conflict check, slot search and commit are one critical section per
	// doctor: a concurrent reservation for the same slot serializes here.
	unlock := e.locks.Lock(doctor.ID)
	defer unlock()

	slot, err := e.chooseTime(doctor, date, req.Time)
	if err != nil {
		return nil, err
	}
	if req.Time == nil {
		autoCompleted = append(autoCompleted, "time")
	}

	if !doctor.HasDay(date) {
		return nil, &core.UnavailableDateError{Owner: doctor.ID, Date: date, ValidDays: doctor.AvailableDays}
	}
	if !doctor.HasHour(slot) {
		return nil, &core.UnavailableTimeError{Owner: doctor.ID, Time: slot, ValidHours: doctor.AvailableHours}
	}

	requestedDate, requestedTime := date, slot
	rescheduled := false

	if holder := e.activeHolder(doctor.ID, date, slot); holder != nil {
		metrics.ConflictsTotal.Inc()
		if !req.AutoReschedule {
			return nil, &core.ConflictError{
				Owner:        doctor.ID,
				Date:         date,
				Time:         slot,
				HeldBy:       holder.ID,
				Alternatives: e.avail.FreeHours(doctor, date),
			}
		}
		newDate, newTime, err := e.searchAlternative(doctor, date, slot)
		if err != nil {
			return nil, err
		}
		if newDate.Equal(date) {
			metrics.RescheduleDistanceMinutes.Observe(float64(slot.DistanceMinutes(newTime)))
		}
		date, slot = newDate, newTime
		rescheduled = true
	}

	appointment := Appointment{
		ID:        e.seq.Next(),
		PatientID: req.PatientID,
		DoctorID:  doctor.ID,
		Date:      date,
		Time:      slot,
		Status:    core.StatusScheduled,
		Notes:     req.Notes,
		CreatedAt: e.now(),
	}
	e.store.Append(appointment)
	e.avail.Invalidate(doctor.ID)

	outcome := "direct"
	if rescheduled {
		outcome = "rescheduled"
	}
	metrics.ReservationsTotal.WithLabelValues(outcome).Inc()
	e.log.Info().
		Str("appointment", string(appointment.ID)).
		Str("doctor", string(doctor.ID)).
		Str("patient", string(req.PatientID)).
		Str("date", date.String()).
		Str("time", slot.String()).
		Bool("rescheduled", rescheduled).
		Msg("reservation committed")

	return &ReserveResult{
		Appointment:   appointment,
		AutoCompleted: autoCompleted,
		Rescheduled:   rescheduled,
		RequestedDate: requestedDate,
		RequestedTime: requestedTime,
	}, nil
}

// leastLoadedDoctor picks, among doctors matching the specialty, the one
// with the fewest SCHEDULED appointments. Ties keep the first-registered.
func (e *AllocationEngine) leastLoadedDoctor(specialty string) (core.OwnerID, error) {
	normalized := NormalizeSpecialty(specialty)
	loads := e.scheduledCounts()

	var best core.OwnerID
	bestLoad := -1
	for _, doctor := range e.store.Doctors() {
		if !SpecialtyMatches(doctor.Specialty, normalized) {
			continue
		}
		load := loads[doctor.ID]
		if bestLoad == -1 || load < bestLoad {
			best = doctor.ID
			bestLoad = load
		}
	}
	if bestLoad == -1 {
		return "", fmt.Errorf("no doctors for specialty %q: %w", specialty, core.ErrNotFound)
	}
	return best, nil
}

func (e *AllocationEngine) scheduledCounts() map[core.OwnerID]int {
	counts := make(map[core.OwnerID]int)
	for _, a := range e.store.Appointments() {
		if a.Status.Active() {
			counts[a.DoctorID]++
		}
	}
	return counts
}

// chooseDate returns the requested date, or the doctor's chronologically
// first configured day from today when the request omitted it.
func (e *AllocationEngine) chooseDate(doctor Doctor, requested *core.Date) (core.Date, error) {
	if requested != nil {
		return *requested, nil
	}
	today := e.today()
	for _, day := range doctor.AvailableDays {
		if !day.Before(today) {
			return day, nil
		}
	}
	return core.Date{}, fmt.Errorf("%s has no upcoming available days: %w", doctor.ID, core.ErrNoAvailability)
}

// chooseTime returns the requested time, or the first free hour on the
// chosen date when the request omitted it.
func (e *AllocationEngine) chooseTime(doctor Doctor, date core.Date, requested *core.Clock) (core.Clock, error) {
	if requested != nil {
		return *requested, nil
	}
	if !doctor.HasDay(date) {
		return 0, &core.UnavailableDateError{Owner: doctor.ID, Date: date, ValidDays: doctor.AvailableDays}
	}
	free := e.avail.FreeHours(doctor, date)
	if len(free) == 0 {
		return 0, fmt.Errorf("no free hours for %s on %s: %w", doctor.ID, date, core.ErrNoAvailability)
	}
	return free[0], nil
}

// activeHolder returns the non-terminal appointment holding the slot, if any.
func (e *AllocationEngine) activeHolder(doctorID core.OwnerID, date core.Date, t core.Clock) *Appointment {
	for _, a := range e.store.Appointments() {
		if a.Holds(doctorID, date, t) {
			holder := a
			return &holder
		}
	}
	return nil
}

// searchAlternative implements the auto-reschedule search: same-day
// nearest time first, then the forward day scan.
func (e *AllocationEngine) searchAlternative(doctor Doctor, date core.Date, requested core.Clock) (core.Date, core.Clock, error) {
	// Same-day: smallest absolute minute distance, ties to the later time.
	if free := e.avail.FreeHours(doctor, date); len(free) > 0 {
		best := free[0]
		for _, h := range free[1:] {
			if h.DistanceMinutes(requested) <= best.DistanceMinutes(requested) {
				best = h
			}
		}
		return date, best, nil
	}

	// Forward: next 7 calendar days in order, all days present in the
	// configured list count (weekends included).
	for offset := 1; offset <= forwardSearchDays; offset++ {
		day := date.AddDays(offset)
		if !doctor.HasDay(day) {
			continue
		}
		free := e.avail.FreeHours(doctor, day)
		if len(free) == 0 {
			continue
		}
		for _, h := range free {
			if h == requested {
				return day, h, nil
			}
		}
		return day, free[0], nil
	}
	return core.Date{}, 0, fmt.Errorf("no alternatives within %d days: %w", forwardSearchDays, core.ErrNoAvailability)
}

// -----------------------------------------------------------------------------
// Cancel
// -----------------------------------------------------------------------------

// Cancel transitions a record to CANCELLED, frees its slot and computes
// rebooking suggestions. Direct id lookup takes priority over criteria
// search; the engine never auto-picks among multiple real candidates.
func (e *AllocationEngine) Cancel(req CancelRequest) (*CancelResult, error) {
	target, err := e.findCancelTarget(req)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(target.DoctorID)
	defer unlock()

	if err := e.store.SetStatus(target.ID, core.StatusCancelled); err != nil {
		return nil, err
	}
	e.avail.Invalidate(target.DoctorID)
	target.Status = core.StatusCancelled

	metrics.CancellationsTotal.Inc()
	e.log.Info().
		Str("appointment", string(target.ID)).
		Str("doctor", string(target.DoctorID)).
		Str("reason", req.Reason).
		Msg("appointment cancelled")

	return &CancelResult{
		Cancelled:   target,
		FreedSlot:   FreedSlot{DoctorID: target.DoctorID, Date: target.Date, Time: target.Time},
		Suggestions: e.rebookingSuggestions(target),
	}, nil
}

// Complete marks a visit as finished. Terminal; unknown or already
// terminal records fail with NotFound.
func (e *AllocationEngine) Complete(id core.RecordID) (Appointment, error) {
	a, ok := e.store.Appointment(id)
	if !ok {
		return Appointment{}, fmt.Errorf("appointment %s: %w", id, core.ErrNotFound)
	}

	unlock := e.locks.Lock(a.DoctorID)
	defer unlock()

	if err := e.store.SetStatus(id, core.StatusCompleted); err != nil {
		return Appointment{}, err
	}
	e.avail.Invalidate(a.DoctorID)
	a.Status = core.StatusCompleted
	return a, nil
}

func (e *AllocationEngine) findCancelTarget(req CancelRequest) (Appointment, error) {
	records := e.store.Appointments()

	if req.RecordID != "" {
		upper := strings.ToUpper(string(req.RecordID))
		var similar []core.RecordID
		for _, a := range records {
			if !a.Status.Active() {
				continue
			}
			id := strings.ToUpper(string(a.ID))
			if id == upper {
				return a, nil
			}
			if strings.Contains(id, upper) || strings.Contains(upper, id) {
				similar = append(similar, a.ID)
			}
		}
		return Appointment{}, &UnknownRecordError{ID: req.RecordID, Similar: similar}
	}

	type scored struct {
		appointment Appointment
		score       int
	}
	var matches []scored
	for _, a := range records {
		if !a.Status.Active() {
			continue
		}
		score := 0
		if req.PatientID != "" && strings.Contains(
			strings.ToLower(string(a.PatientID)), strings.ToLower(string(req.PatientID))) {
			score += 3
		}
		if req.DoctorID != "" && req.DoctorID == a.DoctorID {
			score += 2
		}
		if req.Date != nil && req.Date.Equal(a.Date) {
			score += 2
		}
		if score > 0 {
			matches = append(matches, scored{appointment: a, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	switch len(matches) {
	case 0:
		return Appointment{}, fmt.Errorf("no matching appointments: %w", core.ErrNotFound)
	case 1:
		return matches[0].appointment, nil
	default:
		candidates := make([]core.RecordID, 0, maxCancelCandidates)
		for i, m := range matches {
			if i == maxCancelCandidates {
				break
			}
			candidates = append(candidates, m.appointment.ID)
		}
		return Appointment{}, &core.AmbiguousMatchError{Candidates: candidates}
	}
}

// rebookingSuggestions offers up to three alternatives for a cancelled
// appointment: the same doctor's nearest future day within 14 days
// (priority 1), then one day per other doctor of the same specialty
// within 7 days (priority 2).
func (e *AllocationEngine) rebookingSuggestions(cancelled Appointment) []RebookingSuggestion {
	doctor, ok := e.store.Doctor(cancelled.DoctorID)
	if !ok {
		return nil
	}

	var suggestions []RebookingSuggestion
	for offset := 1; offset <= 14; offset++ {
		day := cancelled.Date.AddDays(offset)
		if !doctor.HasDay(day) {
			continue
		}
		free := e.avail.FreeHours(doctor, day)
		if len(free) == 0 {
			continue
		}
		suggestions = append(suggestions, RebookingSuggestion{
			DoctorID:   doctor.ID,
			DoctorName: doctor.Name,
			Specialty:  doctor.Specialty,
			Date:       day,
			Times:      clip(free, 3),
			Priority:   1,
		})
		break
	}

	for _, other := range e.store.Doctors() {
		if other.ID == doctor.ID || other.Specialty != doctor.Specialty {
			continue
		}
		for offset := 0; offset < 7; offset++ {
			day := cancelled.Date.AddDays(offset)
			if !other.HasDay(day) {
				continue
			}
			free := e.avail.FreeHours(other, day)
			if len(free) == 0 {
				continue
			}
			suggestions = append(suggestions, RebookingSuggestion{
				DoctorID:   other.ID,
				DoctorName: other.Name,
				Specialty:  other.Specialty,
				Date:       day,
				Times:      clip(free, 2),
				Priority:   2,
			})
			break
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Priority < suggestions[j].Priority
	})
	if len(suggestions) > maxRebookingSuggestions {
		suggestions = suggestions[:maxRebookingSuggestions]
	}
	return suggestions
}

func clip(hours []core.Clock, n int) []core.Clock {
	if len(hours) <= n {
		return hours
	}
	return hours[:n]
}
