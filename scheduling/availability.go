/*
availability.go - Read-only queries over doctor pools

PURPOSE:
  Answers "what is free" without mutating anything: slot-level (one doctor,
  one date), horizon scans (next available day), and specialty-wide
  aggregation. All results are computed from a snapshot of the store and
  may go stale while being served; the reservation commit path re-checks
  under the owner lock.

CACHING:
  The per-(doctor, date) free-slot computation is the hot path of every
  availability query and of the auto-reschedule search, so it sits behind
  a small LRU. Cache keys carry a per-doctor epoch that the allocation
  engine bumps on every commit touching that doctor. A reader that
  computed its list from a pre-commit snapshot stores it under the epoch
  it started from, so a commit landing mid-computation retires the entry
  before it can ever be served; retired entries age out of the LRU.
*/
package scheduling

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/warp/hospital-engine/core"
)

// DefaultHorizonDays bounds the forward day-by-day scan of NextAvailable.
const DefaultHorizonDays = 7

// SpecialtyHorizonDays is the wider horizon used for specialty-wide scans.
const SpecialtyHorizonDays = 14

// =============================================================================
// RESULT TYPES
// =============================================================================

// DaySlots is the availability picture for one doctor on one date.
type DaySlots struct {
	Doctor    Doctor
	Date      core.Date
	Available []core.Clock
	Booked    []core.Clock
}

// Utilization returns booked slots as a percentage of the day's capacity.
func (d DaySlots) Utilization() float64 {
	total := len(d.Available) + len(d.Booked)
	if total == 0 {
		return 0
	}
	return float64(len(d.Booked)) / float64(total) * 100
}

// DayAvailability names the first day of a horizon scan with free hours.
type DayAvailability struct {
	Date      core.Date
	FreeHours []core.Clock
}

// DoctorAvailability is one doctor's entry in a specialty-wide snapshot.
type DoctorAvailability struct {
	Doctor Doctor
	// Day is set when the query named a date.
	Day *DaySlots
	// Next is set when the query scanned a horizon instead.
	Next *DayAvailability
}

// =============================================================================
// AVAILABILITY ENGINE
// =============================================================================

type slotKey struct {
	doctor core.OwnerID
	date   string
	epoch  uint64
}

// AvailabilityEngine serves read-only queries over doctor pools.
type AvailabilityEngine struct {
	store Store
	cache *lru.Cache[slotKey, []core.Clock]
	today func() core.Date

	mu     sync.Mutex
	epochs map[core.OwnerID]uint64
}

// NewAvailabilityEngine creates an engine with a free-slot cache of the
// given size (minimum 1).
func NewAvailabilityEngine(store Store, cacheSize int) *AvailabilityEngine {
	if cacheSize < 1 {
		cacheSize = 1
	}
	cache, _ := lru.New[slotKey, []core.Clock](cacheSize)
	return &AvailabilityEngine{
		store:  store,
		cache:  cache,
		today:  core.Today,
		epochs: make(map[core.OwnerID]uint64),
	}
}

func (e *AvailabilityEngine) epoch(doctorID core.OwnerID) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epochs[doctorID]
}

// WithToday overrides the engine's notion of "today". Test hook.
func (e *AvailabilityEngine) WithToday(today func() core.Date) *AvailabilityEngine {
	e.today = today
	return e
}

// SlotsFor returns the free and booked hours for a doctor on a date.
// A date outside the doctor's configured days yields UnavailableDateError
// carrying the valid day list.
func (e *AvailabilityEngine) SlotsFor(doctorID core.OwnerID, date core.Date) (DaySlots, error) {
	doctor, ok := e.store.Doctor(doctorID)
	if !ok {
		return DaySlots{}, fmt.Errorf("doctor %s: %w", doctorID, core.ErrNotFound)
	}
	if !doctor.HasDay(date) {
		return DaySlots{}, &core.UnavailableDateError{
			Owner:     doctorID,
			Date:      date,
			ValidDays: doctor.AvailableDays,
		}
	}

	free := e.FreeHours(doctor, date)
	booked := make([]core.Clock, 0, len(doctor.AvailableHours)-len(free))
	freeSet := make(map[core.Clock]bool, len(free))
	for _, h := range free {
		freeSet[h] = true
	}
	for _, h := range doctor.AvailableHours {
		if !freeSet[h] {
			booked = append(booked, h)
		}
	}
	return DaySlots{Doctor: doctor, Date: date, Available: free, Booked: booked}, nil
}

// NextAvailable scans forward day-by-day in calendar order starting today
// and returns the first configured day with at least one free hour, or nil
// when the horizon is exhausted. First match wins; no scoring.
func (e *AvailabilityEngine) NextAvailable(doctorID core.OwnerID, horizonDays int) (*DayAvailability, error) {
	doctor, ok := e.store.Doctor(doctorID)
	if !ok {
		return nil, fmt.Errorf("doctor %s: %w", doctorID, core.ErrNotFound)
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}

	start := e.today()
	for offset := 0; offset < horizonDays; offset++ {
		day := start.AddDays(offset)
		if !doctor.HasDay(day) {
			continue
		}
		if free := e.FreeHours(doctor, day); len(free) > 0 {
			return &DayAvailability{Date: day, FreeHours: free}, nil
		}
	}
	return nil, nil
}

// BySpecialty returns an availability snapshot per doctor matching the
// (synonym-normalized) specialty. With a date the snapshot is slot-level;
// without one it is the next available day within SpecialtyHorizonDays.
// Doctors appear in registration order.
func (e *AvailabilityEngine) BySpecialty(specialty string, date *core.Date) ([]DoctorAvailability, error) {
	normalized := NormalizeSpecialty(specialty)
	var out []DoctorAvailability
	for _, doctor := range e.store.Doctors() {
		if !SpecialtyMatches(doctor.Specialty, normalized) {
			continue
		}
		entry := DoctorAvailability{Doctor: doctor}
		if date != nil {
			day, err := e.SlotsFor(doctor.ID, *date)
			if err == nil {
				entry.Day = &day
			}
			// an unavailable date for one doctor is a gap, not a failure
		} else {
			next, err := e.NextAvailable(doctor.ID, SpecialtyHorizonDays)
			if err != nil {
				return nil, err
			}
			entry.Next = next
		}
		out = append(out, entry)
	}
	if out == nil {
		return nil, fmt.Errorf("no doctors for specialty %q: %w", specialty, core.ErrNotFound)
	}
	return out, nil
}

// FreeHours computes the doctor's unoccupied hours on a date, ascending.
// Cached per (doctor, date, epoch); Invalidate retires a doctor's entries.
func (e *AvailabilityEngine) FreeHours(doctor Doctor, date core.Date) []core.Clock {
	// The epoch is read before the store snapshot. A commit landing after
	// this point bumps it, so the Add below files the stale list under a
	// retired key that Get can never match again.
	key := slotKey{doctor: doctor.ID, date: date.String(), epoch: e.epoch(doctor.ID)}
	if cached, ok := e.cache.Get(key); ok {
		return cached
	}

	booked := make(map[core.Clock]bool)
	for _, a := range e.store.Appointments() {
		if a.Status.Active() && a.DoctorID == doctor.ID && a.Date.Equal(date) {
			booked[a.Time] = true
		}
	}
	free := make([]core.Clock, 0, len(doctor.AvailableHours))
	for _, h := range doctor.AvailableHours {
		if !booked[h] {
			free = append(free, h)
		}
	}
	e.cache.Add(key, free)
	return free
}

// Invalidate retires every cached entry for the doctor by bumping the
// doctor's epoch. Called by the allocation engine inside the commit
// critical section, so a later FreeHours under the owner lock always
// recomputes from the post-commit history.
func (e *AvailabilityEngine) Invalidate(doctorID core.OwnerID) {
	e.mu.Lock()
	e.epochs[doctorID]++
	e.mu.Unlock()
}
