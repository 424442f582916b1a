package scheduling_test

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/scheduling"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func reserveAt(t *testing.T, doctorID, date, hour string, patientID string) scheduling.ReserveRequest {
	t.Helper()
	d := core.MustDate(date)
	h := core.MustClock(hour)
	return scheduling.ReserveRequest{
		DoctorID:  core.OwnerID(doctorID),
		Date:      &d,
		Time:      &h,
		PatientID: core.SubjectID(patientID),
	}
}

// =============================================================================
// RESERVE
// =============================================================================

func TestReserve_DirectCommit(t *testing.T) {
	// GIVEN: an empty history
	// WHEN: a fully specified request lands on a free slot
	// THEN: the record commits with the first sequential id

	_, _, engine := newTestEngines(t)

	res, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "10:00", "john_doe"))
	require.NoError(t, err)

	assert.Equal(t, core.RecordID("APT0001"), res.Appointment.ID)
	assert.Equal(t, core.StatusScheduled, res.Appointment.Status)
	assert.False(t, res.Rescheduled)
	assert.Empty(t, res.AutoCompleted)
}

func TestReserve_SequentialIDs(t *testing.T) {
	_, _, engine := newTestEngines(t)

	first, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p1"))
	require.NoError(t, err)
	second, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "10:00", "p2"))
	require.NoError(t, err)

	assert.Equal(t, core.RecordID("APT0001"), first.Appointment.ID)
	assert.Equal(t, core.RecordID("APT0002"), second.Appointment.ID)
}

func TestReserve_MissingPatientRejected(t *testing.T) {
	_, _, engine := newTestEngines(t)

	req := reserveAt(t, "dr_smith", "2025-06-07", "10:00", "p1")
	req.PatientID = ""
	_, err := engine.Reserve(req)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestReserve_DateOutsideSchedule(t *testing.T) {
	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-07-01", "10:00", "p1"))

	var unavailable *core.UnavailableDateError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, core.OwnerID("dr_smith"), unavailable.Owner)
}

func TestReserve_HourOutsideSchedule(t *testing.T) {
	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "12:00", "p1"))

	var unavailable *core.UnavailableTimeError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, hours("09:00", "10:00", "11:00", "14:00", "15:00"), unavailable.ValidHours)
}

func TestReserve_ConflictCarriesAlternatives(t *testing.T) {
	// GIVEN: 09:00 is taken
	// WHEN: a second patient asks for 09:00 without auto-reschedule
	// THEN: the conflict names the holder and every remaining free hour

	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "john_doe"))
	require.NoError(t, err)

	_, err = engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "jane_roe"))
	require.Error(t, err)

	var conflict *core.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, core.RecordID("APT0001"), conflict.HeldBy)
	assert.Equal(t, hours("10:00", "11:00", "14:00", "15:00"), conflict.Alternatives)
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestReserve_CancelledSlotIsReusable(t *testing.T) {
	_, _, engine := newTestEngines(t)

	first, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p1"))
	require.NoError(t, err)
	_, err = engine.Cancel(scheduling.CancelRequest{RecordID: first.Appointment.ID})
	require.NoError(t, err)

	second, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p2"))
	require.NoError(t, err)
	assert.False(t, second.Rescheduled)
}

// =============================================================================
// AUTO-RESCHEDULE
// =============================================================================

func TestReserve_RescheduleNearestSameDay(t *testing.T) {
	// GIVEN: free hours {09:00, 11:00, 15:00} after 10:00 and 14:00 book up
	// WHEN: a request for the taken 10:00 opts into auto-reschedule
	// THEN: 09:00 and 11:00 are both 60 minutes away; the later wins

	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "10:00", "p1"))
	require.NoError(t, err)
	_, err = engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "14:00", "p2"))
	require.NoError(t, err)

	req := reserveAt(t, "dr_smith", "2025-06-07", "10:00", "p3")
	req.AutoReschedule = true
	res, err := engine.Reserve(req)
	require.NoError(t, err)

	assert.True(t, res.Rescheduled)
	assert.Equal(t, "2025-06-07", res.Appointment.Date.String())
	assert.Equal(t, core.MustClock("11:00"), res.Appointment.Time)
	assert.Equal(t, core.MustClock("10:00"), res.RequestedTime)
}

func TestReserve_RescheduleStrictlyNearest(t *testing.T) {
	// free hours {09:00, 11:00, 15:00} with 09:00 then also booked: the
	// unambiguous nearest 11:00 wins over 15:00 (60 vs 300 minutes).

	_, _, engine := newTestEngines(t)

	for i, h := range []string{"10:00", "14:00", "09:00"} {
		_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", h, "seed"+string(rune('a'+i))))
		require.NoError(t, err)
	}

	req := reserveAt(t, "dr_smith", "2025-06-07", "10:00", "p3")
	req.AutoReschedule = true
	res, err := engine.Reserve(req)
	require.NoError(t, err)

	assert.Equal(t, core.MustClock("11:00"), res.Appointment.Time)
}

func TestReserve_RescheduleForwardDayPrefersExactTime(t *testing.T) {
	// GIVEN: every hour on the requested day is taken
	// THEN: the search rolls to the next configured day, keeping the
	//       requested hour because it is free there

	_, _, engine := newTestEngines(t)

	for i, h := range []string{"09:00", "10:00", "11:00", "14:00", "15:00"} {
		_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", h, "seed"+string(rune('a'+i))))
		require.NoError(t, err)
	}

	req := reserveAt(t, "dr_smith", "2025-06-07", "14:00", "late_patient")
	req.AutoReschedule = true
	res, err := engine.Reserve(req)
	require.NoError(t, err)

	assert.True(t, res.Rescheduled)
	assert.Equal(t, "2025-06-08", res.Appointment.Date.String())
	assert.Equal(t, core.MustClock("14:00"), res.Appointment.Time)
}

func TestReserve_RescheduleExhaustedHorizon(t *testing.T) {
	// dr_lee only works 06-08 and 06-09 with two hours each; fill both.

	_, _, engine := newTestEngines(t)

	for _, slot := range []struct{ date, hour string }{
		{"2025-06-08", "09:00"}, {"2025-06-08", "10:00"},
		{"2025-06-09", "09:00"}, {"2025-06-09", "10:00"},
	} {
		_, err := engine.Reserve(reserveAt(t, "dr_lee", slot.date, slot.hour, "seed"))
		require.NoError(t, err)
	}

	req := reserveAt(t, "dr_lee", "2025-06-08", "09:00", "p_late")
	req.AutoReschedule = true
	_, err := engine.Reserve(req)
	assert.ErrorIs(t, err, core.ErrNoAvailability)
}

// =============================================================================
// AUTO-COMPLETION
// =============================================================================

func TestReserve_AutoCompletesDateAndTime(t *testing.T) {
	_, _, engine := newTestEngines(t)

	res, err := engine.Reserve(scheduling.ReserveRequest{
		DoctorID:  "dr_smith",
		PatientID: "walk_in",
	})
	require.NoError(t, err)

	// First configured day not before today, first free hour.
	assert.Equal(t, "2025-06-07", res.Appointment.Date.String())
	assert.Equal(t, core.MustClock("09:00"), res.Appointment.Time)
	assert.Equal(t, []string{"date", "time"}, res.AutoCompleted)
}

func TestReserve_AutoSelectsLeastLoadedDoctor(t *testing.T) {
	// GIVEN: two cardiologists, dr_smith carrying two scheduled visits
	// WHEN: a request names only the specialty
	// THEN: dr_lee, with zero load, is chosen

	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p1"))
	require.NoError(t, err)
	_, err = engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "10:00", "p2"))
	require.NoError(t, err)

	res, err := engine.Reserve(scheduling.ReserveRequest{
		Specialty: "heart",
		PatientID: "p3",
	})
	require.NoError(t, err)

	assert.Equal(t, core.OwnerID("dr_lee"), res.Appointment.DoctorID)
	assert.Contains(t, res.AutoCompleted, "doctor_id")
}

func TestReserve_LeastLoadedTieKeepsFirstRegistered(t *testing.T) {
	_, _, engine := newTestEngines(t)

	res, err := engine.Reserve(scheduling.ReserveRequest{
		Specialty: "cardiology",
		PatientID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, core.OwnerID("dr_smith"), res.Appointment.DoctorID)
}

func TestReserve_UnknownSpecialty(t *testing.T) {
	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(scheduling.ReserveRequest{
		Specialty: "dermatology",
		PatientID: "p1",
	})
	assert.True(t, core.IsNotFound(err))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestReserve_ConcurrentSameSlotSingleWinner(t *testing.T) {
	// 20 goroutines race for dr_smith 2025-06-07 10:00 without reschedule:
	// exactly one commits, the rest conflict.

	_, _, engine := newTestEngines(t)

	const racers = 20
	var wg sync.WaitGroup
	committed := make(chan core.RecordID, racers)
	conflicted := make(chan error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "10:00", "racer"))
			if err != nil {
				conflicted <- err
				return
			}
			committed <- res.Appointment.ID
		}(i)
	}
	wg.Wait()
	close(committed)
	close(conflicted)

	assert.Len(t, committed, 1)
	assert.Len(t, conflicted, racers-1)
	for err := range conflicted {
		assert.ErrorIs(t, err, core.ErrConflict)
	}
}

func TestReserve_ConcurrentRescheduleNeverDoubleBooks(t *testing.T) {
	store, _, engine := newTestEngines(t)

	const racers = 10
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := reserveAt(t, "dr_smith", "2025-06-07", "10:00", "racer")
			req.AutoReschedule = true
			_, err := engine.Reserve(req)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := make(map[string]core.RecordID)
	for _, a := range store.Appointments() {
		if !a.Status.Active() {
			continue
		}
		key := string(a.DoctorID) + "|" + a.Date.String() + "|" + a.Time.String()
		other, dup := seen[key]
		require.Falsef(t, dup, "slot %s held by both %s and %s", key, other, a.ID)
		seen[key] = a.ID
	}
	assert.Len(t, seen, racers)
}

func TestReserve_RescheduleUnderConcurrentReadersNeverDoubleBooks(t *testing.T) {
	// Availability readers race the commit path for the cache: a reader
	// may finish computing a free-hour list after a commit books one of
	// those hours. Whatever it files, every committed slot must still
	// have exactly one active holder.

	store, avail, engine := newTestEngines(t)
	date := core.MustDate("2025-06-07")

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_, _ = avail.SlotsFor("dr_smith", date)
					_, _ = avail.NextAvailable("dr_smith", 7)
				}
			}
		}()
	}

	const racers = 10
	var writers sync.WaitGroup
	for i := 0; i < racers; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			req := reserveAt(t, "dr_smith", "2025-06-07", "10:00", "racer")
			req.AutoReschedule = true
			_, err := engine.Reserve(req)
			assert.NoError(t, err)
		}()
	}
	writers.Wait()
	close(stop)
	readers.Wait()

	seen := make(map[string]core.RecordID)
	for _, a := range store.Appointments() {
		if !a.Status.Active() {
			continue
		}
		key := string(a.DoctorID) + "|" + a.Date.String() + "|" + a.Time.String()
		other, dup := seen[key]
		require.Falsef(t, dup, "slot %s held by both %s and %s", key, other, a.ID)
		seen[key] = a.ID
	}
	assert.Len(t, seen, racers)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_ByIDCaseInsensitive(t *testing.T) {
	_, _, engine := newTestEngines(t)

	res, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "john_doe"))
	require.NoError(t, err)

	out, err := engine.Cancel(scheduling.CancelRequest{RecordID: "apt0001"})
	require.NoError(t, err)

	assert.Equal(t, res.Appointment.ID, out.Cancelled.ID)
	assert.Equal(t, core.StatusCancelled, out.Cancelled.Status)
	assert.Equal(t, core.MustClock("09:00"), out.FreedSlot.Time)
}

func TestCancel_NotIdempotent(t *testing.T) {
	// A second cancel of the same id fails: the record is no longer active.

	_, _, engine := newTestEngines(t)

	res, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p1"))
	require.NoError(t, err)
	_, err = engine.Cancel(scheduling.CancelRequest{RecordID: res.Appointment.ID})
	require.NoError(t, err)

	_, err = engine.Cancel(scheduling.CancelRequest{RecordID: res.Appointment.ID})
	assert.True(t, core.IsNotFound(err))
}

func TestCancel_UnknownIDListsSimilar(t *testing.T) {
	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p1"))
	require.NoError(t, err)

	_, err = engine.Cancel(scheduling.CancelRequest{RecordID: "APT000"})
	require.Error(t, err)

	var unknown *scheduling.UnknownRecordError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []core.RecordID{"APT0001"}, unknown.Similar)
	assert.True(t, core.IsNotFound(err))
}

func TestCancel_ByCriteriaSingleMatch(t *testing.T) {
	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "john_doe"))
	require.NoError(t, err)
	_, err = engine.Reserve(reserveAt(t, "dr_jones", "2025-06-07", "14:00", "jane_roe"))
	require.NoError(t, err)

	out, err := engine.Cancel(scheduling.CancelRequest{PatientID: "jane"})
	require.NoError(t, err)
	assert.Equal(t, core.SubjectID("jane_roe"), out.Cancelled.PatientID)
}

func TestCancel_AmbiguousCriteriaListsTopCandidates(t *testing.T) {
	// GIVEN: seven visits by the same patient
	// WHEN: the cancel names only that patient
	// THEN: the engine refuses and lists at most five candidates

	_, _, engine := newTestEngines(t)

	for _, slot := range []struct{ doctor, date, hour string }{
		{"dr_smith", "2025-06-07", "09:00"},
		{"dr_smith", "2025-06-07", "10:00"},
		{"dr_smith", "2025-06-08", "09:00"},
		{"dr_jones", "2025-06-07", "14:00"},
		{"dr_jones", "2025-06-07", "15:00"},
		{"dr_wilson", "2025-06-07", "08:00"},
		{"dr_brown", "2025-06-07", "13:00"},
	} {
		_, err := engine.Reserve(reserveAt(t, slot.doctor, slot.date, slot.hour, "frequent_flyer"))
		require.NoError(t, err)
	}

	_, err := engine.Cancel(scheduling.CancelRequest{PatientID: "frequent_flyer"})
	require.Error(t, err)

	var ambiguous *core.AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	assert.Len(t, ambiguous.Candidates, 5)
	assert.ErrorIs(t, err, core.ErrAmbiguousMatch)
}

func TestCancel_CriteriaScoringRanksCandidates(t *testing.T) {
	// Two visits match patient+doctor but only one matches the date, so
	// the search still reports both; the stronger match leads the list.

	_, _, engine := newTestEngines(t)

	_, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "john_doe"))
	require.NoError(t, err)
	target, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-08", "09:00", "john_doe"))
	require.NoError(t, err)

	date := core.MustDate("2025-06-08")
	_, err = engine.Cancel(scheduling.CancelRequest{
		PatientID: "john_doe",
		DoctorID:  "dr_smith",
		Date:      &date,
	})
	require.Error(t, err)

	var ambiguous *core.AmbiguousMatchError
	require.ErrorAs(t, err, &ambiguous)
	require.Len(t, ambiguous.Candidates, 2)
	assert.Equal(t, target.Appointment.ID, ambiguous.Candidates[0])
}

func TestCancel_RebookingSuggestions(t *testing.T) {
	// GIVEN: a cancelled visit with dr_smith on 06-07
	// THEN: priority 1 points at dr_smith's next day, priority 2 at the
	//       other cardiologist, capped at three total

	_, _, engine := newTestEngines(t)

	res, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p1"))
	require.NoError(t, err)

	out, err := engine.Cancel(scheduling.CancelRequest{RecordID: res.Appointment.ID})
	require.NoError(t, err)

	require.NotEmpty(t, out.Suggestions)
	first := out.Suggestions[0]
	assert.Equal(t, 1, first.Priority)
	assert.Equal(t, core.OwnerID("dr_smith"), first.DoctorID)
	assert.Equal(t, "2025-06-08", first.Date.String())
	assert.LessOrEqual(t, len(first.Times), 3)

	require.Len(t, out.Suggestions, 2)
	second := out.Suggestions[1]
	assert.Equal(t, 2, second.Priority)
	assert.Equal(t, core.OwnerID("dr_lee"), second.DoctorID)
	assert.LessOrEqual(t, len(second.Times), 2)
}

// =============================================================================
// COMPLETE
// =============================================================================

func TestComplete_TransitionsAndFreezes(t *testing.T) {
	_, _, engine := newTestEngines(t)

	res, err := engine.Reserve(reserveAt(t, "dr_smith", "2025-06-07", "09:00", "p1"))
	require.NoError(t, err)

	done, err := engine.Complete(res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, done.Status)

	// Terminal: neither cancel nor a second complete may touch it.
	_, err = engine.Cancel(scheduling.CancelRequest{RecordID: res.Appointment.ID})
	assert.True(t, core.IsNotFound(err))
	_, err = engine.Complete(res.Appointment.ID)
	assert.Error(t, err)
}

func TestComplete_UnknownID(t *testing.T) {
	_, _, engine := newTestEngines(t)

	_, err := engine.Complete("APT9999")
	assert.True(t, core.IsNotFound(err))
}

// =============================================================================
// STORE
// =============================================================================

func TestRegisterDoctor_DuplicateIsConflict(t *testing.T) {
	// Owner metadata is immutable: re-registering an id is a conflict,
	// same as every other registry in the system, so seed loaders can
	// coexist with data registered by hand.

	store := newTestStore(t)

	err := store.RegisterDoctor(scheduling.Doctor{
		ID: "dr_smith", Name: "Dr. Smith II", Specialty: "Cardiology",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.NotErrorIs(t, err, core.ErrInvalidInput)

	// The original registration is untouched.
	kept, ok := store.Doctor("dr_smith")
	require.True(t, ok)
	assert.Equal(t, "Dr. Smith", kept.Name)
}
