package core_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hospital-engine/core"
)

// =============================================================================
// DATE / CLOCK
// =============================================================================

func TestParseDate_RoundTrips(t *testing.T) {
	d, err := core.ParseDate("2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-07", d.String())
	assert.Equal(t, time.Saturday, d.Weekday())
}

func TestParseDate_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "06/07/2025", "2025-13-01", "tomorrow"} {
		_, err := core.ParseDate(raw)
		assert.Error(t, err, raw)
	}
}

func TestDate_AddDaysAndCompare(t *testing.T) {
	d := core.MustDate("2025-06-07")
	next := d.AddDays(1)

	assert.Equal(t, "2025-06-08", next.String())
	assert.True(t, d.Before(next))
	assert.True(t, next.After(d))
	assert.Equal(t, 1, core.DaysBetween(d, next))
	assert.Equal(t, -1, core.DaysBetween(next, d))
}

func TestParseClock_MinuteArithmetic(t *testing.T) {
	c, err := core.ParseClock("09:30")
	require.NoError(t, err)

	assert.Equal(t, 9*60+30, c.Minutes())
	assert.Equal(t, "09:30", c.String())
	assert.Equal(t, 90, c.DistanceMinutes(core.MustClock("11:00")))
	assert.Equal(t, 90, core.MustClock("11:00").DistanceMinutes(c))
}

func TestParseClock_RejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "9am", "25:00", "10:61"} {
		_, err := core.ParseClock(raw)
		assert.Error(t, err, raw)
	}
}

// =============================================================================
// STATUS
// =============================================================================

func TestRecordStatus_Terminality(t *testing.T) {
	assert.False(t, core.StatusScheduled.Terminal())
	assert.True(t, core.StatusCancelled.Terminal())
	assert.True(t, core.StatusCompleted.Terminal())
	assert.True(t, core.StatusScheduled.Active())
	assert.False(t, core.StatusCancelled.Active())
}

// =============================================================================
// SEQUENCE
// =============================================================================

func TestSequence_ZeroPaddedMonotonic(t *testing.T) {
	seq := core.NewSequence("APT", 4)

	assert.Equal(t, core.RecordID("APT0001"), seq.Next())
	assert.Equal(t, core.RecordID("APT0002"), seq.Next())
}

func TestSequence_UniqueUnderConcurrency(t *testing.T) {
	seq := core.NewSequence("APT", 4)

	const n = 200
	ids := make(chan core.RecordID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- seq.Next()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[core.RecordID]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

// =============================================================================
// KEYED MUTEX
// =============================================================================

func TestKeyedMutex_OppositeOrderAcquisitionCompletes(t *testing.T) {
	// GIVEN: two goroutines locking {WardA, WardB} in opposite argument order
	// WHEN: both run many iterations concurrently
	// THEN: lexicographic acquisition order prevents deadlock and the test ends

	km := core.NewKeyedMutex()
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 2; i++ {
		wg.Add(1)
		first, second := core.OwnerID("WardA"), core.OwnerID("WardB")
		if i == 1 {
			first, second = second, first
		}
		go func(a, b core.OwnerID) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				unlock := km.LockAll(a, b)
				counter++
				unlock()
			}
		}(first, second)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("deadlock: transfers in opposite orders never finished")
	}
	assert.Equal(t, 1000, counter)
}

func TestKeyedMutex_DuplicateIDsLockOnce(t *testing.T) {
	km := core.NewKeyedMutex()
	unlock := km.LockAll("acct", "acct")
	unlock() // would deadlock (or double-unlock) if "acct" were acquired twice
}
