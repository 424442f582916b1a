package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hospital-engine/analytics"
	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/inventory"
	"github.com/warp/hospital-engine/scheduling"
)

// =============================================================================
// FIXTURES
// =============================================================================

func testDoctors() []scheduling.Doctor {
	days := []core.Date{core.MustDate("2025-06-07"), core.MustDate("2025-06-08")}
	return []scheduling.Doctor{
		{ID: "dr_smith", Name: "Dr. Smith", Specialty: "Cardiology",
			AvailableDays: days,
			AvailableHours: []core.Clock{
				core.MustClock("09:00"), core.MustClock("10:00"),
				core.MustClock("11:00"), core.MustClock("14:00"), core.MustClock("15:00"),
			}},
		{ID: "dr_jones", Name: "Dr. Jones", Specialty: "Orthopedics",
			AvailableDays: days,
			AvailableHours: []core.Clock{
				core.MustClock("14:00"), core.MustClock("15:00"),
			}},
	}
}

func apt(id, doctor, patient, date, hour string, status core.RecordStatus) scheduling.Appointment {
	return scheduling.Appointment{
		ID:        core.RecordID(id),
		DoctorID:  core.OwnerID(doctor),
		PatientID: core.SubjectID(patient),
		Date:      core.MustDate(date),
		Time:      core.MustClock(hour),
		Status:    status,
	}
}

// =============================================================================
// BANDS
// =============================================================================

func TestUtilizationBand_Thresholds(t *testing.T) {
	cases := []struct {
		rate float64
		want analytics.Band
	}{
		{95, analytics.BandOverbooked},
		{90.1, analytics.BandOverbooked},
		{90, analytics.BandBusy},
		{70.5, analytics.BandBusy},
		{70, analytics.BandModerate},
		{41, analytics.BandModerate},
		{40, analytics.BandUnderutilized},
		{0, analytics.BandUnderutilized},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, analytics.UtilizationBand(tc.rate), "rate %.1f", tc.rate)
	}
}

func TestSystemHealth_Thresholds(t *testing.T) {
	cases := []struct {
		cancellation float64
		utilization  float64
		want         analytics.Health
	}{
		{5, 60, analytics.HealthExcellent},
		{9.9, 40, analytics.HealthExcellent},
		{12, 60, analytics.HealthGood},
		{5, 85, analytics.HealthGood},  // utilization above the excellent band
		{20, 60, analytics.HealthWarning},
		{5, 88, analytics.HealthWarning}, // above the good band too
		{30, 60, analytics.HealthCritical},
		{5, 95, analytics.HealthCritical},
	}
	for _, tc := range cases {
		got := analytics.SystemHealth(tc.cancellation, tc.utilization)
		assert.Equal(t, tc.want, got, "cancel %.1f util %.1f", tc.cancellation, tc.utilization)
	}
}

// =============================================================================
// OVERVIEW
// =============================================================================

func TestOverview_CountsAndRates(t *testing.T) {
	doctors := testDoctors()
	history := []scheduling.Appointment{
		apt("APT0001", "dr_smith", "p1", "2025-06-07", "09:00", core.StatusScheduled),
		apt("APT0002", "dr_smith", "p2", "2025-06-07", "10:00", core.StatusScheduled),
		apt("APT0003", "dr_smith", "p3", "2025-06-08", "09:00", core.StatusCancelled),
		apt("APT0004", "dr_jones", "p1", "2025-06-07", "14:00", core.StatusCompleted),
	}

	report := analytics.Overview(doctors, history)

	assert.Equal(t, 2, report.TotalDoctors)
	assert.Equal(t, 4, report.TotalAppointments)
	assert.Equal(t, 2, report.Scheduled)
	assert.Equal(t, 1, report.Cancelled)
	assert.Equal(t, 1, report.Completed)
	assert.InDelta(t, 25.0, report.CancellationRate, 0.01)
	assert.InDelta(t, 25.0, report.CompletionRate, 0.01)

	// dr_smith: 2 scheduled / 10 capacity = 20%; dr_jones: 0 / 4 = 0%.
	require.Len(t, report.Doctors, 2)
	assert.InDelta(t, 20.0, report.Doctors[0].Rate, 0.01)
	assert.Equal(t, analytics.BandUnderutilized, report.Doctors[0].Band)
	assert.Zero(t, report.Doctors[1].Rate)

	assert.Equal(t, 14, report.Capacity.TotalCapacity)
	assert.Equal(t, 2, report.Capacity.CurrentBookings)
	assert.Equal(t, 12, report.Capacity.AvailableCapacity)

	// Cancellation 25% pushes health past the warning band.
	assert.Equal(t, analytics.HealthCritical, report.Health)
}

func TestOverview_PeakDaysChronologicalTieBreak(t *testing.T) {
	doctors := testDoctors()
	history := []scheduling.Appointment{
		apt("APT0001", "dr_smith", "p1", "2025-06-08", "09:00", core.StatusScheduled),
		apt("APT0002", "dr_smith", "p2", "2025-06-07", "10:00", core.StatusScheduled),
	}

	report := analytics.Overview(doctors, history)
	require.Len(t, report.PeakDays, 2)
	// Equal counts: the date seen first in history order leads.
	assert.Equal(t, core.MustDate("2025-06-08"), report.PeakDays[0].Date)
}

func TestOverview_EmptyHistory(t *testing.T) {
	report := analytics.Overview(testDoctors(), nil)

	assert.Zero(t, report.TotalAppointments)
	assert.Zero(t, report.CancellationRate)
	assert.Empty(t, report.PeakDays)
	// Zero utilization with zero cancellations lands outside every
	// healthy utilization band.
	assert.Equal(t, analytics.HealthCritical, report.Health)
}

// =============================================================================
// SPECIALTIES AND EFFICIENCY
// =============================================================================

func TestSpecialtyDistribution(t *testing.T) {
	doctors := testDoctors()
	history := []scheduling.Appointment{
		apt("APT0001", "dr_jones", "p1", "2025-06-07", "14:00", core.StatusScheduled),
		apt("APT0002", "dr_jones", "p2", "2025-06-07", "15:00", core.StatusScheduled),
		apt("APT0003", "dr_jones", "p3", "2025-06-08", "14:00", core.StatusScheduled),
		apt("APT0004", "dr_jones", "p4", "2025-06-08", "15:00", core.StatusScheduled),
	}

	stats := analytics.SpecialtyDistribution(doctors, history)
	require.Len(t, stats, 2)
	assert.Equal(t, "Cardiology", stats[0].Specialty)
	assert.Zero(t, stats[0].Rate)
	assert.Equal(t, "Orthopedics", stats[1].Specialty)
	assert.InDelta(t, 100.0, stats[1].Rate, 0.01)

	bottlenecks := analytics.Bottlenecks(doctors, history)
	require.Len(t, bottlenecks, 1)
	assert.Equal(t, "Orthopedics", bottlenecks[0].Specialty)
}

func TestEfficiency_FlagsOverbooked(t *testing.T) {
	doctors := testDoctors()
	history := []scheduling.Appointment{
		apt("APT0001", "dr_jones", "p1", "2025-06-07", "14:00", core.StatusScheduled),
		apt("APT0002", "dr_jones", "p2", "2025-06-07", "15:00", core.StatusScheduled),
		apt("APT0003", "dr_jones", "p3", "2025-06-08", "14:00", core.StatusScheduled),
		apt("APT0004", "dr_jones", "p4", "2025-06-08", "15:00", core.StatusScheduled),
	}

	report := analytics.Efficiency(doctors, history)
	assert.Equal(t, []core.OwnerID{"dr_jones"}, report.Overbooked)
	assert.Equal(t, []core.OwnerID{"dr_smith"}, report.Underutilized)
}

// =============================================================================
// TRENDS
// =============================================================================

func TestTrends_DistributionsAndPeaks(t *testing.T) {
	history := []scheduling.Appointment{
		apt("APT0001", "dr_smith", "p1", "2025-06-08", "09:00", core.StatusScheduled),
		apt("APT0002", "dr_smith", "p2", "2025-06-07", "09:00", core.StatusScheduled),
		apt("APT0003", "dr_smith", "p3", "2025-06-07", "10:00", core.StatusScheduled),
		apt("APT0004", "dr_smith", "p4", "2025-06-07", "11:00", core.StatusCancelled),
	}

	report := analytics.Trends(history)
	assert.Equal(t, 3, report.Scheduled)

	// Dates sort chronologically regardless of history order.
	require.Len(t, report.ByDate, 2)
	assert.Equal(t, core.MustDate("2025-06-07"), report.ByDate[0].Date)
	assert.Equal(t, 2, report.ByDate[0].Count)

	// 09:00 leads the peak hours with two bookings.
	require.NotEmpty(t, report.PeakHours)
	assert.Equal(t, core.MustClock("09:00"), report.PeakHours[0].Hour)
	assert.Equal(t, 2, report.PeakHours[0].Count)
}

// =============================================================================
// PATIENT INSIGHTS
// =============================================================================

func TestPatientInsights_ReliabilityAndArgMax(t *testing.T) {
	doctors := testDoctors()
	history := []scheduling.Appointment{
		apt("APT0001", "dr_smith", "frequent", "2025-06-07", "09:00", core.StatusCompleted),
		apt("APT0002", "dr_smith", "frequent", "2025-06-07", "10:00", core.StatusScheduled),
		apt("APT0003", "dr_jones", "frequent", "2025-06-07", "14:00", core.StatusCancelled),
		apt("APT0004", "dr_jones", "frequent", "2025-06-08", "09:00", core.StatusCancelled),
		apt("APT0005", "dr_smith", "someone_else", "2025-06-08", "11:00", core.StatusScheduled),
	}

	report := analytics.PatientInsights("frequent", doctors, history)

	assert.Equal(t, 4, report.TotalAppointments)
	assert.Equal(t, 2, report.Cancelled)
	assert.InDelta(t, 50.0, report.CancellationRate, 0.01)
	assert.InDelta(t, 50.0, report.ReliabilityScore, 0.01)

	// dr_smith and dr_jones both have 2 visits; first encountered wins.
	assert.Equal(t, core.OwnerID("dr_smith"), report.MostVisitedDoctor)
	assert.Equal(t, "Cardiology", report.MostVisitedSpecialty)

	// 09:00 appears twice, every other hour once.
	require.NotNil(t, report.PreferredHour)
	assert.Equal(t, core.MustClock("09:00"), *report.PreferredHour)
}

func TestPatientInsights_UnknownPatient(t *testing.T) {
	report := analytics.PatientInsights("ghost", testDoctors(), nil)

	assert.Zero(t, report.TotalAppointments)
	assert.InDelta(t, 100.0, report.ReliabilityScore, 0.01)
	assert.Empty(t, report.MostVisitedSpecialty)
	assert.Nil(t, report.PreferredHour)
}

// =============================================================================
// DEMAND
// =============================================================================

func TestClassifyDemand(t *testing.T) {
	assert.Equal(t, analytics.DemandFast, analytics.ClassifyDemand(101))
	assert.Equal(t, analytics.DemandMedium, analytics.ClassifyDemand(100))
	assert.Equal(t, analytics.DemandMedium, analytics.ClassifyDemand(31))
	assert.Equal(t, analytics.DemandSlow, analytics.ClassifyDemand(30))
	assert.Equal(t, analytics.DemandSlow, analytics.ClassifyDemand(0))
}

func TestHasDepletionSpike(t *testing.T) {
	// Flat series: trailing average equals overall average.
	assert.False(t, analytics.HasDepletionSpike([]int{10, 10, 10, 10, 10}))

	// Overall average 20, trailing (40+40+40)/3 = 40 > 30.
	assert.True(t, analytics.HasDepletionSpike([]int{5, 5, 5, 40, 40, 40}))

	// Too short to compare windows.
	assert.False(t, analytics.HasDepletionSpike([]int{100, 100, 100}))
}

func TestDemandProfile(t *testing.T) {
	items := []inventory.Item{
		{ID: "med_001", Name: "Paracetamol", UsageHistory: []int{15, 18, 22, 20}},
		{ID: "equip_002", Name: "Syringes", UsageHistory: []int{45, 50, 48, 52}},
		{ID: "med_003", Name: "Saline", UsageHistory: []int{2, 3}},
	}

	profile := analytics.DemandProfile(items)
	require.Len(t, profile, 3)
	assert.Equal(t, analytics.DemandMedium, profile[0].Class)
	assert.Equal(t, analytics.DemandFast, profile[1].Class)
	assert.Equal(t, analytics.DemandSlow, profile[2].Class)
	assert.False(t, profile[0].Spike)
}
