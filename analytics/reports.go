/*
reports.go - System-wide analytics reports

PURPOSE:
  The overview, utilization, trends and efficiency reports. All of them
  are pure computations over a snapshot of the doctor pool and the
  appointment history; nothing here mutates state or takes locks.

  Rankings scan the input in deterministic order (doctor registration
  order, appointment append order), so equal counts resolve to the
  first-encountered entry, never to map iteration luck.
*/
package analytics

import (
	"sort"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/scheduling"
)

// =============================================================================
// PER-DOCTOR UTILIZATION
// =============================================================================

// DoctorUtilization is one owner's scheduled load against capacity.
type DoctorUtilization struct {
	DoctorID  core.OwnerID `json:"doctor_id"`
	Name      string       `json:"name"`
	Specialty string       `json:"specialty"`
	Scheduled int          `json:"appointments"`
	Capacity  int          `json:"capacity"`
	Rate      float64      `json:"utilization_rate"`
	Band      Band         `json:"status"`
}

// DoctorUtilizations computes the per-doctor picture in registration
// order. Only SCHEDULED records count toward load.
func DoctorUtilizations(doctors []scheduling.Doctor, appointments []scheduling.Appointment) []DoctorUtilization {
	loads := make(map[core.OwnerID]int)
	for _, a := range appointments {
		if a.Status.Active() {
			loads[a.DoctorID]++
		}
	}

	out := make([]DoctorUtilization, 0, len(doctors))
	for _, d := range doctors {
		rate := percent(loads[d.ID], d.Capacity())
		out = append(out, DoctorUtilization{
			DoctorID:  d.ID,
			Name:      d.Name,
			Specialty: d.Specialty,
			Scheduled: loads[d.ID],
			Capacity:  d.Capacity(),
			Rate:      round1(rate),
			Band:      UtilizationBand(rate),
		})
	}
	return out
}

func averageRate(utils []DoctorUtilization) float64 {
	if len(utils) == 0 {
		return 0
	}
	total := 0.0
	for _, u := range utils {
		total += u.Rate
	}
	return total / float64(len(utils))
}

// =============================================================================
// OVERVIEW
// =============================================================================

// DayCount pairs a date with its scheduled-appointment count.
type DayCount struct {
	Date  core.Date `json:"date"`
	Count int       `json:"count"`
}

// CapacityAnalysis aggregates bookings against total slot capacity.
type CapacityAnalysis struct {
	TotalCapacity     int     `json:"total_system_capacity"`
	CurrentBookings   int     `json:"current_bookings"`
	AvailableCapacity int     `json:"available_capacity"`
	Utilization       float64 `json:"capacity_utilization"`
}

// OverviewReport is the system dashboard.
type OverviewReport struct {
	TotalDoctors        int                 `json:"total_doctors"`
	TotalAppointments   int                 `json:"total_appointments"`
	Scheduled           int                 `json:"scheduled_appointments"`
	Cancelled           int                 `json:"cancelled_appointments"`
	Completed           int                 `json:"completed_appointments"`
	CancellationRate    float64             `json:"cancellation_rate"`
	CompletionRate      float64             `json:"completion_rate"`
	AverageUtilization  float64             `json:"average_utilization"`
	Health              Health              `json:"system_health"`
	Capacity            CapacityAnalysis    `json:"capacity_analysis"`
	Doctors             []DoctorUtilization `json:"doctor_performance"`
	PeakDays            []DayCount          `json:"peak_capacity_days"`
	BusiestDoctors      []DoctorUtilization `json:"busiest_doctors"`
	Underutilized       []core.OwnerID      `json:"underutilized_doctors"`
	SpecialtyBreakdown  []SpecialtyStats    `json:"specialty_distribution"`
}

// Overview computes the full system dashboard from one snapshot.
func Overview(doctors []scheduling.Doctor, appointments []scheduling.Appointment) OverviewReport {
	scheduled, cancelled, completed := 0, 0, 0
	for _, a := range appointments {
		switch a.Status {
		case core.StatusScheduled:
			scheduled++
		case core.StatusCancelled:
			cancelled++
		case core.StatusCompleted:
			completed++
		}
	}
	total := len(appointments)
	cancellationRate := percent(cancelled, total)
	utils := DoctorUtilizations(doctors, appointments)
	avg := averageRate(utils)

	totalCapacity := 0
	for _, d := range doctors {
		totalCapacity += d.Capacity()
	}

	return OverviewReport{
		TotalDoctors:       len(doctors),
		TotalAppointments:  total,
		Scheduled:          scheduled,
		Cancelled:          cancelled,
		Completed:          completed,
		CancellationRate:   round1(cancellationRate),
		CompletionRate:     round1(percent(completed, total)),
		AverageUtilization: round1(avg),
		Health:             SystemHealth(cancellationRate, avg),
		Capacity: CapacityAnalysis{
			TotalCapacity:     totalCapacity,
			CurrentBookings:   scheduled,
			AvailableCapacity: totalCapacity - scheduled,
			Utilization:       round1(percent(scheduled, totalCapacity)),
		},
		Doctors:            utils,
		PeakDays:           peakDays(appointments, 3),
		BusiestDoctors:     topByRate(utils, 3),
		Underutilized:      underutilized(utils),
		SpecialtyBreakdown: SpecialtyDistribution(doctors, appointments),
	}
}

// peakDays ranks dates by scheduled count; equal counts keep the date
// first seen in the history.
func peakDays(appointments []scheduling.Appointment, n int) []DayCount {
	counts := make(map[core.Date]int)
	var order []core.Date
	for _, a := range appointments {
		if !a.Status.Active() {
			continue
		}
		if _, seen := counts[a.Date]; !seen {
			order = append(order, a.Date)
		}
		counts[a.Date]++
	}

	out := make([]DayCount, 0, len(order))
	for _, d := range order {
		out = append(out, DayCount{Date: d, Count: counts[d]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func topByRate(utils []DoctorUtilization, n int) []DoctorUtilization {
	ranked := append([]DoctorUtilization(nil), utils...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Rate > ranked[j].Rate })
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func underutilized(utils []DoctorUtilization) []core.OwnerID {
	var out []core.OwnerID
	for _, u := range utils {
		if u.Rate < 40 {
			out = append(out, u.DoctorID)
		}
	}
	return out
}

// =============================================================================
// SPECIALTY DISTRIBUTION
// =============================================================================

// SpecialtyStats aggregates one specialty's doctors and load.
type SpecialtyStats struct {
	Specialty string  `json:"specialty"`
	Doctors   int     `json:"doctors_count"`
	Scheduled int     `json:"total_appointments"`
	Capacity  int     `json:"total_capacity"`
	Rate      float64 `json:"utilization_rate"`
}

// SpecialtyDistribution groups the doctor pool by specialty, in
// first-encounter order.
func SpecialtyDistribution(doctors []scheduling.Doctor, appointments []scheduling.Appointment) []SpecialtyStats {
	loads := make(map[core.OwnerID]int)
	for _, a := range appointments {
		if a.Status.Active() {
			loads[a.DoctorID]++
		}
	}

	index := make(map[string]int)
	var out []SpecialtyStats
	for _, d := range doctors {
		i, seen := index[d.Specialty]
		if !seen {
			i = len(out)
			index[d.Specialty] = i
			out = append(out, SpecialtyStats{Specialty: d.Specialty})
		}
		out[i].Doctors++
		out[i].Scheduled += loads[d.ID]
		out[i].Capacity += d.Capacity()
	}
	for i := range out {
		out[i].Rate = round1(percent(out[i].Scheduled, out[i].Capacity))
	}
	return out
}

// Bottlenecks lists specialties averaging above 80% utilization,
// busiest first.
func Bottlenecks(doctors []scheduling.Doctor, appointments []scheduling.Appointment) []SpecialtyStats {
	var out []SpecialtyStats
	for _, s := range SpecialtyDistribution(doctors, appointments) {
		if s.Rate > 80 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate > out[j].Rate })
	return out
}

// =============================================================================
// TRENDS
// =============================================================================

// HourCount pairs an hour with its scheduled-appointment count.
type HourCount struct {
	Hour  core.Clock `json:"hour"`
	Count int        `json:"count"`
}

// TrendsReport captures temporal booking patterns.
type TrendsReport struct {
	ByDate    []DayCount  `json:"date_distribution"`
	ByHour    []HourCount `json:"time_distribution"`
	PeakHours []HourCount `json:"peak_hours"`
	Scheduled int         `json:"total_scheduled"`
}

// Trends computes date and hour distributions over active records.
func Trends(appointments []scheduling.Appointment) TrendsReport {
	dayCounts := make(map[core.Date]int)
	hourCounts := make(map[core.Clock]int)
	var dayOrder []core.Date
	var hourOrder []core.Clock
	scheduled := 0

	for _, a := range appointments {
		if !a.Status.Active() {
			continue
		}
		scheduled++
		if _, seen := dayCounts[a.Date]; !seen {
			dayOrder = append(dayOrder, a.Date)
		}
		dayCounts[a.Date]++
		if _, seen := hourCounts[a.Time]; !seen {
			hourOrder = append(hourOrder, a.Time)
		}
		hourCounts[a.Time]++
	}

	byDate := make([]DayCount, 0, len(dayOrder))
	for _, d := range dayOrder {
		byDate = append(byDate, DayCount{Date: d, Count: dayCounts[d]})
	}
	sort.SliceStable(byDate, func(i, j int) bool { return byDate[i].Date.Before(byDate[j].Date) })

	byHour := make([]HourCount, 0, len(hourOrder))
	for _, h := range hourOrder {
		byHour = append(byHour, HourCount{Hour: h, Count: hourCounts[h]})
	}
	sort.SliceStable(byHour, func(i, j int) bool { return byHour[i].Hour < byHour[j].Hour })

	peak := append([]HourCount(nil), byHour...)
	sort.SliceStable(peak, func(i, j int) bool { return peak[i].Count > peak[j].Count })
	if len(peak) > 3 {
		peak = peak[:3]
	}

	return TrendsReport{
		ByDate:    byDate,
		ByHour:    byHour,
		PeakHours: peak,
		Scheduled: scheduled,
	}
}

// =============================================================================
// EFFICIENCY
// =============================================================================

// EfficiencyReport carries the operational optimization metrics.
type EfficiencyReport struct {
	CompletionRate      float64          `json:"completion_rate"`
	CancellationRate    float64          `json:"cancellation_rate"`
	CapacityUtilization float64          `json:"capacity_utilization"`
	Bottlenecks         []SpecialtyStats `json:"bottleneck_specialties"`
	Overbooked          []core.OwnerID   `json:"overbooked_doctors"`
	Underutilized       []core.OwnerID   `json:"underutilized_doctors"`
}

// Efficiency surfaces where the schedule loses throughput.
func Efficiency(doctors []scheduling.Doctor, appointments []scheduling.Appointment) EfficiencyReport {
	scheduled, cancelled, completed := 0, 0, 0
	for _, a := range appointments {
		switch a.Status {
		case core.StatusScheduled:
			scheduled++
		case core.StatusCancelled:
			cancelled++
		case core.StatusCompleted:
			completed++
		}
	}
	total := len(appointments)
	totalCapacity := 0
	for _, d := range doctors {
		totalCapacity += d.Capacity()
	}
	utils := DoctorUtilizations(doctors, appointments)

	var overbooked []core.OwnerID
	for _, u := range utils {
		if u.Rate > 90 {
			overbooked = append(overbooked, u.DoctorID)
		}
	}

	return EfficiencyReport{
		CompletionRate:      round1(percent(completed, total)),
		CancellationRate:    round1(percent(cancelled, total)),
		CapacityUtilization: round1(percent(scheduled, totalCapacity)),
		Bottlenecks:         Bottlenecks(doctors, appointments),
		Overbooked:          overbooked,
		Underutilized:       underutilized(utils),
	}
}
