/*
patient.go - Per-patient behavior analytics

PURPOSE:
  Visit patterns and reliability for one subject: where they go, who
  they see, when, and how often they cancel. Arg-max picks (most
  visited specialty, preferred hour) resolve equal counts to the first
  encountered in chronological scan order.
*/
package analytics

import (
	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/scheduling"
)

// VisitCount pairs a label with its visit count.
type VisitCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PatientReport summarizes one subject's history.
type PatientReport struct {
	PatientID            core.SubjectID `json:"patient_id"`
	TotalAppointments    int            `json:"total_appointments"`
	Scheduled            int            `json:"scheduled"`
	Cancelled            int            `json:"cancelled"`
	Completed            int            `json:"completed"`
	CancellationRate     float64        `json:"cancellation_rate"`
	CompletionRate       float64        `json:"completion_rate"`
	ReliabilityScore     float64        `json:"reliability_score"`
	SpecialtyBreakdown   []VisitCount   `json:"specialty_breakdown"`
	DoctorBreakdown      []VisitCount   `json:"doctor_preferences"`
	MostVisitedSpecialty string         `json:"most_visited_specialty"`
	MostVisitedDoctor    core.OwnerID   `json:"most_visited_doctor"`
	PreferredHour        *core.Clock    `json:"preferred_time,omitempty"`
}

// PatientInsights computes the behavior report for one subject from
// the doctor pool and the full history.
func PatientInsights(patientID core.SubjectID, doctors []scheduling.Doctor, appointments []scheduling.Appointment) PatientReport {
	specialtyOf := make(map[core.OwnerID]string, len(doctors))
	for _, d := range doctors {
		specialtyOf[d.ID] = d.Specialty
	}

	report := PatientReport{PatientID: patientID}
	specialtyCounts := newCounter()
	doctorCounts := newCounter()
	hourCounts := make(map[core.Clock]int)
	var hourOrder []core.Clock

	for _, a := range appointments {
		if a.PatientID != patientID {
			continue
		}
		report.TotalAppointments++
		switch a.Status {
		case core.StatusScheduled:
			report.Scheduled++
		case core.StatusCancelled:
			report.Cancelled++
		case core.StatusCompleted:
			report.Completed++
		}
		specialtyCounts.add(specialtyOf[a.DoctorID])
		doctorCounts.add(string(a.DoctorID))
		if _, seen := hourCounts[a.Time]; !seen {
			hourOrder = append(hourOrder, a.Time)
		}
		hourCounts[a.Time]++
	}

	report.CancellationRate = round1(percent(report.Cancelled, report.TotalAppointments))
	report.CompletionRate = round1(percent(report.Completed, report.TotalAppointments))
	report.ReliabilityScore = round1(100 - percent(report.Cancelled, report.TotalAppointments))
	report.SpecialtyBreakdown = specialtyCounts.entries()
	report.DoctorBreakdown = doctorCounts.entries()
	report.MostVisitedSpecialty = specialtyCounts.max()
	report.MostVisitedDoctor = core.OwnerID(doctorCounts.max())

	best := -1
	for _, h := range hourOrder {
		if hourCounts[h] > best {
			hour := h
			report.PreferredHour = &hour
			best = hourCounts[h]
		}
	}
	return report
}

// counter tallies labels, remembering first-encounter order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(label string) {
	if label == "" {
		return
	}
	if _, seen := c.counts[label]; !seen {
		c.order = append(c.order, label)
	}
	c.counts[label]++
}

func (c *counter) entries() []VisitCount {
	out := make([]VisitCount, 0, len(c.order))
	for _, label := range c.order {
		out = append(out, VisitCount{Label: label, Count: c.counts[label]})
	}
	return out
}

// max returns the label with the highest count; equal counts keep the
// first-encountered label.
func (c *counter) max() string {
	best, bestCount := "", -1
	for _, label := range c.order {
		if c.counts[label] > bestCount {
			best = label
			bestCount = c.counts[label]
		}
	}
	return best
}
