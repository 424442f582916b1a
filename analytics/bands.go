/*
bands.go - Utilization and health banding

PURPOSE:
  Fixed classification thresholds shared by every analytics view, so a
  doctor reads as "busy" in the overview exactly when the utilization
  report says so.

KEY CONCEPTS:
  - Utilization = scheduled / (hours x days) as a percentage.
  - Band thresholds: >90 overbooked, >70 busy, >40 moderate, else
    underutilized.
  - System health couples the global cancellation rate with average
    utilization into excellent / good / warning / critical.
*/
package analytics

import "math"

// Band buckets one owner's utilization.
type Band string

const (
	BandOverbooked    Band = "overbooked"
	BandBusy          Band = "busy"
	BandModerate      Band = "moderate"
	BandUnderutilized Band = "underutilized"
)

// UtilizationBand buckets a utilization percentage.
func UtilizationBand(rate float64) Band {
	switch {
	case rate > 90:
		return BandOverbooked
	case rate > 70:
		return BandBusy
	case rate > 40:
		return BandModerate
	default:
		return BandUnderutilized
	}
}

// Health grades the whole system.
type Health string

const (
	HealthExcellent Health = "excellent"
	HealthGood      Health = "good"
	HealthWarning   Health = "warning"
	HealthCritical  Health = "critical"
)

// SystemHealth combines the cancellation rate with average utilization.
func SystemHealth(cancellationRate, avgUtilization float64) Health {
	switch {
	case cancellationRate < 10 && avgUtilization >= 40 && avgUtilization <= 80:
		return HealthExcellent
	case cancellationRate < 15 && avgUtilization >= 30 && avgUtilization <= 85:
		return HealthGood
	case cancellationRate < 25 && avgUtilization >= 20 && avgUtilization <= 90:
		return HealthWarning
	default:
		return HealthCritical
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
