// Package metrics provides Prometheus observability for the allocation
// engines: reservation outcomes, conflict resolution, ward moves and
// ledger activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the application.
var Registry = prometheus.NewRegistry()

// factory registers metrics on Registry directly.
var factory = promauto.With(Registry)

// =============================================================================
// RESERVATION METRICS
// =============================================================================

// ReservationsTotal counts committed reservations by outcome:
// "direct" (requested slot), "rescheduled" (auto-reschedule search).
var ReservationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "allocation",
	Name:      "reservations_total",
	Help:      "Committed reservations by outcome",
}, []string{"outcome"})

// ConflictsTotal counts reservation attempts that hit an occupied slot.
var ConflictsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "allocation",
	Name:      "conflicts_total",
	Help:      "Reservation attempts that found the requested slot occupied",
})

// RejectionsTotal counts reservation attempts rejected by kind:
// "invalid_input", "not_found", "conflict", "no_availability".
var RejectionsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "allocation",
	Name:      "rejections_total",
	Help:      "Rejected reservation attempts by error kind",
}, []string{"kind"})

// CancellationsTotal counts successful cancellations.
var CancellationsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "allocation",
	Name:      "cancellations_total",
	Help:      "Appointments transitioned to CANCELLED",
})

// RescheduleDistanceMinutes observes the |requested - committed| minute
// distance of auto-reschedules that stayed on the requested date.
var RescheduleDistanceMinutes = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "allocation",
	Name:      "reschedule_distance_minutes",
	Help:      "Minute distance between requested and committed time for same-day reschedules",
	Buckets:   []float64{15, 30, 60, 120, 240, 480},
})

// =============================================================================
// WARD METRICS
// =============================================================================

// WardMovesTotal counts bed mutations by kind: "assign", "discharge",
// "transfer".
var WardMovesTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ward",
	Name:      "moves_total",
	Help:      "Bed assignments, discharges and transfers",
}, []string{"kind"})

// WardOccupiedBeds tracks currently occupied beds per ward.
var WardOccupiedBeds = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "ward",
	Name:      "occupied_beds",
	Help:      "Occupied beds per ward",
}, []string{"ward"})

// =============================================================================
// LEDGER METRICS
// =============================================================================

// LedgerOperationsTotal counts ledger mutations by kind and result:
// kind in {"debit", "credit", "budget"}, result in {"ok", "rejected"}.
var LedgerOperationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ledger",
	Name:      "operations_total",
	Help:      "Ledger mutations by kind and result",
}, []string{"kind", "result"})

// =============================================================================
// FORECAST METRICS
// =============================================================================

// ForecastFallbacksTotal counts forecaster calls that degraded to the
// in-process trend estimate.
var ForecastFallbacksTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "inventory",
	Name:      "forecast_fallbacks_total",
	Help:      "Forecaster failures served by the linear-trend fallback",
})
