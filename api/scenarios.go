/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the engines with realistic
	data for testing and demos. Each scenario registers doctors, wards,
	patients, accounts, budgets and stock items; the busier ones also
	pre-book appointments.

AVAILABLE SCENARIOS:

	demo-hospital: Registries only, every slot free
	busy-clinic:   Same registries plus pre-booked appointments and
	               recorded spend, for exercising conflict paths

HOW SCENARIOS WORK:
 1. Register doctors, wards, patients
 2. Register accounts and budgets
 3. Register stock items with usage history
 4. Optionally book appointments and record transactions

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-clinic"}

NOTE:

	The in-memory stores are append-only registries, so a scenario loads
	once per process. Loading a second scenario on top of the first is
	rejected; restart the server to start clean.

SEE ALSO:
  - handlers.go: Handler context these loaders populate
  - server.go: /api/scenarios routes
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/finance"
	"github.com/warp/hospital-engine/inventory"
	"github.com/warp/hospital-engine/scheduling"
	"github.com/warp/hospital-engine/ward"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "demo-hospital",
		Name:        "Demo Hospital",
		Description: "Four doctors, two wards, funded accounts, stocked inventory",
	},
	{
		ID:          "busy-clinic",
		Name:        "Busy Clinic",
		Description: "Demo hospital with pre-booked appointments and recorded spend",
	},
}

// scenarioState tracks which scenario a process has loaded.
type scenarioState struct {
	mu      sync.Mutex
	current string
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.scenario.mu.Lock()
	current := h.scenario.current
	h.scenario.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
}

// LoadScenario loads a predefined scenario into the engines.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.scenario.mu.Lock()
	defer h.scenario.mu.Unlock()

	if h.scenario.current != "" {
		writeError(w, http.StatusConflict,
			"A scenario is already loaded; restart the server to load another", nil)
		return
	}

	var err error
	switch req.ScenarioID {
	case "demo-hospital":
		err = h.loadDemoHospital()
	case "busy-clinic":
		if err = h.loadDemoHospital(); err == nil {
			err = h.loadBusyClinic()
		}
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario_id", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.scenario.current = req.ScenarioID
	h.log.Info().Str("scenario", req.ScenarioID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadDemoHospital() error {
	week := []core.Date{
		core.MustDate("2025-06-02"), core.MustDate("2025-06-03"),
		core.MustDate("2025-06-04"), core.MustDate("2025-06-05"),
		core.MustDate("2025-06-06"), core.MustDate("2025-06-07"),
	}
	morning := []core.Clock{
		core.MustClock("09:00"), core.MustClock("10:00"), core.MustClock("11:00"),
	}
	afternoon := []core.Clock{
		core.MustClock("14:00"), core.MustClock("15:00"), core.MustClock("16:00"),
	}

	doctors := []scheduling.Doctor{
		{ID: "dr_smith", Name: "Dr. Smith", Specialty: "Cardiology",
			AvailableDays: week, AvailableHours: append(append([]core.Clock{}, morning...), afternoon[:2]...)},
		{ID: "dr_jones", Name: "Dr. Jones", Specialty: "Orthopedics",
			AvailableDays: week, AvailableHours: afternoon},
		{ID: "dr_wilson", Name: "Dr. Wilson", Specialty: "General Medicine",
			AvailableDays: week, AvailableHours: append(append([]core.Clock{}, morning...), afternoon...)},
		{ID: "dr_brown", Name: "Dr. Brown", Specialty: "Neurology",
			AvailableDays: week[:4], AvailableHours: morning},
	}
	for _, d := range doctors {
		if err := ignoreConflict(h.deps.Scheduling.RegisterDoctor(d)); err != nil {
			return err
		}
	}

	for _, wd := range []ward.Ward{ward.NewWard("WardA", 4), ward.NewWard("WardB", 6)} {
		if err := ignoreConflict(h.deps.WardStore.RegisterWard(wd)); err != nil {
			return err
		}
	}
	patients := []ward.Patient{
		{ID: "P001", Name: "Jane Doe", Condition: "post-op recovery"},
		{ID: "P002", Name: "John Roe", Condition: "observation"},
		{ID: "P003", Name: "Mary Major", Condition: "cardiac monitoring"},
	}
	for _, p := range patients {
		if err := ignoreConflict(h.deps.WardStore.RegisterPatient(p)); err != nil {
			return err
		}
	}

	accounts := []finance.Account{
		{ID: "main", Name: "Main Operating", Type: finance.AccountOperating,
			Balance: decimal.NewFromInt(1_000_000)},
		{ID: "emergency", Name: "Emergency Reserve", Type: finance.AccountEmergency,
			Balance: decimal.NewFromInt(500_000)},
	}
	for _, a := range accounts {
		if err := ignoreConflict(h.deps.Finance.RegisterAccount(a)); err != nil {
			return err
		}
	}
	budgets := []finance.Budget{
		{Department: "WardA", Period: finance.PeriodMonthly,
			Total:     decimal.NewFromInt(50_000),
			StartDate: core.MustDate("2025-06-01"), EndDate: core.MustDate("2025-06-30")},
		{Department: "WardB", Period: finance.PeriodMonthly,
			Total:     decimal.NewFromInt(75_000),
			StartDate: core.MustDate("2025-06-01"), EndDate: core.MustDate("2025-06-30")},
	}
	for _, b := range budgets {
		if err := ignoreConflict(h.deps.Finance.RegisterBudget(b)); err != nil {
			return err
		}
	}

	items := []inventory.Item{
		{ID: "med_001", Name: "Paracetamol 500mg", Quantity: 120,
			ReorderThreshold: 30, UsageHistory: []int{15, 18, 22, 20},
			ExpiryDate: core.MustDate("2026-01-31")},
		{ID: "equip_002", Name: "Surgical Gloves (box)", Quantity: 40,
			ReorderThreshold: 25, UsageHistory: []int{8, 12, 10}},
		{ID: "med_003", Name: "Insulin Vial", Quantity: 18,
			ReorderThreshold: 20, UsageHistory: []int{6, 7},
			ExpiryDate: core.MustDate("2025-09-15")},
	}
	for _, item := range items {
		if err := ignoreConflict(h.deps.Stock.RegisterItem(item)); err != nil {
			return err
		}
	}

	return nil
}

func (h *Handler) loadBusyClinic() error {
	bookings := []struct {
		doctor  string
		date    string
		hour    string
		patient string
	}{
		{"dr_smith", "2025-06-03", "09:00", "P001"},
		{"dr_smith", "2025-06-03", "10:00", "P002"},
		{"dr_smith", "2025-06-04", "09:00", "P003"},
		{"dr_jones", "2025-06-03", "14:00", "P002"},
		{"dr_brown", "2025-06-02", "11:00", "P001"},
	}
	for _, b := range bookings {
		date := core.MustDate(b.date)
		hour := core.MustClock(b.hour)
		_, err := h.deps.Allocation.Reserve(scheduling.ReserveRequest{
			DoctorID:  core.OwnerID(b.doctor),
			Date:      &date,
			Time:      &hour,
			PatientID: core.SubjectID(b.patient),
		})
		if err := ignoreConflict(err); err != nil {
			return err
		}
	}

	if _, err := h.deps.Ledger.Debit("main", decimal.NewFromInt(12_500),
		"supplies", "WardA", "monthly restock"); err != nil {
		return err
	}
	if _, err := h.deps.Ledger.ApplyToBudget("WardA", decimal.NewFromInt(12_500)); err != nil {
		return err
	}

	return nil
}

// ignoreConflict lets scenario loads coexist with data registered by
// hand before the load. Anything but a duplicate is a real failure.
func ignoreConflict(err error) error {
	if err == nil || errors.Is(err, core.ErrConflict) {
		return nil
	}
	return err
}
