/*
handlers.go - HTTP API handlers for the hospital allocation engine

PURPOSE:
  Exposes the allocation engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Scheduling:
    GET    /api/doctors                     List doctors
    POST   /api/doctors                     Register doctor
    GET    /api/doctors/{id}/availability   Day slots or horizon scan
    GET    /api/availability                Specialty-wide availability
    GET    /api/appointments                Full appointment history
    POST   /api/appointments                Reserve a slot
    POST   /api/appointments/cancel         Cancel by search criteria
    DELETE /api/appointments/{id}           Cancel by record id
    POST   /api/appointments/{id}/complete  Mark completed

  Wards:
    POST   /api/wards                       Register ward
    GET    /api/wards/occupancy             Occupancy report
    POST   /api/patients                    Register patient
    POST   /api/patients/{id}/assign        Assign to ward
    POST   /api/patients/{id}/discharge     Discharge
    POST   /api/patients/{id}/transfer      Transfer between wards
    GET    /api/patients/{id}/moves         Bed history
    GET    /api/patients/{id}/records       Appointment history + insights

  Finance:
    GET    /api/finance/accounts                    List accounts
    GET    /api/finance/accounts/{id}               Balance
    POST   /api/finance/accounts/{id}/debit         Debit
    POST   /api/finance/accounts/{id}/credit        Credit
    GET    /api/finance/budgets/{department}        Budget status
    POST   /api/finance/budgets/{department}/spend  Apply spend
    POST   /api/finance/payments                    Schedule payment
    POST   /api/finance/payments/{id}/complete      Complete payment
    GET    /api/finance/summary                     Expense summary

  Inventory:
    GET    /api/inventory                      List items
    POST   /api/inventory                      Register item
    POST   /api/inventory/{id}/usage           Record usage
    PUT    /api/inventory/{id}/stock           Set quantity
    GET    /api/inventory/low-stock            Items below threshold
    GET    /api/inventory/expiring             Items expiring soon
    GET    /api/inventory/reorder-suggestions  Forecast-driven reorders

  Analytics:
    GET    /api/analytics                  overview|utilization|trends|efficiency
    GET    /api/analytics/patients/{id}    Patient behavior report
    GET    /api/analytics/demand           Inventory demand profile

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (occupied slot, full ward, insufficient funds)
  - 500: Internal errors
  - 503: Transient failures
  Structured errors carry their diagnostics (alternatives, valid days,
  candidates) in the details field so clients can act on a rejection.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/hospital-engine/analytics"
	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/finance"
	"github.com/warp/hospital-engine/inventory"
	"github.com/warp/hospital-engine/scheduling"
	"github.com/warp/hospital-engine/store/sqlite"
	"github.com/warp/hospital-engine/ward"
)

const defaultHorizonDays = 60

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Dependencies bundles everything the handlers delegate to. Recorder is
// optional; when nil, committed records are simply not archived.
type Dependencies struct {
	Scheduling   scheduling.Store
	Availability *scheduling.AvailabilityEngine
	Allocation   *scheduling.AllocationEngine
	Wards        *ward.Engine
	WardStore    ward.Store
	Ledger       *finance.Ledger
	Finance      finance.Store
	Inventory    *inventory.Engine
	Stock        inventory.Store
	Recorder     *sqlite.Recorder
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	deps Dependencies
	log  zerolog.Logger

	scenario *scenarioState
}

// NewHandler creates a new handler around the given engines.
func NewHandler(deps Dependencies, log zerolog.Logger) *Handler {
	return &Handler{
		deps:     deps,
		log:      log.With().Str("component", "api").Logger(),
		scenario: &scenarioState{},
	}
}

// =============================================================================
// DOCTOR HANDLERS
// =============================================================================

// ListDoctors returns all registered doctors.
func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors := h.deps.Scheduling.Doctors()
	dtos := make([]DoctorDTO, len(doctors))
	for i, d := range doctors {
		dtos[i] = toDoctorDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterDoctor registers a new doctor with their schedule.
func (h *Handler) RegisterDoctor(w http.ResponseWriter, r *http.Request) {
	var req RegisterDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.Specialty == "" {
		writeError(w, http.StatusBadRequest, "id, name and specialty are required", nil)
		return
	}

	days := make([]core.Date, 0, len(req.AvailableDays))
	for _, s := range req.AvailableDays {
		d, err := core.ParseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid available_days entry (use YYYY-MM-DD)", err)
			return
		}
		days = append(days, d)
	}
	hours := make([]core.Clock, 0, len(req.AvailableHours))
	for _, s := range req.AvailableHours {
		c, err := core.ParseClock(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid available_hours entry (use HH:MM)", err)
			return
		}
		hours = append(hours, c)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	sort.Slice(hours, func(i, j int) bool { return hours[i] < hours[j] })

	doctor := scheduling.Doctor{
		ID:             core.OwnerID(req.ID),
		Name:           req.Name,
		Specialty:      req.Specialty,
		AvailableDays:  days,
		AvailableHours: hours,
	}
	if err := h.deps.Scheduling.RegisterDoctor(doctor); err != nil {
		h.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toDoctorDTO(doctor))
}

// DoctorAvailability returns one doctor's day slots (with ?date=) or the
// first free day within ?horizon= days.
func (h *Handler) DoctorAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID := core.OwnerID(chi.URLParam(r, "id"))

	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		date, err := core.ParseDate(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		slots, err := h.deps.Availability.SlotsFor(doctorID, date)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDaySlotsDTO(slots))
		return
	}

	horizon := defaultHorizonDays
	if s := r.URL.Query().Get("horizon"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid horizon (positive day count)", err)
			return
		}
		horizon = n
	}

	next, err := h.deps.Availability.NextAvailable(doctorID, horizon)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if next == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "no free slot within horizon",
			Code:  "no_availability",
		})
		return
	}
	writeJSON(w, http.StatusOK, DayAvailabilityDTO{
		Date:      next.Date.String(),
		FreeHours: clocksToStrings(next.FreeHours),
	})
}

// AvailabilityBySpecialty returns availability across all doctors of a
// specialty, either for a named date or as a horizon scan.
func (h *Handler) AvailabilityBySpecialty(w http.ResponseWriter, r *http.Request) {
	specialty := r.URL.Query().Get("specialty")
	if specialty == "" {
		writeError(w, http.StatusBadRequest, "specialty query parameter is required", nil)
		return
	}

	var date *core.Date
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		d, err := core.ParseDate(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		date = &d
	}

	entries, err := h.deps.Availability.BySpecialty(specialty, date)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dtos := make([]DoctorAvailabilityDTO, len(entries))
	for i, e := range entries {
		dto := DoctorAvailabilityDTO{Doctor: toDoctorDTO(e.Doctor)}
		if e.Day != nil {
			day := toDaySlotsDTO(*e.Day)
			dto.Day = &day
		}
		if e.Next != nil {
			dto.Next = &DayAvailabilityDTO{
				Date:      e.Next.Date.String(),
				FreeHours: clocksToStrings(e.Next.FreeHours),
			}
		}
		dtos[i] = dto
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// APPOINTMENT HANDLERS
// =============================================================================

// ListAppointments returns the full appointment history.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	apts := h.deps.Scheduling.Appointments()
	dtos := make([]AppointmentDTO, len(apts))
	for i, a := range apts {
		dtos[i] = toAppointmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Reserve books an appointment.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	engineReq := scheduling.ReserveRequest{
		DoctorID:       core.OwnerID(req.DoctorID),
		Specialty:      req.Specialty,
		PatientID:      core.SubjectID(req.PatientID),
		Notes:          req.Notes,
		AutoReschedule: req.AutoReschedule,
	}
	if req.Date != "" {
		d, err := core.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		engineReq.Date = &d
	}
	if req.Time != "" {
		c, err := core.ParseClock(req.Time)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid time (use HH:MM)", err)
			return
		}
		engineReq.Time = &c
	}

	res, err := h.deps.Allocation.Reserve(engineReq)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archiveAppointment(res.Appointment)

	resp := ReserveResponseDTO{
		Appointment:   toAppointmentDTO(res.Appointment),
		AutoCompleted: res.AutoCompleted,
		Rescheduled:   res.Rescheduled,
	}
	if res.Rescheduled {
		resp.RequestedDate = res.RequestedDate.String()
		resp.RequestedTime = res.RequestedTime.String()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// CancelByID cancels the appointment named in the URL.
func (h *Handler) CancelByID(w http.ResponseWriter, r *http.Request) {
	req := scheduling.CancelRequest{
		RecordID: core.RecordID(chi.URLParam(r, "id")),
		Reason:   r.URL.Query().Get("reason"),
	}
	h.cancel(w, req)
}

// CancelByCriteria cancels by patient/doctor/date search criteria.
func (h *Handler) CancelByCriteria(w http.ResponseWriter, r *http.Request) {
	var dto CancelRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	req := scheduling.CancelRequest{
		RecordID:  core.RecordID(dto.RecordID),
		PatientID: core.SubjectID(dto.PatientID),
		DoctorID:  core.OwnerID(dto.DoctorID),
		Reason:    dto.Reason,
	}
	if dto.Date != "" {
		d, err := core.ParseDate(dto.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		req.Date = &d
	}
	h.cancel(w, req)
}

func (h *Handler) cancel(w http.ResponseWriter, req scheduling.CancelRequest) {
	res, err := h.deps.Allocation.Cancel(req)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archiveAppointment(res.Cancelled)

	suggestions := make([]RebookingSuggestionDTO, len(res.Suggestions))
	for i, s := range res.Suggestions {
		suggestions[i] = RebookingSuggestionDTO{
			DoctorID:   string(s.DoctorID),
			DoctorName: s.DoctorName,
			Specialty:  s.Specialty,
			Date:       s.Date.String(),
			Times:      clocksToStrings(s.Times),
			Priority:   s.Priority,
		}
	}
	writeJSON(w, http.StatusOK, CancelResponseDTO{
		Cancelled: toAppointmentDTO(res.Cancelled),
		FreedSlot: FreedSlotDTO{
			DoctorID: string(res.FreedSlot.DoctorID),
			Date:     res.FreedSlot.Date.String(),
			Time:     res.FreedSlot.Time.String(),
		},
		Suggestions: suggestions,
	})
}

// Complete marks an appointment completed.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id := core.RecordID(chi.URLParam(r, "id"))

	apt, err := h.deps.Allocation.Complete(id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archiveAppointment(apt)

	writeJSON(w, http.StatusOK, toAppointmentDTO(apt))
}

// =============================================================================
// WARD HANDLERS
// =============================================================================

// RegisterWard creates a ward with a fixed number of beds.
func (h *Handler) RegisterWard(w http.ResponseWriter, r *http.Request) {
	var req RegisterWardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Capacity <= 0 {
		writeError(w, http.StatusBadRequest, "name and a positive capacity are required", nil)
		return
	}

	if err := h.deps.WardStore.RegisterWard(ward.NewWard(req.Name, req.Capacity)); err != nil {
		h.writeEngineError(w, err)
		return
	}
	occ, err := h.deps.Wards.WardOccupancy(req.Name)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, occ)
}

// RegisterPatient adds a patient to the registry.
func (h *Handler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	p := ward.Patient{
		ID:        core.SubjectID(req.ID),
		Name:      req.Name,
		Condition: req.Condition,
	}
	if err := h.deps.WardStore.RegisterPatient(p); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// Assign places a patient in the requested ward.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	patientID := core.SubjectID(chi.URLParam(r, "id"))
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	move, err := h.deps.Wards.Assign(patientID, req.Ward)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archiveMove(move)
	writeJSON(w, http.StatusCreated, toMoveDTO(move))
}

// Discharge frees a patient's bed.
func (h *Handler) Discharge(w http.ResponseWriter, r *http.Request) {
	patientID := core.SubjectID(chi.URLParam(r, "id"))

	move, err := h.deps.Wards.Discharge(patientID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archiveMove(move)
	writeJSON(w, http.StatusOK, toMoveDTO(move))
}

// Transfer moves a patient between wards atomically.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	patientID := core.SubjectID(chi.URLParam(r, "id"))
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	move, err := h.deps.Wards.Transfer(patientID, req.FromWard, req.ToWard)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archiveMove(move)
	writeJSON(w, http.StatusOK, toMoveDTO(move))
}

// PatientMoves returns a patient's bed history.
func (h *Handler) PatientMoves(w http.ResponseWriter, r *http.Request) {
	patientID := core.SubjectID(chi.URLParam(r, "id"))

	var dtos []MoveDTO
	for _, m := range h.deps.WardStore.Moves() {
		if m.Patient == patientID {
			dtos = append(dtos, toMoveDTO(m))
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Occupancy returns the per-ward occupancy report plus the overall row.
func (h *Handler) Occupancy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OccupancyReportDTO{
		Wards:   h.deps.Wards.OccupancyReport(),
		Overall: h.deps.Wards.OverallOccupancy(),
	})
}

// =============================================================================
// FINANCE HANDLERS
// =============================================================================

// ListAccounts returns all accounts with their balances.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.deps.Finance.Accounts()
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAccount returns one account's balance.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.deps.Ledger.Balance(chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// Debit withdraws from an account.
func (h *Handler) Debit(w http.ResponseWriter, r *http.Request) {
	h.money(w, r, h.deps.Ledger.Debit)
}

// Credit deposits into an account.
func (h *Handler) Credit(w http.ResponseWriter, r *http.Request) {
	h.money(w, r, h.deps.Ledger.Credit)
}

func (h *Handler) money(w http.ResponseWriter, r *http.Request,
	op func(string, decimal.Decimal, string, string, string) (finance.Transaction, error)) {

	accountID := chi.URLParam(r, "id")
	var req MoneyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	tx, err := op(accountID, amount, req.Category, req.Department, req.Description)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archiveTransaction(tx)
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

// GetBudget returns one department's budget position.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := h.deps.Ledger.BudgetStatus(chi.URLParam(r, "department"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(budget))
}

// SpendBudget applies spend against a department budget.
func (h *Handler) SpendBudget(w http.ResponseWriter, r *http.Request) {
	department := chi.URLParam(r, "department")
	var req BudgetSpendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	budget, err := h.deps.Ledger.ApplyToBudget(department, amount)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(budget))
}

// SchedulePayment creates a pending outgoing payment.
func (h *Handler) SchedulePayment(w http.ResponseWriter, r *http.Request) {
	var req SchedulePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	due, err := core.ParseDate(req.DueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid due_date (use YYYY-MM-DD)", err)
		return
	}

	payment, err := h.deps.Ledger.SchedulePayment(amount, req.Recipient, req.Purpose, due)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archivePayment(payment)
	writeJSON(w, http.StatusCreated, toPaymentDTO(payment))
}

// CompletePayment debits the funding account and marks the payment paid.
func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")
	var req CompletePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	payment, err := h.deps.Ledger.CompletePayment(paymentID, req.AccountID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.archivePayment(payment)
	writeJSON(w, http.StatusOK, toPaymentDTO(payment))
}

// ExpenseSummary returns the trailing-window expense summary.
func (h *Handler) ExpenseSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}
	department := r.URL.Query().Get("department")

	writeJSON(w, http.StatusOK, h.deps.Ledger.Summarize(period, department))
}

// =============================================================================
// INVENTORY HANDLERS
// =============================================================================

// ListItems returns all stock items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.deps.Stock.Items()
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterItem adds a stock item.
func (h *Handler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	var req RegisterItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "id, name and a non-negative quantity are required", nil)
		return
	}

	item := inventory.Item{
		ID:               req.ID,
		Name:             req.Name,
		Quantity:         req.Quantity,
		ReorderThreshold: req.ReorderThreshold,
	}
	if req.ExpiryDate != "" {
		expiry, err := core.ParseDate(req.ExpiryDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expiry_date (use YYYY-MM-DD)", err)
			return
		}
		item.ExpiryDate = expiry
	}
	if err := h.deps.Stock.RegisterItem(item); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemDTO(item))
}

// RecordUsage records consumption of an item.
func (h *Handler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	var req UsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	item, err := h.deps.Inventory.RecordUsage(itemID, req.Used)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// SetStock sets an item's absolute quantity.
func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")
	var req StockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	item, err := h.deps.Inventory.UpdateStock(itemID, req.Quantity)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemDTO(item))
}

// LowStock returns items below their reorder threshold.
func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	items := h.deps.Inventory.LowStock()
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Expiring returns items that expire within ?within_days= (default 30).
func (h *Handler) Expiring(w http.ResponseWriter, r *http.Request) {
	within := 30
	if s := r.URL.Query().Get("within_days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid within_days", err)
			return
		}
		within = n
	}

	items := h.deps.Inventory.ExpiringSoon(within)
	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ReorderSuggestions returns forecast-driven reorder amounts.
func (h *Handler) ReorderSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.deps.Inventory.ReorderSuggestions(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []inventory.ReorderSuggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func toItemDTO(item inventory.Item) ItemDTO {
	dto := ItemDTO{
		ID:               item.ID,
		Name:             item.Name,
		Quantity:         item.Quantity,
		ReorderThreshold: item.ReorderThreshold,
		UsageHistory:     item.UsageHistory,
		LowStock:         item.LowStock(),
	}
	if !item.ExpiryDate.IsZero() {
		dto.ExpiryDate = item.ExpiryDate.String()
	}
	return dto
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// Analytics dispatches on ?report_type= and returns the chosen report.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	doctors := h.deps.Scheduling.Doctors()
	appointments := h.deps.Scheduling.Appointments()

	reportType := r.URL.Query().Get("report_type")
	if reportType == "" {
		reportType = "overview"
	}

	switch reportType {
	case "overview":
		writeJSON(w, http.StatusOK, analytics.Overview(doctors, appointments))
	case "utilization":
		writeJSON(w, http.StatusOK, struct {
			Doctors     []analytics.DoctorUtilization `json:"doctor_utilization"`
			Specialties []analytics.SpecialtyStats    `json:"specialty_distribution"`
			Bottlenecks []analytics.SpecialtyStats    `json:"bottlenecks"`
		}{
			Doctors:     analytics.DoctorUtilizations(doctors, appointments),
			Specialties: analytics.SpecialtyDistribution(doctors, appointments),
			Bottlenecks: analytics.Bottlenecks(doctors, appointments),
		})
	case "trends":
		writeJSON(w, http.StatusOK, analytics.Trends(appointments))
	case "efficiency":
		writeJSON(w, http.StatusOK, analytics.Efficiency(doctors, appointments))
	default:
		writeError(w, http.StatusBadRequest,
			"Unknown report_type (overview, utilization, trends, efficiency)", nil)
	}
}

// PatientInsights returns the behavior report for one patient.
func (h *Handler) PatientInsights(w http.ResponseWriter, r *http.Request) {
	patientID := core.SubjectID(chi.URLParam(r, "id"))

	report := analytics.PatientInsights(patientID,
		h.deps.Scheduling.Doctors(), h.deps.Scheduling.Appointments())
	writeJSON(w, http.StatusOK, report)
}

// PatientRecords returns one patient's full appointment history together
// with the derived behavior report.
func (h *Handler) PatientRecords(w http.ResponseWriter, r *http.Request) {
	patientID := core.SubjectID(chi.URLParam(r, "id"))

	history := []AppointmentDTO{}
	for _, a := range h.deps.Scheduling.Appointments() {
		if a.PatientID == patientID {
			history = append(history, toAppointmentDTO(a))
		}
	}

	writeJSON(w, http.StatusOK, struct {
		PatientID    string                  `json:"patient_id"`
		Appointments []AppointmentDTO        `json:"appointments"`
		Insights     analytics.PatientReport `json:"insights"`
	}{
		PatientID:    string(patientID),
		Appointments: history,
		Insights: analytics.PatientInsights(patientID,
			h.deps.Scheduling.Doctors(), h.deps.Scheduling.Appointments()),
	})
}

// DemandProfile classifies inventory demand and flags depletion spikes.
func (h *Handler) DemandProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.DemandProfile(h.deps.Stock.Items()))
}

// =============================================================================
// ARCHIVAL
// =============================================================================

func (h *Handler) archiveAppointment(a scheduling.Appointment) {
	if h.deps.Recorder != nil {
		h.deps.Recorder.Appointment(a)
	}
}

func (h *Handler) archiveMove(m ward.Move) {
	if h.deps.Recorder != nil {
		h.deps.Recorder.Move(m)
	}
}

func (h *Handler) archiveTransaction(tx finance.Transaction) {
	if h.deps.Recorder != nil {
		h.deps.Recorder.Transaction(tx)
	}
}

func (h *Handler) archivePayment(p finance.Payment) {
	if h.deps.Recorder != nil {
		h.deps.Recorder.Payment(p)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps a domain error to an HTTP status and surfaces the
// structured diagnostics so clients can act on the rejection.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: diagnosticsFor(err),
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, core.ErrAmbiguousMatch):
		return http.StatusConflict, "ambiguous_match"
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, core.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, core.ErrNoAvailability):
		return http.StatusConflict, "no_availability"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, core.ErrTransient):
		return http.StatusServiceUnavailable, "transient"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func diagnosticsFor(err error) any {
	var conflict *core.ConflictError
	if errors.As(err, &conflict) {
		return map[string]any{
			"held_by":      conflict.HeldBy,
			"alternatives": clocksToStrings(conflict.Alternatives),
		}
	}
	var badDate *core.UnavailableDateError
	if errors.As(err, &badDate) {
		return map[string]any{"valid_days": datesToStrings(badDate.ValidDays)}
	}
	var badTime *core.UnavailableTimeError
	if errors.As(err, &badTime) {
		return map[string]any{"valid_hours": clocksToStrings(badTime.ValidHours)}
	}
	var ambiguous *core.AmbiguousMatchError
	if errors.As(err, &ambiguous) {
		return map[string]any{"candidates": ambiguous.Candidates}
	}
	var unknown *scheduling.UnknownRecordError
	if errors.As(err, &unknown) {
		return map[string]any{"similar": unknown.Similar}
	}
	var funds *core.InsufficientFundsError
	if errors.As(err, &funds) {
		return map[string]any{
			"balance":   funds.Balance.String(),
			"requested": funds.Requested.String(),
		}
	}
	var stock *inventory.InsufficientStockError
	if errors.As(err, &stock) {
		return map[string]any{
			"available": stock.Available,
			"requested": stock.Requested,
		}
	}
	var full *ward.TargetFullError
	if errors.As(err, &full) {
		return map[string]any{"ward": full.Ward}
	}
	return nil
}
