/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - scenarios.go: Seeds the demo data these types describe
*/
package api

import (
	"time"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/finance"
	"github.com/warp/hospital-engine/scheduling"
	"github.com/warp/hospital-engine/ward"
)

// =============================================================================
// SCHEDULING
// =============================================================================

// DoctorDTO represents a doctor in API responses.
type DoctorDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialty      string   `json:"specialty"`
	AvailableDays  []string `json:"available_days"`
	AvailableHours []string `json:"available_hours"`
}

// RegisterDoctorRequest is the request to register a doctor.
type RegisterDoctorRequest struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialty      string   `json:"specialty"`
	AvailableDays  []string `json:"available_days"`
	AvailableHours []string `json:"available_hours"`
}

// AppointmentDTO represents an appointment record.
type AppointmentDTO struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ReserveRequestDTO is the request to book an appointment. Either
// doctor_id or specialty must be set; date and time are optional.
type ReserveRequestDTO struct {
	DoctorID       string `json:"doctor_id,omitempty"`
	Specialty      string `json:"specialty,omitempty"`
	Date           string `json:"date,omitempty"`
	Time           string `json:"time,omitempty"`
	PatientID      string `json:"patient_id"`
	Notes          string `json:"notes,omitempty"`
	AutoReschedule bool   `json:"auto_reschedule,omitempty"`
}

// ReserveResponseDTO is the result of a committed reservation.
type ReserveResponseDTO struct {
	Appointment   AppointmentDTO `json:"appointment"`
	AutoCompleted []string       `json:"auto_completed,omitempty"`
	Rescheduled   bool           `json:"rescheduled"`
	RequestedDate string         `json:"requested_date,omitempty"`
	RequestedTime string         `json:"requested_time,omitempty"`
}

// CancelRequestDTO cancels by criteria when no record id is known.
type CancelRequestDTO struct {
	RecordID  string `json:"record_id,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	DoctorID  string `json:"doctor_id,omitempty"`
	Date      string `json:"date,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FreedSlotDTO names the slot a cancellation released.
type FreedSlotDTO struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// RebookingSuggestionDTO is one alternative offered after a cancellation.
type RebookingSuggestionDTO struct {
	DoctorID   string   `json:"doctor_id"`
	DoctorName string   `json:"doctor_name"`
	Specialty  string   `json:"specialty"`
	Date       string   `json:"date"`
	Times      []string `json:"times"`
	Priority   int      `json:"priority"`
}

// CancelResponseDTO reports the cancelled record and rebooking options.
type CancelResponseDTO struct {
	Cancelled   AppointmentDTO           `json:"cancelled"`
	FreedSlot   FreedSlotDTO             `json:"freed_slot"`
	Suggestions []RebookingSuggestionDTO `json:"suggestions"`
}

// DayAvailabilityDTO is one free day in a horizon scan.
type DayAvailabilityDTO struct {
	Date      string   `json:"date"`
	FreeHours []string `json:"free_hours"`
}

// DaySlotsDTO reports one doctor-day's booked and free hours.
type DaySlotsDTO struct {
	DoctorID    string   `json:"doctor_id"`
	Date        string   `json:"date"`
	FreeHours   []string `json:"free_hours"`
	BookedHours []string `json:"booked_hours"`
	Utilization float64  `json:"utilization_percent"`
}

// DoctorAvailabilityDTO is one entry of a specialty availability query.
type DoctorAvailabilityDTO struct {
	Doctor DoctorDTO           `json:"doctor"`
	Day    *DaySlotsDTO        `json:"day,omitempty"`
	Next   *DayAvailabilityDTO `json:"next,omitempty"`
}

// =============================================================================
// WARDS
// =============================================================================

// RegisterWardRequest creates a ward with a fixed bed capacity.
type RegisterWardRequest struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// RegisterPatientRequest adds a patient to the registry.
type RegisterPatientRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Condition string `json:"condition,omitempty"`
}

// AssignRequest places a patient in a ward.
type AssignRequest struct {
	Ward string `json:"ward"`
}

// TransferRequest moves a patient between wards.
type TransferRequest struct {
	FromWard string `json:"from_ward"`
	ToWard   string `json:"to_ward"`
}

// MoveDTO is one committed bed mutation.
type MoveDTO struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	PatientID string `json:"patient_id"`
	FromWard  string `json:"from_ward,omitempty"`
	ToWard    string `json:"to_ward,omitempty"`
	Bed       string `json:"bed,omitempty"`
	CreatedAt string `json:"created_at"`
}

// OccupancyReportDTO is the per-ward occupancy plus the overall row.
type OccupancyReportDTO struct {
	Wards   []ward.Occupancy `json:"wards"`
	Overall ward.Occupancy   `json:"overall"`
}

// =============================================================================
// FINANCE
// =============================================================================

// MoneyRequest debits or credits an account.
type MoneyRequest struct {
	Amount      string `json:"amount"`
	Category    string `json:"category,omitempty"`
	Department  string `json:"department,omitempty"`
	Description string `json:"description,omitempty"`
}

// TransactionDTO is one committed ledger entry.
type TransactionDTO struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Category    string `json:"category,omitempty"`
	Department  string `json:"department,omitempty"`
	Account     string `json:"account"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
}

// AccountDTO is an account with its current balance.
type AccountDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Balance string `json:"balance"`
}

// BudgetDTO is one department's budget position.
type BudgetDTO struct {
	Department string `json:"department"`
	Period     string `json:"period"`
	Total      string `json:"total"`
	Spent      string `json:"spent"`
	Remaining  string `json:"remaining"`
	OverBudget bool   `json:"over_budget"`
}

// BudgetSpendRequest applies spend to a department budget.
type BudgetSpendRequest struct {
	Amount string `json:"amount"`
}

// SchedulePaymentRequest schedules an outgoing payment.
type SchedulePaymentRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
	Purpose   string `json:"purpose,omitempty"`
	DueDate   string `json:"due_date"`
}

// CompletePaymentRequest names the funding account for a pending payment.
type CompletePaymentRequest struct {
	AccountID string `json:"account_id"`
}

// PaymentDTO is one scheduled or completed payment.
type PaymentDTO struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Recipient   string `json:"recipient"`
	Purpose     string `json:"purpose,omitempty"`
	DueDate     string `json:"due_date"`
	Status      string `json:"status"`
	PaymentDate string `json:"payment_date,omitempty"`
}

// =============================================================================
// INVENTORY
// =============================================================================

// RegisterItemRequest adds a stock item.
type RegisterItemRequest struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Quantity         int    `json:"quantity"`
	ReorderThreshold int    `json:"reorder_threshold"`
	ExpiryDate       string `json:"expiry_date,omitempty"`
}

// UsageRequest records consumption of a stock item.
type UsageRequest struct {
	Used int `json:"used"`
}

// StockRequest sets an item's absolute quantity.
type StockRequest struct {
	Quantity int `json:"quantity"`
}

// ItemDTO is one stock item.
type ItemDTO struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Quantity         int    `json:"quantity"`
	ReorderThreshold int    `json:"reorder_threshold"`
	UsageHistory     []int  `json:"usage_history,omitempty"`
	ExpiryDate       string `json:"expiry_date,omitempty"`
	LowStock         bool   `json:"low_stock"`
}

// =============================================================================
// SHARED
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toDoctorDTO(d scheduling.Doctor) DoctorDTO {
	return DoctorDTO{
		ID:             string(d.ID),
		Name:           d.Name,
		Specialty:      d.Specialty,
		AvailableDays:  datesToStrings(d.AvailableDays),
		AvailableHours: clocksToStrings(d.AvailableHours),
	}
}

func toAppointmentDTO(a scheduling.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:        string(a.ID),
		PatientID: string(a.PatientID),
		DoctorID:  string(a.DoctorID),
		Date:      a.Date.String(),
		Time:      a.Time.String(),
		Status:    string(a.Status),
		Notes:     a.Notes,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func toMoveDTO(m ward.Move) MoveDTO {
	return MoveDTO{
		ID:        string(m.ID),
		Kind:      string(m.Kind),
		PatientID: string(m.Patient),
		FromWard:  m.FromWard,
		ToWard:    m.ToWard,
		Bed:       m.Bed,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx finance.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          tx.ID,
		Amount:      tx.Amount.String(),
		Type:        string(tx.Type),
		Category:    tx.Category,
		Department:  tx.Department,
		Account:     tx.Account,
		Description: tx.Description,
		Date:        tx.Date.Format(time.RFC3339),
	}
}

func toAccountDTO(a finance.Account) AccountDTO {
	return AccountDTO{
		ID:      a.ID,
		Name:    a.Name,
		Type:    string(a.Type),
		Balance: a.Balance.String(),
	}
}

func toBudgetDTO(b finance.Budget) BudgetDTO {
	return BudgetDTO{
		Department: b.Department,
		Period:     string(b.Period),
		Total:      b.Total.String(),
		Spent:      b.Spent.String(),
		Remaining:  b.Remaining().String(),
		OverBudget: b.OverBudget(),
	}
}

func toPaymentDTO(p finance.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:        p.ID,
		Amount:    p.Amount.String(),
		Recipient: p.Recipient,
		Purpose:   p.Purpose,
		DueDate:   p.DueDate.String(),
		Status:    string(p.Status),
	}
	if p.PaymentDate != nil {
		dto.PaymentDate = p.PaymentDate.Format(time.RFC3339)
	}
	return dto
}

func toDaySlotsDTO(slots scheduling.DaySlots) DaySlotsDTO {
	return DaySlotsDTO{
		DoctorID:    string(slots.Doctor.ID),
		Date:        slots.Date.String(),
		FreeHours:   clocksToStrings(slots.Available),
		BookedHours: clocksToStrings(slots.Booked),
		Utilization: slots.Utilization(),
	}
}

func datesToStrings(ds []core.Date) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

func clocksToStrings(cs []core.Clock) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}
