/*
Package sqlite provides the SQLite-backed archive of committed records.

PURPOSE:
  The engines commit to in-memory stores; this package persists the
  durable history behind them. Appointments, ward moves, ledger
  transactions and payments are archived here so that history survives
  a restart and can be queried without touching the hot path. The same
  patterns apply to PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  Ward moves and ledger transactions are never updated or deleted.
  Appointments and payments are upserted, but the only column the
  upsert may change is the status (plus its completion timestamp);
  everything else is written once.

KEY TABLES:
  appointments: Reservation records, status transitions included
  ward_moves:   Immutable bed mutation history
  transactions: Immutable ledger of account debits and credits
  payments:     Scheduled payments, pending until completed

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The Recorder in recorder.go
  keeps archival off the engines' commit path.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  archive, err := sqlite.New("./data/hospital.db")
  if err != nil {
      log.Fatal(err)
  }
  defer archive.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - recorder.go: write-behind worker feeding this archive
  - scheduling/store.go, ward/store.go, finance/store.go: hot-path stores
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/finance"
	"github.com/warp/hospital-engine/scheduling"
	"github.com/warp/hospital-engine/ward"
)

// Archive persists committed records to SQLite.
type Archive struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the archive at the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return a, nil
}

// Close closes the database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// migrate creates the database schema.
func (a *Archive) migrate() error {
	schema := `
	-- Appointments (status is the only mutable column)
	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		doctor_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_patient
		ON appointments(patient_id);
	CREATE INDEX IF NOT EXISTS idx_appointments_doctor_date
		ON appointments(doctor_id, date);
	CREATE INDEX IF NOT EXISTS idx_appointments_status
		ON appointments(status);

	-- CRITICAL: at most one active appointment per (doctor, date, time).
	-- The in-memory store already enforces this; the index catches any
	-- archival bug that would violate it.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_active_slot
		ON appointments(doctor_id, date, time)
		WHERE status = 'scheduled';

	-- Ward moves (append-only)
	CREATE TABLE IF NOT EXISTS ward_moves (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		patient_id TEXT NOT NULL,
		from_ward TEXT,
		to_ward TEXT,
		bed TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ward_moves_patient
		ON ward_moves(patient_id);
	CREATE INDEX IF NOT EXISTS idx_ward_moves_created
		ON ward_moves(created_at);

	-- Ledger transactions (append-only)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		category TEXT,
		department TEXT,
		account TEXT NOT NULL,
		description TEXT,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_account_date
		ON transactions(account, date DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_department
		ON transactions(department) WHERE department != '';
	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);

	-- Payments (status and payment_date mutable, nothing else)
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		amount TEXT NOT NULL,
		recipient TEXT NOT NULL,
		purpose TEXT,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payments_status
		ON payments(status);
	CREATE INDEX IF NOT EXISTS idx_payments_due
		ON payments(due_date);
	`

	_, err := a.db.Exec(schema)
	return err
}

// =============================================================================
// APPOINTMENTS
// =============================================================================

// SaveAppointment inserts or updates an appointment record. Only the
// status may change on conflict.
func (a *Archive) SaveAppointment(ctx context.Context, apt scheduling.Appointment) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	query := `
		INSERT INTO appointments (id, patient_id, doctor_id, date, time, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status
	`

	_, err := a.db.ExecContext(ctx, query,
		string(apt.ID),
		string(apt.PatientID),
		string(apt.DoctorID),
		apt.Date.String(),
		apt.Time.String(),
		string(apt.Status),
		apt.Notes,
		apt.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("archive slot conflict for %s: %w", apt.ID, core.ErrConflict)
		}
		return fmt.Errorf("failed to save appointment: %w", err)
	}
	return nil
}

// GetAppointment retrieves one appointment by id. Returns nil when absent.
func (a *Archive) GetAppointment(ctx context.Context, id core.RecordID) (*scheduling.Appointment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, patient_id, doctor_id, date, time, status, notes, created_at
		FROM appointments WHERE id = ?
	`

	apts, err := a.queryAppointments(ctx, query, string(id))
	if err != nil {
		return nil, err
	}
	if len(apts) == 0 {
		return nil, nil
	}
	return &apts[0], nil
}

// AppointmentsByPatient returns a patient's archived history, oldest first.
func (a *Archive) AppointmentsByPatient(ctx context.Context, patientID core.SubjectID) ([]scheduling.Appointment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, patient_id, doctor_id, date, time, status, notes, created_at
		FROM appointments
		WHERE patient_id = ?
		ORDER BY created_at ASC, id ASC
	`

	return a.queryAppointments(ctx, query, string(patientID))
}

// AppointmentsByDoctor returns a doctor's archived history in slot order.
func (a *Archive) AppointmentsByDoctor(ctx context.Context, doctorID core.OwnerID) ([]scheduling.Appointment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, patient_id, doctor_id, date, time, status, notes, created_at
		FROM appointments
		WHERE doctor_id = ?
		ORDER BY date ASC, time ASC, id ASC
	`

	return a.queryAppointments(ctx, query, string(doctorID))
}

// RecentAppointments returns the newest records first (for admin views).
func (a *Archive) RecentAppointments(ctx context.Context, limit int) ([]scheduling.Appointment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, patient_id, doctor_id, date, time, status, notes, created_at
		FROM appointments
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	return a.queryAppointments(ctx, query, limit)
}

func (a *Archive) queryAppointments(ctx context.Context, query string, args ...any) ([]scheduling.Appointment, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var apts []scheduling.Appointment
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		apts = append(apts, apt)
	}

	return apts, rows.Err()
}

func scanAppointment(rows *sql.Rows) (scheduling.Appointment, error) {
	var (
		apt       scheduling.Appointment
		id        string
		patientID string
		doctorID  string
		date      string
		hour      string
		status    string
		notes     sql.NullString
		createdAt string
	)

	err := rows.Scan(&id, &patientID, &doctorID, &date, &hour, &status, &notes, &createdAt)
	if err != nil {
		return apt, fmt.Errorf("failed to scan appointment: %w", err)
	}

	apt.ID = core.RecordID(id)
	apt.PatientID = core.SubjectID(patientID)
	apt.DoctorID = core.OwnerID(doctorID)
	apt.Date, _ = core.ParseDate(date)
	apt.Time, _ = core.ParseClock(hour)
	apt.Status = core.RecordStatus(status)
	apt.Notes = notes.String
	apt.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	return apt, nil
}

// =============================================================================
// WARD MOVES
// =============================================================================

// SaveMove appends one bed mutation to the move history.
func (a *Archive) SaveMove(ctx context.Context, m ward.Move) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	query := `
		INSERT INTO ward_moves (id, kind, patient_id, from_ward, to_ward, bed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := a.db.ExecContext(ctx, query,
		string(m.ID),
		string(m.Kind),
		string(m.Patient),
		m.FromWard,
		m.ToWard,
		m.Bed,
		m.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save move: %w", err)
	}
	return nil
}

// MovesByPatient returns a patient's bed history, oldest first.
func (a *Archive) MovesByPatient(ctx context.Context, patientID core.SubjectID) ([]ward.Move, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, kind, patient_id, from_ward, to_ward, bed, created_at
		FROM ward_moves
		WHERE patient_id = ?
		ORDER BY created_at ASC, id ASC
	`

	return a.queryMoves(ctx, query, string(patientID))
}

// RecentMoves returns the newest moves first.
func (a *Archive) RecentMoves(ctx context.Context, limit int) ([]ward.Move, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, kind, patient_id, from_ward, to_ward, bed, created_at
		FROM ward_moves
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	return a.queryMoves(ctx, query, limit)
}

func (a *Archive) queryMoves(ctx context.Context, query string, args ...any) ([]ward.Move, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query moves: %w", err)
	}
	defer rows.Close()

	var moves []ward.Move
	for rows.Next() {
		var (
			m                ward.Move
			id               string
			kind             string
			patient          string
			fromWard, toWard sql.NullString
			bed              sql.NullString
			createdAt        string
		)
		if err := rows.Scan(&id, &kind, &patient, &fromWard, &toWard, &bed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan move: %w", err)
		}
		m.ID = core.RecordID(id)
		m.Kind = ward.MoveKind(kind)
		m.Patient = core.SubjectID(patient)
		m.FromWard = fromWard.String
		m.ToWard = toWard.String
		m.Bed = bed.String
		m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		moves = append(moves, m)
	}

	return moves, rows.Err()
}

// =============================================================================
// LEDGER TRANSACTIONS
// =============================================================================

// SaveTransaction appends one ledger entry. Entries are immutable.
func (a *Archive) SaveTransaction(ctx context.Context, tx finance.Transaction) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	query := `
		INSERT INTO transactions (id, amount, tx_type, category, department, account, description, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := a.db.ExecContext(ctx, query,
		tx.ID,
		tx.Amount.String(),
		string(tx.Type),
		tx.Category,
		tx.Department,
		tx.Account,
		tx.Description,
		tx.Date.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// TransactionsByAccount returns an account's ledger entries, newest first.
func (a *Archive) TransactionsByAccount(ctx context.Context, account string, limit int) ([]finance.Transaction, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, amount, tx_type, category, department, account, description, date
		FROM transactions
		WHERE account = ?
		ORDER BY date DESC, id DESC
		LIMIT ?
	`

	return a.queryTransactions(ctx, query, account, limit)
}

// TransactionsSince returns all entries at or after the cutoff, oldest first.
func (a *Archive) TransactionsSince(ctx context.Context, cutoff time.Time) ([]finance.Transaction, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, amount, tx_type, category, department, account, description, date
		FROM transactions
		WHERE date >= ?
		ORDER BY date ASC, id ASC
	`

	return a.queryTransactions(ctx, query, cutoff.UTC().Format(time.RFC3339))
}

func (a *Archive) queryTransactions(ctx context.Context, query string, args ...any) ([]finance.Transaction, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []finance.Transaction
	for rows.Next() {
		var (
			tx     finance.Transaction
			amount string
			txType string
			date   string
		)
		if err := rows.Scan(&tx.ID, &amount, &txType, &tx.Category, &tx.Department,
			&tx.Account, &tx.Description, &date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount in transaction %s: %w", tx.ID, err)
		}
		tx.Type = finance.TransactionType(txType)
		tx.Date, _ = time.Parse(time.RFC3339, date)
		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

// SavePayment inserts or updates a payment. On conflict only the status
// and payment date may change.
func (a *Archive) SavePayment(ctx context.Context, p finance.Payment) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var paymentDate *string
	if p.PaymentDate != nil {
		s := p.PaymentDate.UTC().Format(time.RFC3339)
		paymentDate = &s
	}

	query := `
		INSERT INTO payments (id, amount, recipient, purpose, due_date, status, payment_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			payment_date = excluded.payment_date
	`

	_, err := a.db.ExecContext(ctx, query,
		p.ID,
		p.Amount.String(),
		p.Recipient,
		p.Purpose,
		p.DueDate.String(),
		string(p.Status),
		paymentDate,
	)
	if err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// GetPayment retrieves one payment by id. Returns nil when absent.
func (a *Archive) GetPayment(ctx context.Context, id string) (*finance.Payment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, amount, recipient, purpose, due_date, status, payment_date
		FROM payments WHERE id = ?
	`

	ps, err := a.queryPayments(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, nil
	}
	return &ps[0], nil
}

// PendingPayments returns payments still awaiting completion, due-date order.
func (a *Archive) PendingPayments(ctx context.Context) ([]finance.Payment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	query := `
		SELECT id, amount, recipient, purpose, due_date, status, payment_date
		FROM payments
		WHERE status = ?
		ORDER BY due_date ASC, id ASC
	`

	return a.queryPayments(ctx, query, string(core.PaymentPending))
}

func (a *Archive) queryPayments(ctx context.Context, query string, args ...any) ([]finance.Payment, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var ps []finance.Payment
	for rows.Next() {
		var (
			p           finance.Payment
			amount      string
			dueDate     string
			status      string
			paymentDate sql.NullString
		)
		if err := rows.Scan(&p.ID, &amount, &p.Recipient, &p.Purpose, &dueDate, &status, &paymentDate); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount in payment %s: %w", p.ID, err)
		}
		p.DueDate, _ = core.ParseDate(dueDate)
		p.Status = core.PaymentStatus(status)
		if paymentDate.Valid {
			t, _ := time.Parse(time.RFC3339, paymentDate.String)
			p.PaymentDate = &t
		}
		ps = append(ps, p)
	}

	return ps, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all archived data (for testing/demo).
func (a *Archive) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tables := []string{"appointments", "ward_moves", "transactions", "payments"}
	for _, table := range tables {
		if _, err := a.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
