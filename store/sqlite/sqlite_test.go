package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/finance"
	"github.com/warp/hospital-engine/scheduling"
	"github.com/warp/hospital-engine/ward"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func testAppointment(id string) scheduling.Appointment {
	return scheduling.Appointment{
		ID:        core.RecordID(id),
		PatientID: "P001",
		DoctorID:  "dr_smith",
		Date:      core.MustDate("2025-06-07"),
		Time:      core.MustClock("09:00"),
		Status:    core.StatusScheduled,
		CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestArchive_AppointmentRoundTrip(t *testing.T) {
	// GIVEN an archived appointment
	a := newTestArchive(t)
	ctx := context.Background()
	require.NoError(t, a.SaveAppointment(ctx, testAppointment("APT0001")))

	// WHEN it is read back
	got, err := a.GetAppointment(ctx, "APT0001")

	// THEN every field survives the round trip
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.RecordID("APT0001"), got.ID)
	assert.Equal(t, core.SubjectID("P001"), got.PatientID)
	assert.Equal(t, core.OwnerID("dr_smith"), got.DoctorID)
	assert.Equal(t, "2025-06-07", got.Date.String())
	assert.Equal(t, "09:00", got.Time.String())
	assert.Equal(t, core.StatusScheduled, got.Status)
}

func TestArchive_GetAppointmentMissing(t *testing.T) {
	a := newTestArchive(t)

	got, err := a.GetAppointment(context.Background(), "APT9999")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestArchive_SaveAppointmentUpsertsStatusOnly(t *testing.T) {
	// GIVEN a scheduled appointment in the archive
	a := newTestArchive(t)
	ctx := context.Background()
	apt := testAppointment("APT0001")
	require.NoError(t, a.SaveAppointment(ctx, apt))

	// WHEN the same record is saved again as cancelled
	apt.Status = core.StatusCancelled
	require.NoError(t, a.SaveAppointment(ctx, apt))

	// THEN the stored status changed and no duplicate row exists
	got, err := a.GetAppointment(ctx, "APT0001")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, got.Status)

	all, err := a.RecentAppointments(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestArchive_RejectsSecondActiveHolderOfSlot(t *testing.T) {
	// GIVEN an active appointment holding a slot
	a := newTestArchive(t)
	ctx := context.Background()
	require.NoError(t, a.SaveAppointment(ctx, testAppointment("APT0001")))

	// WHEN a different active appointment claims the same slot
	dup := testAppointment("APT0002")
	err := a.SaveAppointment(ctx, dup)

	// THEN the unique index rejects it as a conflict
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConflict)

	// AND a cancelled record on the slot is fine
	dup.Status = core.StatusCancelled
	require.NoError(t, a.SaveAppointment(ctx, dup))
}

func TestArchive_AppointmentsByPatient(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	first := testAppointment("APT0001")
	second := testAppointment("APT0002")
	second.Time = core.MustClock("10:00")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	other := testAppointment("APT0003")
	other.PatientID = "P002"
	other.Time = core.MustClock("11:00")

	require.NoError(t, a.SaveAppointment(ctx, first))
	require.NoError(t, a.SaveAppointment(ctx, second))
	require.NoError(t, a.SaveAppointment(ctx, other))

	got, err := a.AppointmentsByPatient(ctx, "P001")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.RecordID("APT0001"), got[0].ID)
	assert.Equal(t, core.RecordID("APT0002"), got[1].ID)
}

func TestArchive_MoveHistoryRoundTrip(t *testing.T) {
	// GIVEN an assign followed by a transfer
	a := newTestArchive(t)
	ctx := context.Background()
	at := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)

	require.NoError(t, a.SaveMove(ctx, ward.Move{
		ID: "MOV0001", Kind: ward.MoveAssign, Patient: "P001",
		ToWard: "WardA", Bed: "WardA_bed1", CreatedAt: at,
	}))
	require.NoError(t, a.SaveMove(ctx, ward.Move{
		ID: "MOV0002", Kind: ward.MoveTransfer, Patient: "P001",
		FromWard: "WardA", ToWard: "WardB", Bed: "WardB_bed1", CreatedAt: at.Add(time.Hour),
	}))

	// WHEN the patient's history is read
	got, err := a.MovesByPatient(ctx, "P001")

	// THEN both moves come back oldest first with fields intact
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ward.MoveAssign, got[0].Kind)
	assert.Equal(t, "WardA_bed1", got[0].Bed)
	assert.Equal(t, ward.MoveTransfer, got[1].Kind)
	assert.Equal(t, "WardA", got[1].FromWard)
	assert.Equal(t, "WardB", got[1].ToWard)
}

func TestArchive_TransactionRoundTripKeepsDecimalExact(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()

	tx := finance.Transaction{
		ID:          "tx-1",
		Amount:      decimal.RequireFromString("12345.67"),
		Type:        finance.TransactionExpense,
		Category:    "supplies",
		Department:  "WardA",
		Account:     "main",
		Description: "surgical supplies",
		Date:        time.Date(2025, 6, 7, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, a.SaveTransaction(ctx, tx))

	got, err := a.TransactionsByAccount(ctx, "main", 10)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Amount.Equal(tx.Amount), "amount must not lose precision")
	assert.Equal(t, finance.TransactionExpense, got[0].Type)
	assert.Equal(t, "WardA", got[0].Department)
}

func TestArchive_TransactionsSinceFiltersByCutoff(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"tx-1", "tx-2", "tx-3"} {
		require.NoError(t, a.SaveTransaction(ctx, finance.Transaction{
			ID:      id,
			Amount:  decimal.NewFromInt(100),
			Type:    finance.TransactionIncome,
			Account: "main",
			Date:    base.AddDate(0, 0, i*10),
		}))
	}

	got, err := a.TransactionsSince(ctx, base.AddDate(0, 0, 10))

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "tx-2", got[0].ID)
	assert.Equal(t, "tx-3", got[1].ID)
}

func TestArchive_PaymentLifecycle(t *testing.T) {
	// GIVEN a pending payment in the archive
	a := newTestArchive(t)
	ctx := context.Background()
	p := finance.Payment{
		ID:        "pay-1",
		Amount:    decimal.NewFromInt(5000),
		Recipient: "MedSupply Co",
		Purpose:   "equipment",
		DueDate:   core.MustDate("2025-07-01"),
		Status:    core.PaymentPending,
	}
	require.NoError(t, a.SavePayment(ctx, p))

	pending, err := a.PendingPayments(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// WHEN the payment completes and is saved again
	paid := time.Date(2025, 6, 30, 15, 0, 0, 0, time.UTC)
	p.Status = core.PaymentCompleted
	p.PaymentDate = &paid
	require.NoError(t, a.SavePayment(ctx, p))

	// THEN it leaves the pending set and carries its payment date
	pending, err = a.PendingPayments(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := a.GetPayment(ctx, "pay-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.PaymentCompleted, got.Status)
	require.NotNil(t, got.PaymentDate)
	assert.True(t, got.PaymentDate.Equal(paid))
}

func TestArchive_Reset(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	require.NoError(t, a.SaveAppointment(ctx, testAppointment("APT0001")))

	require.NoError(t, a.Reset(ctx))

	all, err := a.RecentAppointments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRecorder_FlushesQueueOnClose(t *testing.T) {
	// GIVEN records queued faster than they are read back
	a := newTestArchive(t)
	r := NewRecorder(a, 16, zerolog.Nop())

	r.Appointment(testAppointment("APT0001"))
	r.Move(ward.Move{
		ID: "MOV0001", Kind: ward.MoveAssign, Patient: "P001",
		ToWard: "WardA", Bed: "WardA_bed1", CreatedAt: time.Now().UTC(),
	})
	r.Transaction(finance.Transaction{
		ID:      "tx-1",
		Amount:  decimal.NewFromInt(100),
		Type:    finance.TransactionIncome,
		Account: "main",
		Date:    time.Now().UTC(),
	})

	// WHEN the recorder is closed
	r.Close()

	// THEN everything queued before Close is in the archive
	ctx := context.Background()
	apt, err := a.GetAppointment(ctx, "APT0001")
	require.NoError(t, err)
	assert.NotNil(t, apt)

	moves, err := a.RecentMoves(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, moves, 1)

	txs, err := a.TransactionsByAccount(ctx, "main", 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	a := newTestArchive(t)
	r := NewRecorder(a, 16, zerolog.Nop())

	r.Close()
	r.Close()
}
