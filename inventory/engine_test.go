package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/inventory"
)

func newTestStore(t *testing.T) *inventory.MemoryStore {
	t.Helper()
	store := inventory.NewMemoryStore()
	for _, item := range []inventory.Item{
		{
			ID: "med_001", Name: "Paracetamol (500 mg)",
			Quantity: 20, ReorderThreshold: 30,
			UsageHistory: []int{15, 18, 22, 20},
			ExpiryDate:   core.MustDate("2025-08-15"),
		},
		{
			ID: "equip_002", Name: "Disposable Syringe (5 mL)",
			Quantity: 50, ReorderThreshold: 40,
			UsageHistory: []int{45, 50, 48, 52},
			ExpiryDate:   core.MustDate("2027-12-31"),
		},
		{
			ID: "med_003", Name: "Saline (1 L)",
			Quantity: 200, ReorderThreshold: 50,
			UsageHistory: []int{10},
			ExpiryDate:   core.MustDate("2026-01-01"),
		},
	} {
		require.NoError(t, store.RegisterItem(item))
	}
	return store
}

func fixedToday() core.Date { return core.MustDate("2025-07-20") }

func newTestEngine(t *testing.T, f inventory.Forecaster) (*inventory.MemoryStore, *inventory.Engine) {
	t.Helper()
	store := newTestStore(t)
	return store, inventory.NewEngine(store, f, zerolog.Nop()).WithToday(fixedToday)
}

// =============================================================================
// USAGE AND STOCK
// =============================================================================

func TestRecordUsage_ConsumesAndExtendsHistory(t *testing.T) {
	store, engine := newTestEngine(t, nil)

	item, err := engine.RecordUsage("med_001", 5)
	require.NoError(t, err)
	assert.Equal(t, 15, item.Quantity)
	assert.Equal(t, []int{15, 18, 22, 20, 5}, item.UsageHistory)

	stored, _ := store.Item("med_001")
	assert.Equal(t, 15, stored.Quantity)
}

func TestRecordUsage_NeverDrivesStockNegative(t *testing.T) {
	store, engine := newTestEngine(t, nil)

	_, err := engine.RecordUsage("med_001", 21)
	require.Error(t, err)

	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 20, insufficient.Available)

	// The rejected usage must not touch quantity or history.
	stored, _ := store.Item("med_001")
	assert.Equal(t, 20, stored.Quantity)
	assert.Len(t, stored.UsageHistory, 4)
}

func TestRecordUsage_RejectsNonPositive(t *testing.T) {
	_, engine := newTestEngine(t, nil)

	for _, used := range []int{0, -3} {
		_, err := engine.RecordUsage("med_001", used)
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	}
}

func TestUpdateStock_SetsAbsoluteQuantity(t *testing.T) {
	_, engine := newTestEngine(t, nil)

	item, err := engine.UpdateStock("med_001", 120)
	require.NoError(t, err)
	assert.Equal(t, 120, item.Quantity)

	_, err = engine.UpdateStock("med_001", -1)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = engine.UpdateStock("nope", 10)
	assert.True(t, core.IsNotFound(err))
}

// =============================================================================
// LOW STOCK AND EXPIRY
// =============================================================================

func TestLowStock(t *testing.T) {
	_, engine := newTestEngine(t, nil)

	low := engine.LowStock()
	require.Len(t, low, 1)
	assert.Equal(t, "med_001", low[0].ID)

	// Draining the syringes below threshold adds them to the list.
	_, err := engine.RecordUsage("equip_002", 15)
	require.NoError(t, err)
	assert.Len(t, engine.LowStock(), 2)
}

func TestExpiringSoon(t *testing.T) {
	_, engine := newTestEngine(t, nil)

	// Today is 2025-07-20; paracetamol expires 2025-08-15.
	within30 := engine.ExpiringSoon(30)
	require.Len(t, within30, 1)
	assert.Equal(t, "med_001", within30[0].ID)

	assert.Empty(t, engine.ExpiringSoon(10))
	assert.Len(t, engine.ExpiringSoon(200), 2)
}

// =============================================================================
// FORECAST
// =============================================================================

func TestLinearTrend_FitsUpwardSeries(t *testing.T) {
	// Perfect line 10,20,30,40 predicts 50.
	predicted, err := inventory.LinearTrend(context.Background(), []int{10, 20, 30, 40})
	require.NoError(t, err)
	assert.Equal(t, 50, predicted)
}

func TestLinearTrend_FlatSeries(t *testing.T) {
	predicted, err := inventory.LinearTrend(context.Background(), []int{12, 12, 12})
	require.NoError(t, err)
	assert.Equal(t, 12, predicted)
}

func TestLinearTrend_ClampsNegativePrediction(t *testing.T) {
	predicted, err := inventory.LinearTrend(context.Background(), []int{30, 10})
	require.NoError(t, err)
	assert.Equal(t, 0, predicted)
}

func TestLinearTrend_NeedsTwoPoints(t *testing.T) {
	_, err := inventory.LinearTrend(context.Background(), []int{7})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

// =============================================================================
// REORDER SUGGESTIONS
// =============================================================================

func TestReorderSuggestions_ProjectsAgainstThreshold(t *testing.T) {
	_, engine := newTestEngine(t, nil)

	suggestions, err := engine.ReorderSuggestions(context.Background())
	require.NoError(t, err)

	// med_003 has one usage point and is skipped. Both remaining items
	// project below threshold.
	require.Len(t, suggestions, 2)

	para := suggestions[0]
	assert.Equal(t, "med_001", para.ItemID)
	assert.Equal(t, 20, para.CurrentQuantity)
	assert.Equal(t, 30, para.ReorderThreshold)
	assert.Equal(t, para.CurrentQuantity-para.PredictedUsage, para.ProjectedRemaining)
	assert.Equal(t, para.ReorderThreshold+para.PredictedUsage-para.CurrentQuantity, para.SuggestedQuantity)
	assert.Positive(t, para.SuggestedQuantity)

	assert.Equal(t, "equip_002", suggestions[1].ItemID)
}

func TestReorderSuggestions_SkipsWellStockedItems(t *testing.T) {
	_, engine := newTestEngine(t, nil)

	// Restock both items far above projected demand.
	_, err := engine.UpdateStock("med_001", 500)
	require.NoError(t, err)
	_, err = engine.UpdateStock("equip_002", 500)
	require.NoError(t, err)

	suggestions, err := engine.ReorderSuggestions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestReorderSuggestions_FallsBackWhenForecasterFails(t *testing.T) {
	// GIVEN: an external forecaster that always errors
	// THEN: suggestions still come back, computed by the linear trend

	failing := func(ctx context.Context, history []int) (int, error) {
		return 0, errors.New("model endpoint unreachable")
	}
	_, engine := newTestEngine(t, failing)

	suggestions, err := engine.ReorderSuggestions(context.Background())
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)
}

func TestReorderSuggestions_ForecasterRespectsContext(t *testing.T) {
	// A forecaster that blocks until its context expires still cannot
	// stall the scan past the per-call timeout.

	blocking := func(ctx context.Context, history []int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	_, engine := newTestEngine(t, blocking)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	suggestions, err := engine.ReorderSuggestions(ctx)
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)
}
