/*
engine.go - Stock mutations and reorder planning

PURPOSE:
  Usage recording, stock corrections and the reorder suggestion scan:
  for each item with enough history, forecast next-period usage, project
  the remaining stock and suggest a reorder quantity when the projection
  falls below the item's threshold.
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/hospital-engine/core"
	"github.com/warp/hospital-engine/metrics"
)

// forecastTimeout bounds one external forecaster call.
const forecastTimeout = 2 * time.Second

type Engine struct {
	store      Store
	forecaster Forecaster
	locks      *core.KeyedMutex
	log        zerolog.Logger
	today      func() core.Date
}

// NewEngine builds the inventory engine. A nil forecaster means
// LinearTrend serves directly, with no external call to fall back from.
func NewEngine(store Store, forecaster Forecaster, log zerolog.Logger) *Engine {
	if forecaster == nil {
		forecaster = LinearTrend
	}
	return &Engine{
		store:      store,
		forecaster: forecaster,
		locks:      core.NewKeyedMutex(),
		log:        log.With().Str("component", "inventory").Logger(),
		today:      core.Today,
	}
}

// WithToday overrides the engine's calendar. Test hook.
func (e *Engine) WithToday(today func() core.Date) *Engine {
	e.today = today
	return e
}

// =============================================================================
// MUTATIONS
// =============================================================================

// RecordUsage consumes stock and extends the item's usage series.
func (e *Engine) RecordUsage(itemID string, used int) (Item, error) {
	if used <= 0 {
		return Item{}, fmt.Errorf("usage must be positive, got %d: %w", used, core.ErrInvalidInput)
	}

	unlock := e.locks.Lock(core.OwnerID(itemID))
	defer unlock()

	item, err := e.store.RecordUsage(itemID, used)
	if err != nil {
		return Item{}, err
	}
	if item.LowStock() {
		e.log.Warn().
			Str("item", item.ID).
			Int("quantity", item.Quantity).
			Int("threshold", item.ReorderThreshold).
			Msg("item fell below reorder threshold")
	}
	return item, nil
}

// UpdateStock sets the absolute quantity, typically after a delivery.
func (e *Engine) UpdateStock(itemID string, quantity int) (Item, error) {
	if quantity < 0 {
		return Item{}, fmt.Errorf("quantity must not be negative, got %d: %w", quantity, core.ErrInvalidInput)
	}

	unlock := e.locks.Lock(core.OwnerID(itemID))
	defer unlock()

	if err := e.store.SetQuantity(itemID, quantity); err != nil {
		return Item{}, err
	}
	item, _ := e.store.Item(itemID)
	return item, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// LowStock lists items below their reorder threshold, in registration
// order.
func (e *Engine) LowStock() []Item {
	var out []Item
	for _, item := range e.store.Items() {
		if item.LowStock() {
			out = append(out, item)
		}
	}
	return out
}

// ExpiringSoon lists items expiring within the given number of days.
func (e *Engine) ExpiringSoon(withinDays int) []Item {
	cutoff := e.today().AddDays(withinDays)
	var out []Item
	for _, item := range e.store.Items() {
		if !item.ExpiryDate.After(cutoff) {
			out = append(out, item)
		}
	}
	return out
}

// =============================================================================
// REORDER PLANNING
// =============================================================================

// ReorderSuggestion projects one item's stock one period ahead.
type ReorderSuggestion struct {
	ItemID             string `json:"item_id"`
	Name               string `json:"name"`
	CurrentQuantity    int    `json:"current_quantity"`
	PredictedUsage     int    `json:"predicted_next_week_usage"`
	ProjectedRemaining int    `json:"projected_remaining"`
	ReorderThreshold   int    `json:"reorder_threshold"`
	SuggestedQuantity  int    `json:"suggested_reorder_quantity"`
}

// ReorderSuggestions forecasts next-period usage per item and suggests
// a reorder wherever the projected remaining stock falls below the
// threshold. Items with fewer than two usage points are skipped. A
// failing external forecaster degrades to LinearTrend per item.
func (e *Engine) ReorderSuggestions(ctx context.Context) ([]ReorderSuggestion, error) {
	var suggestions []ReorderSuggestion
	for _, item := range e.store.Items() {
		if len(item.UsageHistory) < minHistoryPoints {
			continue
		}

		predicted, err := e.forecast(ctx, item)
		if err != nil {
			return nil, err
		}

		projected := item.Quantity - predicted
		if projected >= item.ReorderThreshold {
			continue
		}
		amount := item.ReorderThreshold + predicted - item.Quantity
		if amount < 0 {
			amount = 0
		}
		suggestions = append(suggestions, ReorderSuggestion{
			ItemID:             item.ID,
			Name:               item.Name,
			CurrentQuantity:    item.Quantity,
			PredictedUsage:     predicted,
			ProjectedRemaining: projected,
			ReorderThreshold:   item.ReorderThreshold,
			SuggestedQuantity:  amount,
		})
	}
	return suggestions, nil
}

// forecast calls the external forecaster under a bounded context and
// falls back to the in-process trend on failure.
func (e *Engine) forecast(ctx context.Context, item Item) (int, error) {
	bounded, cancel := context.WithTimeout(ctx, forecastTimeout)
	defer cancel()

	predicted, err := e.forecaster(bounded, item.UsageHistory)
	if err == nil {
		if predicted < 0 {
			predicted = 0
		}
		return predicted, nil
	}

	metrics.ForecastFallbacksTotal.Inc()
	e.log.Warn().Err(err).
		Str("item", item.ID).
		Msg("external forecaster failed, using linear trend")

	predicted, fallbackErr := LinearTrend(ctx, item.UsageHistory)
	if fallbackErr != nil {
		return 0, fmt.Errorf("forecast for %s: %w", item.ID, core.ErrTransient)
	}
	return predicted, nil
}
