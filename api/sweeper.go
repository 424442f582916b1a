/*
sweeper.go - Periodic maintenance sweep

PURPOSE:
  Periodically checks for conditions that need operator attention and
  surfaces them through logs and metrics:
  - Pending payments past their due date
  - Stock items below their reorder threshold, with the forecast-driven
    reorder amount

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Read-only: the sweep never mutates engine state, it only reports
  - One sweep runs at a time; a slow sweep skips ticks rather than piling up

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewMaintenanceSweeper(deps, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: ReorderSuggestions endpoint (on-demand equivalent)
  - inventory/engine.go: forecasting the sweep reports on
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/hospital-engine/core"
)

// MaintenanceSweeper reports overdue payments and low stock on a timer.
type MaintenanceSweeper struct {
	CheckInterval time.Duration
	Enabled       bool

	deps  Dependencies
	log   zerolog.Logger
	today func() core.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMaintenanceSweeper creates a new sweeper around the same engine set
// the handlers use.
func NewMaintenanceSweeper(deps Dependencies, log zerolog.Logger) *MaintenanceSweeper {
	return &MaintenanceSweeper{
		CheckInterval: time.Hour,
		Enabled:       true,
		deps:          deps,
		log:           log.With().Str("component", "sweeper").Logger(),
		today:         core.Today,
		stop:          make(chan struct{}),
	}
}

// WithToday overrides the calendar for tests.
func (s *MaintenanceSweeper) WithToday(today func() core.Date) *MaintenanceSweeper {
	s.today = today
	return s
}

// Start begins the sweep loop.
func (s *MaintenanceSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info().Msg("sweeper disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.log.Info().Dur("interval", s.CheckInterval).Msg("sweeper started")
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *MaintenanceSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil

	s.log.Info().Msg("sweeper stopped")
}

func (s *MaintenanceSweeper) run() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep runs one maintenance pass. Exported so operators can trigger it
// out of band and tests can run it without the ticker.
func (s *MaintenanceSweeper) Sweep(ctx context.Context) {
	s.sweepPayments()
	s.sweepStock(ctx)
}

func (s *MaintenanceSweeper) sweepPayments() {
	today := s.today()
	for _, p := range s.deps.Finance.Payments() {
		if p.Status != core.PaymentPending || !p.DueDate.Before(today) {
			continue
		}
		s.log.Warn().
			Str("payment_id", p.ID).
			Str("recipient", p.Recipient).
			Str("amount", p.Amount.String()).
			Str("due_date", p.DueDate.String()).
			Msg("payment overdue")
	}
}

func (s *MaintenanceSweeper) sweepStock(ctx context.Context) {
	for _, item := range s.deps.Inventory.LowStock() {
		s.log.Warn().
			Str("item_id", item.ID).
			Int("quantity", item.Quantity).
			Int("threshold", item.ReorderThreshold).
			Msg("stock below reorder threshold")
	}

	suggestions, err := s.deps.Inventory.ReorderSuggestions(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("reorder forecast failed")
		return
	}
	for _, sg := range suggestions {
		s.log.Info().
			Str("item_id", sg.ItemID).
			Int("predicted_usage", sg.PredictedUsage).
			Int("suggested_quantity", sg.SuggestedQuantity).
			Msg("reorder suggested")
	}
}
