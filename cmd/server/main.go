/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the hospital allocation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment, then flags
  2. Open the SQLite archive and start the write-behind recorder
  3. Build the in-memory stores and engines
  4. Configure HTTP router and maintenance sweeper
  5. Start server with graceful shutdown

CONFIGURATION:
  Environment variables (flags override PORT and DB_PATH):
    PORT             HTTP server port (default: 8080)
    DB_PATH          SQLite archive path (default: hospital.db,
                     ":memory:" for in-memory)
    LOG_LEVEL        zerolog level (default: info)
    CACHE_SIZE       availability cache entries (default: 512)
    ARCHIVE_QUEUE    recorder queue size (default: 256)
    SWEEP_INTERVAL   maintenance sweep interval (default: 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper, drain the recorder queue
  4. Close the archive
  5. Exit

EXAMPLES:
  # Run with file archive
  ./server -db="./data/hospital.db"

  # Run with in-memory archive
  ./server -db=":memory:"

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Archive implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/rs/zerolog"

	"github.com/warp/hospital-engine/api"
	"github.com/warp/hospital-engine/finance"
	"github.com/warp/hospital-engine/inventory"
	"github.com/warp/hospital-engine/scheduling"
	"github.com/warp/hospital-engine/store/sqlite"
	"github.com/warp/hospital-engine/ward"
)

// Config carries every tunable the server reads from the environment.
type Config struct {
	Port          int           `env:"PORT" envDefault:"8080"`
	DBPath        string        `env:"DB_PATH" envDefault:"hospital.db"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info"`
	CacheSize     int           `env:"CACHE_SIZE" envDefault:"512"`
	ArchiveQueue  int           `env:"ARCHIVE_QUEUE" envDefault:"256"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment for the two most common knobs.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite archive path")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	// Archive and write-behind recorder
	archive, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open archive")
	}
	defer archive.Close()

	recorder := sqlite.NewRecorder(archive, cfg.ArchiveQueue, log)
	defer recorder.Close()

	// Engines
	schedStore := scheduling.NewMemoryStore()
	availability := scheduling.NewAvailabilityEngine(schedStore, cfg.CacheSize)
	allocation := scheduling.NewAllocationEngine(schedStore, availability, log)

	wardStore := ward.NewMemoryStore()
	wards := ward.NewEngine(wardStore, log)

	financeStore := finance.NewMemoryStore()
	ledger := finance.NewLedger(financeStore, log)

	stockStore := inventory.NewMemoryStore()
	stock := inventory.NewEngine(stockStore, nil, log)

	deps := api.Dependencies{
		Scheduling:   schedStore,
		Availability: availability,
		Allocation:   allocation,
		Wards:        wards,
		WardStore:    wardStore,
		Ledger:       ledger,
		Finance:      financeStore,
		Inventory:    stock,
		Stock:        stockStore,
		Recorder:     recorder,
	}

	handler := api.NewHandler(deps, log)
	router := api.NewRouter(handler, log)

	sweeper := api.NewMaintenanceSweeper(deps, log)
	sweeper.CheckInterval = cfg.SweepInterval
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("archive", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
