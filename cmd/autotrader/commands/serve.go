package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/a772616239/AutoTrader-sub001/internal/api"
	"github.com/a772616239/AutoTrader-sub001/internal/api/handlers"
	"github.com/a772616239/AutoTrader-sub001/internal/engine"
	"github.com/a772616239/AutoTrader-sub001/internal/marketdata"
	"github.com/a772616239/AutoTrader-sub001/internal/scheduler"
	"github.com/a772616239/AutoTrader-sub001/internal/scheduler/jobs"
	"github.com/a772616239/AutoTrader-sub001/internal/screener"
	"github.com/a772616239/AutoTrader-sub001/internal/storage"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/database"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"api"},
	Short:   "Run the full trading service",
	Long: `Starts the complete service: the scheduled trading cycle, the
screening job, the cooldown sweep, and the HTTP status API.

Endpoints:
  GET  /health                      - Health check
  GET  /metrics                     - Prometheus metrics
  GET  /api/positions               - Open positions per strategy
  GET  /api/balance                 - Account balance
  GET  /api/signals/recent          - Recently persisted signals
  GET  /api/screeners               - Screener list and stats
  POST /api/screeners/{name}/run    - Run one screener

Example:
  go run ./cmd/autotrader serve
  go run ./cmd/autotrader serve --port 8090`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "HTTP port (overrides PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing service")

	components, err := buildStack(cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	eng, err := engine.New(cfg, components.provider, components.broker,
		components.classifier, log, components.strategies...)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	manager, err := screener.NewDefaultManager(cfg, components.provider, log)
	if err != nil {
		return fmt.Errorf("build screener manager: %w", err)
	}

	// Optional persistence
	var signalRepo *storage.SignalRepository
	var screenRepo *storage.ScreenRepository
	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Database unavailable, persistence disabled")
		} else {
			defer db.Close()
			if err := storage.EnsureSchema(cmd.Context(), db.Pool); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			signalRepo = storage.NewSignalRepository(db.Pool)
			screenRepo = storage.NewScreenRepository(db.Pool)
			if cfg.Trading.RecordSignals {
				eng.WithRecorder(signalRepo)
			}
		}
	}

	// Optional realtime quote stream
	if cfg.MarketData.StreamURL != "" {
		stream := marketdata.NewQuoteStream(cfg.MarketData.StreamURL, components.quotes, log)
		if err := stream.Start(cmd.Context()); err != nil {
			log.WithError(err).Warn("Quote stream unavailable")
		} else {
			defer stream.Stop()
			if err := stream.Subscribe(cfg.Trading.Universe...); err != nil {
				log.WithError(err).Warn("Quote subscription failed")
			}
		}
	}

	// Scheduler
	sched := scheduler.New(log)

	if len(cfg.Trading.Universe) > 0 {
		if err := sched.AddJob(jobs.NewTradingCycleJob(eng, "", log)); err != nil {
			return err
		}
	} else {
		log.Warn("Trading universe is empty, trading cycle not scheduled")
	}

	screeningJob := jobs.NewScreeningJob(manager, "", log)
	if cfg.Screener.ExportDir != "" {
		screeningJob.WithExporter(screener.NewExporter(cfg.Screener.ExportDir, log), cfg.Screener.ExportFormat)
	}
	if screenRepo != nil {
		screeningJob.WithRepository(screenRepo)
	}
	if err := sched.AddJob(screeningJob); err != nil {
		return err
	}

	purgers := make([]jobs.CooldownPurger, 0, len(components.strategies))
	for _, strat := range components.strategies {
		if purger, ok := strat.(jobs.CooldownPurger); ok {
			purgers = append(purgers, purger)
		}
	}
	if err := sched.AddJob(jobs.NewCooldownPurgeJob(log, purgers...)); err != nil {
		return err
	}

	sched.Start()
	defer sched.Stop()

	// HTTP API
	var signals handlers.SignalReader
	if signalRepo != nil {
		signals = signalRepo
	}
	trading := handlers.NewTradingHandler(components.strategies, components.broker, signals, log)
	screening := handlers.NewScreeningHandler(manager, log)
	router := api.NewRouter(trading, screening, cfg.MetricsEnabled, log)
	server := api.New(cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("Service started")
	fmt.Printf("Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Service stopped")
	return nil
}
