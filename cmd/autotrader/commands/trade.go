package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/a772616239/AutoTrader-sub001/internal/engine"
	"github.com/a772616239/AutoTrader-sub001/internal/storage"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/database"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// tradeCmd represents the trade command
var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Run the trading cycle over the configured universe",
	Long: `Runs the trading cycle: fetch bars, compute indicators, classify
the market regime, generate entry and exit signals, and route orders
to the configured broker.

By default the cycle repeats on an interval until interrupted.

Example:
  go run ./cmd/autotrader trade --once
  go run ./cmd/autotrader trade --interval 1m`,
	RunE: runTrade,
}

var (
	tradeOnce     bool
	tradeInterval time.Duration
)

func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().BoolVar(&tradeOnce, "once", false, "run a single cycle and exit")
	tradeCmd.Flags().DurationVar(&tradeInterval, "interval", time.Minute, "delay between cycles")
}

func runTrade(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if len(cfg.Trading.Universe) == 0 {
		return fmt.Errorf("trading universe is empty, set TRADING_UNIVERSE")
	}

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

	if cfg.Trading.RecordSignals && cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Database unavailable, signals will not be persisted")
		} else {
			defer db.Close()
			if err := storage.EnsureSchema(cmd.Context(), db.Pool); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
			eng.WithRecorder(storage.NewSignalRepository(db.Pool))
		}
	}

	if tradeOnce {
		result, err := eng.RunCycle(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Cycle complete: %d scanned, %d signals, %d filled\n",
			result.SymbolsScanned, result.SignalsEmitted, result.OrdersFilled)
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(tradeInterval)
	defer ticker.Stop()

	log.WithField("interval", tradeInterval.String()).Info("Trading loop started")

	for {
		if _, err := eng.RunCycle(ctx); err != nil {
			log.WithError(err).Error("Trading cycle failed")
		}

		select {
		case <-quit:
			log.Info("Trading loop stopped")
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
