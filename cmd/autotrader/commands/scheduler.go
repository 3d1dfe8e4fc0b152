package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/a772616239/AutoTrader-sub001/internal/engine"
	"github.com/a772616239/AutoTrader-sub001/internal/scheduler"
	"github.com/a772616239/AutoTrader-sub001/internal/scheduler/jobs"
	"github.com/a772616239/AutoTrader-sub001/internal/screener"
	"github.com/a772616239/AutoTrader-sub001/internal/storage"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/database"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the job scheduler without the HTTP API",
	Long: `Starts the cron scheduler with the standard jobs and no HTTP
surface.

Registered jobs:
- trading_cycle: every minute (entry/exit decisions and orders)
- screening: weekday pre-market (ranked screen results)
- cooldown_purge: every 15 minutes (expired cooldown sweep)

Example:
  go run ./cmd/autotrader scheduler start
  go run ./cmd/autotrader scheduler run screening`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func buildScheduler(cmd *cobra.Command, cfg *config.Config, log *logger.Logger) (*scheduler.Scheduler, func(), error) {
	components, err := buildStack(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := components.Close

	eng, err := engine.New(cfg, components.provider, components.broker,
		components.classifier, log, components.strategies...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}

	manager, err := screener.NewDefaultManager(cfg, components.provider, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build screener manager: %w", err)
	}

	screeningJob := jobs.NewScreeningJob(manager, "", log)
	if cfg.Screener.ExportDir != "" {
		screeningJob.WithExporter(screener.NewExporter(cfg.Screener.ExportDir, log), cfg.Screener.ExportFormat)
	}

	if cfg.Database.URL != "" {
		db, err := database.New(cfg)
		if err != nil {
			log.WithError(err).Warn("Database unavailable, persistence disabled")
		} else {
			prev := cleanup
			cleanup = func() { db.Close(); prev() }
			if err := storage.EnsureSchema(cmd.Context(), db.Pool); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("ensure schema: %w", err)
			}
			screeningJob.WithRepository(storage.NewScreenRepository(db.Pool))
			if cfg.Trading.RecordSignals {
				eng.WithRecorder(storage.NewSignalRepository(db.Pool))
			}
		}
	}

	sched := scheduler.New(log)

	if len(cfg.Trading.Universe) > 0 {
		if err := sched.AddJob(jobs.NewTradingCycleJob(eng, "", log)); err != nil {
			cleanup()
			return nil, nil, err
		}
	} else {
		log.Warn("Trading universe is empty, trading cycle not scheduled")
	}

	if err := sched.AddJob(screeningJob); err != nil {
		cleanup()
		return nil, nil, err
	}

	purgers := make([]jobs.CooldownPurger, 0, len(components.strategies))
	for _, strat := range components.strategies {
		if purger, ok := strat.(jobs.CooldownPurger); ok {
			purgers = append(purgers, purger)
		}
	}
	if err := sched.AddJob(jobs.NewCooldownPurgeJob(log, purgers...)); err != nil {
		cleanup()
		return nil, nil, err
	}

	return sched, cleanup, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	sched, cleanup, err := buildScheduler(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	sched.Start()
	defer sched.Stop()

	fmt.Println("Scheduler running. Jobs:")
	for _, name := range sched.Jobs() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	sched, cleanup, err := buildScheduler(cmd, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	name := args[0]
	if err := sched.RunJob(name); err != nil {
		return err
	}

	// RunJob is asynchronous; poll the history for the outcome.
	fmt.Printf("Running %s...\n", name)
	for {
		time.Sleep(200 * time.Millisecond)
		history, err := sched.History(name)
		if err != nil {
			return err
		}
		if len(history.Results) > 0 {
			last := history.Results[len(history.Results)-1]
			if !last.Success {
				return fmt.Errorf("job %s failed: %s", name, last.Error)
			}
			fmt.Printf("Job %s completed in %s\n", name, last.Duration)
			return nil
		}
	}
}
