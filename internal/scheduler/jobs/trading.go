package jobs

import (
	"context"

	"github.com/a772616239/AutoTrader-sub001/internal/engine"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// TradingCycleJob runs one trading cycle per tick.
type TradingCycleJob struct {
	engine   *engine.Engine
	schedule string
	logger   *logger.Logger
}

// NewTradingCycleJob creates the trading cycle job. An empty schedule
// defaults to every minute.
func NewTradingCycleJob(eng *engine.Engine, schedule string, log *logger.Logger) *TradingCycleJob {
	if schedule == "" {
		schedule = "0 * * * * *"
	}
	return &TradingCycleJob{
		engine:   eng,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name.
func (j *TradingCycleJob) Name() string {
	return "trading_cycle"
}

// Schedule returns the cron schedule.
func (j *TradingCycleJob) Schedule() string {
	return j.schedule
}

// Run executes one trading cycle.
func (j *TradingCycleJob) Run(ctx context.Context) error {
	result, err := j.engine.RunCycle(ctx)
	if err != nil {
		return err
	}

	if result.Aborted {
		j.logger.WithField("data_failures", result.DataFailures).
			Warn("Trading cycle aborted early")
	}
	return nil
}
