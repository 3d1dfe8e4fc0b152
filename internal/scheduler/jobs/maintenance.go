package jobs

import (
	"context"
	"time"

	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// CooldownPurger drops expired signal cooldown entries.
type CooldownPurger interface {
	Name() string
	PurgeCooldowns(now time.Time)
}

// CooldownPurgeJob sweeps expired cooldown entries from every
// strategy.
type CooldownPurgeJob struct {
	purgers []CooldownPurger
	logger  *logger.Logger
}

// NewCooldownPurgeJob creates the cooldown purge job.
func NewCooldownPurgeJob(log *logger.Logger, purgers ...CooldownPurger) *CooldownPurgeJob {
	return &CooldownPurgeJob{
		purgers: purgers,
		logger:  log,
	}
}

// Name returns the job name.
func (j *CooldownPurgeJob) Name() string {
	return "cooldown_purge"
}

// Schedule returns the cron schedule (every 15 minutes).
func (j *CooldownPurgeJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run purges expired cooldowns from each strategy.
func (j *CooldownPurgeJob) Run(ctx context.Context) error {
	now := time.Now()
	for _, purger := range j.purgers {
		purger.PurgeCooldowns(now)
		j.logger.WithField("strategy", purger.Name()).Debug("Cooldowns purged")
	}
	return nil
}
