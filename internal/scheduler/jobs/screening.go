package jobs

import (
	"context"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/screener"
	"github.com/a772616239/AutoTrader-sub001/internal/storage"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// ScreeningJob runs every configured screener, persists the results,
// and exports them to disk. Export and persistence are both optional.
type ScreeningJob struct {
	manager  *screener.Manager
	exporter *screener.Exporter
	repo     *storage.ScreenRepository
	format   string
	schedule string
	logger   *logger.Logger
}

// NewScreeningJob creates the screening job. An empty schedule
// defaults to weekday pre-market.
func NewScreeningJob(manager *screener.Manager, schedule string, log *logger.Logger) *ScreeningJob {
	if schedule == "" {
		schedule = "0 30 8 * * 1-5"
	}
	return &ScreeningJob{
		manager:  manager,
		format:   "csv",
		schedule: schedule,
		logger:   log,
	}
}

// WithExporter attaches a result exporter. Returns the job for
// chaining.
func (j *ScreeningJob) WithExporter(exporter *screener.Exporter, format string) *ScreeningJob {
	j.exporter = exporter
	if format != "" {
		j.format = format
	}
	return j
}

// WithRepository attaches a screen result store.
func (j *ScreeningJob) WithRepository(repo *storage.ScreenRepository) *ScreeningJob {
	j.repo = repo
	return j
}

// Name returns the job name.
func (j *ScreeningJob) Name() string {
	return "screening"
}

// Schedule returns the cron schedule.
func (j *ScreeningJob) Schedule() string {
	return j.schedule
}

// Run executes all screeners. A failing screener is logged and
// skipped; the job itself only fails on persistence errors.
func (j *ScreeningJob) Run(ctx context.Context) error {
	for _, name := range j.manager.AvailableScreeners() {
		results := j.manager.RunScreener(ctx, name, nil)
		if len(results) == 0 {
			j.logger.WithField("screener", name).Info("Screener returned no results")
			continue
		}

		j.logger.WithFields(map[string]interface{}{
			"screener": name,
			"results":  len(results),
			"top":      results[0].Symbol,
		}).Info("Screener run complete")

		if j.repo != nil {
			if _, err := j.repo.SaveRun(ctx, name, results); err != nil {
				return err
			}
		}

		if j.exporter != nil {
			j.export(name, results)
		}
	}
	return nil
}

func (j *ScreeningJob) export(name string, results []contracts.ScreenResult) {
	var path string
	var err error

	switch j.format {
	case "json":
		path, err = j.exporter.ExportJSON(name, results)
	default:
		path, err = j.exporter.ExportCSV(name, results)
	}
	if err != nil {
		j.logger.WithError(err).WithField("screener", name).Warn("Result export failed")
		return
	}
	j.logger.WithField("path", path).Debug("Results exported")
}
