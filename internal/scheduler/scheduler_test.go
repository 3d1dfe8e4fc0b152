package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

type fakeJob struct {
	name     string
	schedule string
	runs     atomic.Int32
	err      error
	done     chan struct{}
}

func newFakeJob(name string) *fakeJob {
	return &fakeJob{
		name:     name,
		schedule: "0 0 0 1 1 *",
		done:     make(chan struct{}, 8),
	}
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(context.Context) error {
	j.runs.Add(1)
	j.done <- struct{}{}
	return j.err
}

func newTestScheduler() *Scheduler {
	s := New(testLogger())
	s.maxRetries = 0
	s.retryDelay = time.Millisecond
	return s
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(newFakeJob("cycle")))
	err := s.AddJob(newFakeJob("cycle"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler()

	job := newFakeJob("broken")
	job.schedule = "not a cron expression"
	assert.Error(t, s.AddJob(job))
}

func TestRunJobImmediate(t *testing.T) {
	s := newTestScheduler()

	job := newFakeJob("cycle")
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("cycle"))

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunJobUnknown(t *testing.T) {
	s := newTestScheduler()
	assert.Error(t, s.RunJob("missing"))
}

func TestJobHistoryRecordsFailures(t *testing.T) {
	s := newTestScheduler()

	job := newFakeJob("flaky")
	job.err = errors.New("boom")
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("flaky"))

	select {
	case <-job.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	// runJob records the result after Run returns
	require.Eventually(t, func() bool {
		history, err := s.History("flaky")
		return err == nil && len(history.Results) == 1
	}, 2*time.Second, 10*time.Millisecond)

	history, err := s.History("flaky")
	require.NoError(t, err)
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, "boom", history.Results[0].Error)
	assert.Equal(t, 0.0, history.SuccessRate())

	stats := s.Stats()
	assert.Equal(t, 1, stats["flaky"].FailureCount)
	assert.NotNil(t, stats["flaky"].LastRun)
}

func TestJobHistoryWindow(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyLimit+20; i++ {
		h.AddResult(JobResult{JobName: "cycle", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.LatestResults(5), 5)
	assert.Len(t, h.LatestResults(1000), historyLimit)
}
