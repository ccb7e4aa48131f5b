// Package jobs provides background job scheduling for the offer pipeline.
// It uses robfig/cron for cron-based job scheduling.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/straye-as/offer-pipeline-api/internal/metrics"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context) error

// Scheduler manages background jobs using cron scheduling.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	jobs   map[string]cron.EntryID
}

// NewScheduler creates a new job scheduler with the given logger.
func NewScheduler(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler. Jobs added before this call will begin running.
func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping job scheduler")
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job scheduler did not stop: %w", ctx.Err())
	}
}

// AddJob adds a job with the given name and cron expression.
// The cronExpr accepts an optional seconds field.
// Examples:
//   - "0 15 2 * * *" - At 02:15:00 every day (with seconds field)
//   - "15 2 * * *"   - At 02:15 every day (standard 5-field format)
//   - "@daily"       - At midnight
//   - "@every 1h"    - Every hour
func (s *Scheduler) AddJob(name string, cronExpr string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.RunNow(name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.Info("added scheduled job",
		zap.String("job_name", name),
		zap.String("cron_expr", cronExpr))

	return nil
}

// RunNow runs job once on the calling goroutine and records the outcome
func (s *Scheduler) RunNow(name string, job Job) error {
	start := time.Now()
	s.logger.Info("running scheduled job", zap.String("job_name", name))

	err := job(s.ctx)
	if err != nil {
		metrics.JobRuns.WithLabelValues(name, "failure").Inc()
		s.logger.Error("scheduled job failed",
			zap.String("job_name", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return err
	}

	metrics.JobRuns.WithLabelValues(name, "success").Inc()
	s.logger.Info("completed scheduled job",
		zap.String("job_name", name),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// RemoveJob removes a job by name.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(entryID)
	delete(s.jobs, name)

	s.logger.Info("removed scheduled job",
		zap.String("job_name", name))

	return nil
}

// GetJobNames returns the names of all registered jobs.
func (s *Scheduler) GetJobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}
