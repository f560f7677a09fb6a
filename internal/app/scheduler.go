/**
 * @description
 * Cron scheduler for the engine's batch jobs. The sweep runs at most once
 * per calendar day per deployment; a missed or crashed run is picked up the
 * next day, and re-runs are safe because of the sweep's dedup.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// sweepRunTimeout bounds one whole sweep pass.
const sweepRunTimeout = 10 * time.Minute

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	sweep  *SweepService
	logger *slog.Logger
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(sweep *SweepService, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:   c,
		sweep:  sweep,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start(renewalSchedule string) {
	if _, err := s.cron.AddFunc(renewalSchedule, s.runRenewalSweep); err != nil {
		s.logger.Error("failed to schedule renewal sweep", "schedule", renewalSchedule, "error", err)
	} else {
		s.logger.Info("scheduled renewal sweep", "schedule", renewalSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runRenewalSweep() {
	s.logger.Info("starting renewal sweep job")
	ctx, cancel := context.WithTimeout(context.Background(), sweepRunTimeout)
	defer cancel()

	result := s.sweep.Run(ctx)
	s.logger.Info("renewal sweep job finished", "processed", result.Processed, "notified", result.Notified)
}
