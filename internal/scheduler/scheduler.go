package scheduler

import (
	"fmt"
	"time"

	"hoppscotch-backup/internal/logger"

	"github.com/robfig/cron/v3"
)

// nightlyPruneSpec runs retention pruning at 04:00 daily in scheduled
// mode.
const nightlyPruneSpec = "0 4 * * *"

// Scheduler runs the backup pipeline on a cron expression in daemon
// mode. Overlapping runs are suppressed: the pipeline owns the
// repository working tree exclusively while it runs.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a Scheduler with the given backup schedule. prune may be
// nil when retention is disabled; otherwise it runs nightly.
func New(schedule string, backup func(), prune func()) (*Scheduler, error) {
	c := cron.New(
		cron.WithChain(
			cron.SkipIfStillRunning(logger.NewCronAdapter(logger.Log.Named("cron-skip"))),
		),
		cron.WithLogger(logger.NewCronAdapter(logger.Log.Named("cron"))),
	)

	if _, err := c.AddFunc(schedule, backup); err != nil {
		return nil, fmt.Errorf("invalid backup schedule %q: %w", schedule, err)
	}
	if prune != nil {
		if _, err := c.AddFunc(nightlyPruneSpec, prune); err != nil {
			return nil, fmt.Errorf("failed to schedule nightly pruning: %w", err)
		}
	}

	return &Scheduler{cron: c}, nil
}

// Start begins executing scheduled runs.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Log.Info("Scheduler started")
}

// Stop waits for a running job to finish, up to a timeout.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		logger.Log.Info("Scheduler stopped")
	case <-time.After(10 * time.Second):
		logger.Log.Warn("Scheduler stop timed out, a run may still be in flight")
	}
}
