// Package scheduler fires the time-triggered counter operations at fixed
// local wall-clock boundaries. The counter core only sees plain callbacks;
// cron wiring stays here.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Jobs are the callbacks the scheduler drives. now is the trigger instant;
// each callback decides what the effective date is.
type Jobs struct {
	// Rollover runs at local midnight.
	Rollover func(ctx context.Context, now time.Time)
	// Report runs just before midnight, at 23:59 local time.
	Report func(ctx context.Context, now time.Time)
	// Snapshot runs at the top of every hour.
	Snapshot func(ctx context.Context, now time.Time)
}

// Scheduler wraps a cron runner pinned to the configured timezone.
// Each entry is single-flight: a tick is skipped while the previous run of
// the same job is still in progress.
type Scheduler struct {
	cron     *cron.Cron
	timezone *time.Location
	jobs     Jobs
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler for the given timezone.
func New(timezone string, jobs Jobs, logger zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		timezone: loc,
		jobs:     jobs,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start registers the three entries and begins ticking. It returns
// immediately; jobs run on the cron runner's goroutines until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	entries := []struct {
		spec string
		name string
		fn   func(ctx context.Context, now time.Time)
	}{
		{"0 0 * * *", "rollover", s.jobs.Rollover},
		{"59 23 * * *", "report", s.jobs.Report},
		{"0 * * * *", "snapshot", s.jobs.Snapshot},
	}

	for _, entry := range entries {
		if entry.fn == nil {
			continue
		}
		entry := entry
		if _, err := s.cron.AddFunc(entry.spec, func() {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Info().Str("job", entry.name).Msg("Running scheduled job")
			entry.fn(s.ctx, time.Now().In(s.timezone))
		}); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", entry.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info().
		Str("timezone", s.timezone.String()).
		Msg("Scheduler started (rollover 00:00, report 23:59, snapshot hourly)")
	return nil
}

// Stop cancels pending ticks and waits for in-flight jobs, bounded by a
// small grace window.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info().Msg("Scheduler stopped")
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Scheduler stop timed out, abandoning in-flight jobs")
	}
}
