// Package stats implements the counter core: the per-(chat,user) message
// counters, the day-rollover state machine, and the TTL-bounded ranked
// projection cache in front of the store.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chat-stats-bot/internal/models"
	"github.com/chat-stats-bot/internal/storage"
)

const dateLayout = "2006-01-02"

// Service owns the counter state machine. Every store mutation (Record,
// RolloverAll, Snapshot) runs under a single mutex, so a record read-modify-
// write can never interleave with another write or a rollover. Ranked reads
// run outside the mutex and tolerate TTL-bounded staleness.
type Service struct {
	store       storage.Store
	cache       *rankedCache
	loc         *time.Location
	rankedLimit int
	retryDelay  time.Duration
	logger      zerolog.Logger

	mu sync.Mutex // serializes all counter mutations
}

// NewService creates the counter service.
func NewService(store storage.Store, timezone string, cacheTTL time.Duration, rankedLimit int, logger zerolog.Logger) (*Service, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", timezone, err)
	}

	return &Service{
		store:       store,
		cache:       newRankedCache(cacheTTL),
		loc:         loc,
		rankedLimit: rankedLimit,
		retryDelay:  2 * time.Second,
		logger:      logger.With().Str("component", "stats").Logger(),
	}, nil
}

// Record attributes one message event to the sender's counters.
//
// A new key starts at today=1, total=1. An existing record increments, or
// rolls over first when the event's calendar date (in the configured
// timezone) is strictly later than the record's last update: exactly one
// boundary transition applies no matter how many days actually elapsed, so
// yesterday always reflects the immediately preceding today. Events older
// than the record's last update count as same-day; last_updated never moves
// backwards.
//
// A failed store write drops the event: the error is returned for logging
// but nothing is queued or retried.
func (s *Service) Record(ctx context.Context, ev models.MessageEvent) error {
	if ev.IsAutomated {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.GetCounter(ctx, ev.ChatID, ev.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rec = &models.CounterRecord{
			UserID:      ev.UserID,
			ChatID:      ev.ChatID,
			DisplayName: ev.DisplayName,
			Today:       1,
			Total:       1,
			LastUpdated: ev.Timestamp,
			FirstSeen:   ev.Timestamp,
		}
	case err != nil:
		s.logger.Error().Err(err).
			Int64("user_id", ev.UserID).
			Int64("chat_id", ev.ChatID).
			Msg("Dropping event, store read failed")
		return err
	default:
		s.applyEvent(rec, ev)
	}

	if err := s.store.PutCounter(ctx, rec); err != nil {
		s.logger.Error().Err(err).
			Int64("user_id", ev.UserID).
			Int64("chat_id", ev.ChatID).
			Msg("Dropping event, store write failed")
		return err
	}

	s.cache.invalidate(ev.ChatID)
	return nil
}

// applyEvent advances an existing record by one message.
func (s *Service) applyEvent(rec *models.CounterRecord, ev models.MessageEvent) {
	rec.DisplayName = ev.DisplayName
	rec.Total++

	// Clock skew: an event timestamped before the last update is treated as
	// same-day, and last_updated stays where it is.
	if !rec.LastUpdated.IsZero() && ev.Timestamp.Before(rec.LastUpdated) {
		rec.Today++
		return
	}

	// A record missing its last update (legacy row) counts as same-day.
	if rec.LastUpdated.IsZero() {
		rec.Today++
		rec.LastUpdated = ev.Timestamp
		return
	}

	lastDate := rec.LastUpdated.In(s.loc).Format(dateLayout)
	eventDate := ev.Timestamp.In(s.loc).Format(dateLayout)
	if eventDate > lastDate {
		// Day boundary crossed since the last event. Multiple missed
		// midnights collapse into this single transition.
		rec.Yesterday = rec.Today
		rec.Today = 1
	} else {
		rec.Today++
	}
	rec.LastUpdated = ev.Timestamp
}

// RolloverAll performs the midnight boundary transition on every record:
// aggregates today's counters, persists the daily snapshot for the effective
// date, then resets today into yesterday. On a store failure it retries once
// after a short delay; either the whole rollover commits or none of it does.
func (s *Service) RolloverAll(ctx context.Context, now time.Time) (*models.RolloverSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.rolloverLocked(ctx, now)
	if err != nil && errors.Is(err, storage.ErrUnavailable) {
		s.logger.Warn().Err(err).Msg("Rollover failed, retrying once")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.retryDelay):
		}
		summary, err = s.rolloverLocked(ctx, now)
	}
	if err != nil {
		return nil, err
	}

	s.cache.clear()

	s.logger.Info().
		Str("date", summary.Date).
		Int64("total_messages", summary.TotalMessages).
		Int64("active_users", summary.ActiveUsers).
		Int64("top_user_id", summary.TopUserID).
		Msg("Rollover completed")

	return summary, nil
}

func (s *Service) rolloverLocked(ctx context.Context, now time.Time) (*models.RolloverSummary, error) {
	date := now.In(s.loc).Format(dateLayout)

	total, active, top, err := s.store.DailyTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollover aggregate failed: %w", err)
	}

	summary := &models.RolloverSummary{
		Date:          date,
		TotalMessages: total,
		ActiveUsers:   active,
	}
	snap := &models.DailySnapshot{
		Date:          date,
		TotalMessages: total,
		ActiveUsers:   active,
	}
	if top != nil {
		summary.TopUserID = top.UserID
		summary.TopUserName = top.DisplayName
		summary.TopUserCount = top.Today
		snap.TopUserID = top.UserID
		snap.TopUserCount = top.Today
	}

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("rollover snapshot failed: %w", err)
	}
	if err := s.store.ResetAll(ctx, now); err != nil {
		return nil, fmt.Errorf("rollover reset failed: %w", err)
	}

	return summary, nil
}

// Snapshot persists the current day's aggregate without touching the
// counters. The scheduler runs it hourly so a crash between rollovers loses
// at most an hour of the daily_stats row.
func (s *Service) Snapshot(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total, active, top, err := s.store.DailyTotals(ctx)
	if err != nil {
		return fmt.Errorf("snapshot aggregate failed: %w", err)
	}
	if total == 0 {
		return nil
	}

	snap := &models.DailySnapshot{
		Date:          now.In(s.loc).Format(dateLayout),
		TotalMessages: total,
		ActiveUsers:   active,
	}
	if top != nil {
		snap.TopUserID = top.UserID
		snap.TopUserCount = top.Today
	}

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("snapshot save failed: %w", err)
	}

	s.logger.Debug().
		Str("date", snap.Date).
		Int64("total_messages", total).
		Int64("active_users", active).
		Msg("Hourly snapshot saved")

	return nil
}

// GetRecord returns the counters for one user in one chat.
// storage.ErrNotFound means the user has no history yet.
func (s *Service) GetRecord(ctx context.Context, chatID, userID int64) (*models.CounterRecord, error) {
	return s.store.GetCounter(ctx, chatID, userID)
}

// Ranked returns the ranked member list for a chat, serving from the cache
// when the entry is younger than TTL. forceRefresh bypasses the cache. An
// empty store yields an empty list, not an error.
func (s *Service) Ranked(ctx context.Context, chatID int64, forceRefresh bool) ([]models.CounterRecord, error) {
	now := time.Now()

	if !forceRefresh {
		if members, ok := s.cache.get(chatID, now); ok {
			return members, nil
		}
	}

	members, err := s.store.ListActive(ctx, chatID, s.rankedLimit)
	if err != nil {
		return nil, err
	}

	s.cache.put(chatID, members, now)
	return members, nil
}

// TopYesterday returns yesterday's top members for a chat, straight from
// the store.
func (s *Service) TopYesterday(ctx context.Context, chatID int64, limit int) ([]models.CounterRecord, error) {
	return s.store.ListYesterday(ctx, chatID, limit)
}

// Weekly returns the daily snapshots for the seven days ending at now.
func (s *Service) Weekly(ctx context.Context, now time.Time) ([]models.DailySnapshot, error) {
	end := now.In(s.loc)
	start := end.AddDate(0, 0, -6)
	return s.store.ListSnapshots(ctx, start.Format(dateLayout), end.Format(dateLayout))
}

// CacheSize reports the number of live ranked cache entries.
func (s *Service) CacheSize() int {
	return s.cache.size()
}

// Location returns the timezone all day boundaries are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}
