// Package storage provides the durable backends for counter records and
// daily snapshots. Two tables back the system: messages, keyed by
// (chat_id, user_id), and daily_stats, keyed by calendar date.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chat-stats-bot/internal/models"
)

var (
	// ErrNotFound is returned when the queried key has no record.
	// It is a valid result variant, not a failure.
	ErrNotFound = errors.New("storage: record not found")

	// ErrUnavailable is returned when the underlying persistence is
	// unreachable or locked. Backends wrap low-level errors with it so
	// callers can test with errors.Is.
	ErrUnavailable = errors.New("storage: store unavailable")
)

// Store is the persistence contract the counter service depends on.
// All implementations must be safe for concurrent use; serialization of
// read-modify-write cycles is the caller's responsibility.
type Store interface {
	// GetCounter returns the record for (chatID, userID) or ErrNotFound.
	GetCounter(ctx context.Context, chatID, userID int64) (*models.CounterRecord, error)

	// PutCounter inserts or replaces the record for its (chat, user) key.
	PutCounter(ctx context.Context, rec *models.CounterRecord) error

	// ListActive returns records for a chat with today > 0 or yesterday > 0,
	// ordered by (today desc, total desc, user_id asc), truncated to limit.
	ListActive(ctx context.Context, chatID int64, limit int) ([]models.CounterRecord, error)

	// ListYesterday returns records for a chat with yesterday > 0, ordered
	// by (yesterday desc, user_id asc), truncated to limit.
	ListYesterday(ctx context.Context, chatID int64, limit int) ([]models.CounterRecord, error)

	// DailyTotals aggregates today's counters across every chat: the sum of
	// today, the number of records with today > 0, and the record holding
	// the maximum today (ties broken by lowest user_id). top is nil when no
	// record is active.
	DailyTotals(ctx context.Context) (total, active int64, top *models.CounterRecord, err error)

	// ResetAll applies the rollover write to every record:
	// yesterday = today, today = 0, last_updated = now.
	ResetAll(ctx context.Context, now time.Time) error

	// SaveSnapshot inserts or replaces the daily_stats row for snap.Date.
	SaveSnapshot(ctx context.Context, snap *models.DailySnapshot) error

	// ListSnapshots returns snapshot rows with from <= date <= to,
	// newest first. Dates are YYYY-MM-DD strings.
	ListSnapshots(ctx context.Context, from, to string) ([]models.DailySnapshot, error)

	// Close releases the backend.
	Close() error
}
