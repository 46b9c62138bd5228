package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/chat-stats-bot/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	chat_id      INTEGER NOT NULL,
	user_id      INTEGER NOT NULL,
	username     TEXT,
	today        INTEGER DEFAULT 0,
	yesterday    INTEGER DEFAULT 0,
	total        INTEGER DEFAULT 0,
	last_updated TEXT,
	first_seen   TEXT,
	PRIMARY KEY (chat_id, user_id)
);

CREATE TABLE IF NOT EXISTS daily_stats (
	date           TEXT PRIMARY KEY,
	total_messages INTEGER DEFAULT 0,
	active_users   INTEGER DEFAULT 0,
	top_user_id    INTEGER,
	top_user_count INTEGER
);
`

// SQLiteStore is the default embedded backend.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database file and applies the schema.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite database initialized")

	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "storage").Str("backend", "sqlite").Logger(),
	}, nil
}

// GetCounter returns the record for (chatID, userID) or ErrNotFound.
func (s *SQLiteStore) GetCounter(ctx context.Context, chatID, userID int64) (*models.CounterRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, username, today, yesterday, total, last_updated, first_seen
		FROM messages WHERE chat_id = ? AND user_id = ?`, chatID, userID)

	rec, err := scanCounter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.unavailable("get_counter", err)
	}
	return rec, nil
}

// PutCounter inserts or replaces the record for its key.
func (s *SQLiteStore) PutCounter(ctx context.Context, rec *models.CounterRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (chat_id, user_id, username, today, yesterday, total, last_updated, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, user_id) DO UPDATE SET
			username = excluded.username,
			today = excluded.today,
			yesterday = excluded.yesterday,
			total = excluded.total,
			last_updated = excluded.last_updated`,
		rec.ChatID, rec.UserID, rec.DisplayName,
		rec.Today, rec.Yesterday, rec.Total,
		encodeTime(rec.LastUpdated), encodeTime(rec.FirstSeen))
	if err != nil {
		return s.unavailable("put_counter", err)
	}
	return nil
}

// ListActive returns the ranked projection source rows for one chat.
func (s *SQLiteStore) ListActive(ctx context.Context, chatID int64, limit int) ([]models.CounterRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, user_id, username, today, yesterday, total, last_updated, first_seen
		FROM messages
		WHERE chat_id = ? AND (today > 0 OR yesterday > 0)
		ORDER BY today DESC, total DESC, user_id ASC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, s.unavailable("list_active", err)
	}
	return collectCounters(rows)
}

// ListYesterday returns yesterday's top rows for one chat.
func (s *SQLiteStore) ListYesterday(ctx context.Context, chatID int64, limit int) ([]models.CounterRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, user_id, username, today, yesterday, total, last_updated, first_seen
		FROM messages
		WHERE chat_id = ? AND yesterday > 0
		ORDER BY yesterday DESC, user_id ASC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, s.unavailable("list_yesterday", err)
	}
	return collectCounters(rows)
}

// DailyTotals aggregates today's counters across every chat.
func (s *SQLiteStore) DailyTotals(ctx context.Context) (int64, int64, *models.CounterRecord, error) {
	var total, active int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(today), 0), COALESCE(SUM(today > 0), 0) FROM messages`).
		Scan(&total, &active)
	if err != nil {
		return 0, 0, nil, s.unavailable("daily_totals", err)
	}

	if active == 0 {
		return 0, 0, nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT chat_id, user_id, username, today, yesterday, total, last_updated, first_seen
		FROM messages WHERE today > 0
		ORDER BY today DESC, user_id ASC
		LIMIT 1`)
	top, err := scanCounter(row)
	if err != nil {
		return 0, 0, nil, s.unavailable("daily_totals", err)
	}

	return total, active, top, nil
}

// ResetAll applies the rollover write to every record.
func (s *SQLiteStore) ResetAll(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET yesterday = today, today = 0, last_updated = ?`,
		encodeTime(now))
	if err != nil {
		return s.unavailable("reset_all", err)
	}
	return nil
}

// SaveSnapshot inserts or replaces the daily_stats row for snap.Date.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.DailySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO daily_stats (date, total_messages, active_users, top_user_id, top_user_count)
		VALUES (?, ?, ?, ?, ?)`,
		snap.Date, snap.TotalMessages, snap.ActiveUsers, snap.TopUserID, snap.TopUserCount)
	if err != nil {
		return s.unavailable("save_snapshot", err)
	}
	return nil
}

// ListSnapshots returns snapshot rows within [from, to], newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, from, to string) ([]models.DailySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, total_messages, active_users, COALESCE(top_user_id, 0), COALESCE(top_user_count, 0)
		FROM daily_stats
		WHERE date BETWEEN ? AND ?
		ORDER BY date DESC`, from, to)
	if err != nil {
		return nil, s.unavailable("list_snapshots", err)
	}
	defer rows.Close()

	var snaps []models.DailySnapshot
	for rows.Next() {
		var snap models.DailySnapshot
		if err := rows.Scan(&snap.Date, &snap.TotalMessages, &snap.ActiveUsers, &snap.TopUserID, &snap.TopUserCount); err != nil {
			return nil, s.unavailable("list_snapshots", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, s.unavailable("list_snapshots", err)
	}
	return snaps, nil
}

// Close closes the database file.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) unavailable(operation string, err error) error {
	s.logger.Error().Err(err).Str("operation", operation).Msg("SQLite operation failed")
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, operation, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanCounter reads one messages row. Timestamps are stored as RFC 3339
// strings and converted back to time.Time here, at the store boundary.
func scanCounter(row rowScanner) (*models.CounterRecord, error) {
	var rec models.CounterRecord
	var lastUpdated, firstSeen sql.NullString
	err := row.Scan(&rec.ChatID, &rec.UserID, &rec.DisplayName,
		&rec.Today, &rec.Yesterday, &rec.Total, &lastUpdated, &firstSeen)
	if err != nil {
		return nil, err
	}
	rec.LastUpdated = decodeTime(lastUpdated.String)
	rec.FirstSeen = decodeTime(firstSeen.String)
	return &rec, nil
}

func collectCounters(rows *sql.Rows) ([]models.CounterRecord, error) {
	defer rows.Close()

	var records []models.CounterRecord
	for rows.Next() {
		rec, err := scanCounter(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrUnavailable, err)
	}
	return records, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
