package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	supa "github.com/supabase-community/supabase-go"

	"github.com/chat-stats-bot/internal/models"
)

// supabaseCounterRow mirrors the messages table shape on the wire.
type supabaseCounterRow struct {
	ChatID      int64  `json:"chat_id"`
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Today       int64  `json:"today"`
	Yesterday   int64  `json:"yesterday"`
	Total       int64  `json:"total"`
	LastUpdated string `json:"last_updated"`
	FirstSeen   string `json:"first_seen"`
}

func (r supabaseCounterRow) toRecord() models.CounterRecord {
	return models.CounterRecord{
		ChatID:      r.ChatID,
		UserID:      r.UserID,
		DisplayName: r.Username,
		Today:       r.Today,
		Yesterday:   r.Yesterday,
		Total:       r.Total,
		LastUpdated: decodeTime(r.LastUpdated),
		FirstSeen:   decodeTime(r.FirstSeen),
	}
}

func toSupabaseRow(rec *models.CounterRecord) supabaseCounterRow {
	return supabaseCounterRow{
		ChatID:      rec.ChatID,
		UserID:      rec.UserID,
		Username:    rec.DisplayName,
		Today:       rec.Today,
		Yesterday:   rec.Yesterday,
		Total:       rec.Total,
		LastUpdated: encodeTime(rec.LastUpdated),
		FirstSeen:   encodeTime(rec.FirstSeen),
	}
}

// SupabaseStore is the hosted backend. The PostgREST client cannot express
// column-to-column updates or aggregates, so ResetAll and DailyTotals fetch
// rows and compute in Go.
type SupabaseStore struct {
	client  *supa.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewSupabaseStore creates a new Supabase-backed store and verifies the connection.
func NewSupabaseStore(supabaseURL, supabaseKey string, timeout int, logger zerolog.Logger) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, supabaseKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	s := &SupabaseStore{
		client:  client,
		timeout: time.Duration(timeout) * time.Second,
		logger:  logger.With().Str("component", "storage").Str("backend", "supabase").Logger(),
	}

	if err := s.ping(); err != nil {
		return nil, err
	}
	s.logger.Debug().Msg("Supabase connection successful")

	return s, nil
}

func (s *SupabaseStore) ping() error {
	_, _, err := s.client.From("messages").
		Select("user_id", "exact", false).
		Limit(1, "").
		Execute()
	if err != nil {
		return fmt.Errorf("supabase ping failed: %w", err)
	}
	return nil
}

// withRetry executes a function with retry logic
func (s *SupabaseStore) withRetry(ctx context.Context, operation string, fn func() error) error {
	maxRetries := 2
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			s.logger.Warn().
				Str("operation", operation).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("Retrying operation")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		s.logger.Error().
			Err(lastErr).
			Str("operation", operation).
			Int("attempt", attempt+1).
			Msg("Operation failed")
	}

	return fmt.Errorf("%w: %s failed after %d attempts: %v", ErrUnavailable, operation, maxRetries+1, lastErr)
}

// GetCounter returns the record for (chatID, userID) or ErrNotFound.
func (s *SupabaseStore) GetCounter(ctx context.Context, chatID, userID int64) (*models.CounterRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []supabaseCounterRow
	err := s.withRetry(ctx, "get_counter", func() error {
		data, _, err := s.client.From("messages").
			Select("*", "exact", false).
			Eq("chat_id", fmt.Sprintf("%d", chatID)).
			Eq("user_id", fmt.Sprintf("%d", userID)).
			Execute()
		if err != nil {
			return fmt.Errorf("failed to fetch counter: %w", err)
		}
		return json.Unmarshal(data, &rows)
	})
	if err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	rec := rows[0].toRecord()
	return &rec, nil
}

// PutCounter inserts or replaces the record for its key.
func (s *SupabaseStore) PutCounter(ctx context.Context, rec *models.CounterRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := toSupabaseRow(rec)
	return s.withRetry(ctx, "put_counter", func() error {
		_, _, err := s.client.From("messages").
			Insert(row, true, "chat_id,user_id", "", "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to upsert counter: %w", err)
		}
		return nil
	})
}

// fetchChatRows retrieves every counter row for one chat.
func (s *SupabaseStore) fetchChatRows(ctx context.Context, operation string, chatID int64) ([]supabaseCounterRow, error) {
	var rows []supabaseCounterRow
	err := s.withRetry(ctx, operation, func() error {
		data, _, err := s.client.From("messages").
			Select("*", "exact", false).
			Eq("chat_id", fmt.Sprintf("%d", chatID)).
			Execute()
		if err != nil {
			return fmt.Errorf("failed to fetch counters: %w", err)
		}
		return json.Unmarshal(data, &rows)
	})
	return rows, err
}

// ListActive returns the ranked projection source rows for one chat.
// Filtering and ordering happen in Go; the PostgREST client does not
// support OR filters across columns cleanly.
func (s *SupabaseStore) ListActive(ctx context.Context, chatID int64, limit int) ([]models.CounterRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.fetchChatRows(ctx, "list_active", chatID)
	if err != nil {
		return nil, err
	}

	var records []models.CounterRecord
	for _, row := range rows {
		if row.Today > 0 || row.Yesterday > 0 {
			records = append(records, row.toRecord())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Today != records[j].Today {
			return records[i].Today > records[j].Today
		}
		if records[i].Total != records[j].Total {
			return records[i].Total > records[j].Total
		}
		return records[i].UserID < records[j].UserID
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListYesterday returns yesterday's top rows for one chat.
func (s *SupabaseStore) ListYesterday(ctx context.Context, chatID int64, limit int) ([]models.CounterRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.fetchChatRows(ctx, "list_yesterday", chatID)
	if err != nil {
		return nil, err
	}

	var records []models.CounterRecord
	for _, row := range rows {
		if row.Yesterday > 0 {
			records = append(records, row.toRecord())
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Yesterday != records[j].Yesterday {
			return records[i].Yesterday > records[j].Yesterday
		}
		return records[i].UserID < records[j].UserID
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// fetchAllRows retrieves every counter row across all chats.
func (s *SupabaseStore) fetchAllRows(ctx context.Context, operation string) ([]supabaseCounterRow, error) {
	var rows []supabaseCounterRow
	err := s.withRetry(ctx, operation, func() error {
		data, _, err := s.client.From("messages").
			Select("*", "exact", false).
			Execute()
		if err != nil {
			return fmt.Errorf("failed to fetch counters: %w", err)
		}
		return json.Unmarshal(data, &rows)
	})
	return rows, err
}

// DailyTotals aggregates today's counters across every chat.
func (s *SupabaseStore) DailyTotals(ctx context.Context) (int64, int64, *models.CounterRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.fetchAllRows(ctx, "daily_totals")
	if err != nil {
		return 0, 0, nil, err
	}

	var total, active int64
	var top *models.CounterRecord
	for _, row := range rows {
		if row.Today == 0 {
			continue
		}
		total += row.Today
		active++
		rec := row.toRecord()
		if top == nil || rec.Today > top.Today ||
			(rec.Today == top.Today && rec.UserID < top.UserID) {
			r := rec
			top = &r
		}
	}
	return total, active, top, nil
}

// ResetAll applies the rollover write to every record.
func (s *SupabaseStore) ResetAll(ctx context.Context, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.fetchAllRows(ctx, "reset_all_fetch")
	if err != nil {
		return err
	}

	nowStr := encodeTime(now)
	for i := range rows {
		rows[i].Yesterday = rows[i].Today
		rows[i].Today = 0
		rows[i].LastUpdated = nowStr
	}
	if len(rows) == 0 {
		return nil
	}

	return s.withRetry(ctx, "reset_all_write", func() error {
		_, _, err := s.client.From("messages").
			Insert(rows, true, "chat_id,user_id", "", "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to write reset counters: %w", err)
		}
		return nil
	})
}

// SaveSnapshot inserts or replaces the daily_stats row for snap.Date.
func (s *SupabaseStore) SaveSnapshot(ctx context.Context, snap *models.DailySnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.withRetry(ctx, "save_snapshot", func() error {
		_, _, err := s.client.From("daily_stats").
			Insert(snap, true, "date", "", "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to upsert snapshot: %w", err)
		}
		return nil
	})
}

// ListSnapshots returns snapshot rows within [from, to], newest first.
func (s *SupabaseStore) ListSnapshots(ctx context.Context, from, to string) ([]models.DailySnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var snaps []models.DailySnapshot
	err := s.withRetry(ctx, "list_snapshots", func() error {
		data, _, err := s.client.From("daily_stats").
			Select("*", "exact", false).
			Gte("date", from).
			Lte("date", to).
			Execute()
		if err != nil {
			return fmt.Errorf("failed to fetch snapshots: %w", err)
		}
		return json.Unmarshal(data, &snaps)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Date > snaps[j].Date })
	return snaps, nil
}

// Close releases the backend. The PostgREST client holds no persistent
// connection, so there is nothing to tear down.
func (s *SupabaseStore) Close() error {
	return nil
}
