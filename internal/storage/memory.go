package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chat-stats-bot/internal/models"
)

type counterKey struct {
	chatID int64
	userID int64
}

// MemoryStore is an in-memory, thread-safe Store implementation.
// It backs unit tests and ephemeral deployments; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	counters map[counterKey]models.CounterRecord
	snaps    map[string]models.DailySnapshot

	// FailNext makes the next N mutating calls return ErrUnavailable.
	// Intended for tests exercising degraded-store paths.
	FailNext int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[counterKey]models.CounterRecord),
		snaps:    make(map[string]models.DailySnapshot),
	}
}

func (m *MemoryStore) failing() bool {
	if m.FailNext > 0 {
		m.FailNext--
		return true
	}
	return false
}

// GetCounter returns the record for (chatID, userID) or ErrNotFound.
func (m *MemoryStore) GetCounter(_ context.Context, chatID, userID int64) (*models.CounterRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.counters[counterKey{chatID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

// PutCounter inserts or replaces the record for its key.
func (m *MemoryStore) PutCounter(_ context.Context, rec *models.CounterRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing() {
		return ErrUnavailable
	}
	m.counters[counterKey{rec.ChatID, rec.UserID}] = *rec
	return nil
}

// ListActive returns the ranked projection source rows for one chat.
func (m *MemoryStore) ListActive(_ context.Context, chatID int64, limit int) ([]models.CounterRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []models.CounterRecord
	for key, rec := range m.counters {
		if key.chatID == chatID && (rec.Today > 0 || rec.Yesterday > 0) {
			records = append(records, rec)
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
func (m *MemoryStore) ListYesterday(_ context.Context, chatID int64, limit int) ([]models.CounterRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []models.CounterRecord
	for key, rec := range m.counters {
		if key.chatID == chatID && rec.Yesterday > 0 {
			records = append(records, rec)
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

// DailyTotals aggregates today's counters across every chat.
func (m *MemoryStore) DailyTotals(_ context.Context) (int64, int64, *models.CounterRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total, active int64
	var top *models.CounterRecord
	for _, rec := range m.counters {
		if rec.Today == 0 {
			continue
		}
		total += rec.Today
		active++
		if top == nil || rec.Today > top.Today ||
			(rec.Today == top.Today && rec.UserID < top.UserID) {
			r := rec
			top = &r
		}
	}
	return total, active, top, nil
}

// ResetAll applies the rollover write to every record.
func (m *MemoryStore) ResetAll(_ context.Context, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing() {
		return ErrUnavailable
	}
	for key, rec := range m.counters {
		rec.Yesterday = rec.Today
		rec.Today = 0
		rec.LastUpdated = now
		m.counters[key] = rec
	}
	return nil
}

// SaveSnapshot inserts or replaces the daily_stats row for snap.Date.
func (m *MemoryStore) SaveSnapshot(_ context.Context, snap *models.DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing() {
		return ErrUnavailable
	}
	m.snaps[snap.Date] = *snap
	return nil
}

// ListSnapshots returns snapshot rows within [from, to], newest first.
func (m *MemoryStore) ListSnapshots(_ context.Context, from, to string) ([]models.DailySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var snaps []models.DailySnapshot
	for date, snap := range m.snaps {
		if date >= from && date <= to {
			snaps = append(snaps, snap)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Date > snaps[j].Date })
	return snaps, nil
}

// Close releases the backend.
func (m *MemoryStore) Close() error {
	return nil
}
