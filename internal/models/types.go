package models

import "time"

// MessageEvent represents one inbound chat message attributed to a user.
// It carries only what the counters need; message content never enters the system.
type MessageEvent struct {
	UserID      int64
	DisplayName string
	ChatID      int64
	Timestamp   time.Time
	IsAutomated bool // messages from bots are not counted
}

// CounterRecord holds the rolling message counters for one user in one chat.
type CounterRecord struct {
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	DisplayName string    `json:"display_name"`
	Today       int64     `json:"today"`
	Yesterday   int64     `json:"yesterday"`
	Total       int64     `json:"total"`
	LastUpdated time.Time `json:"last_updated"`
	FirstSeen   time.Time `json:"first_seen"`
}

// DailySnapshot is an immutable aggregate row for one calendar date.
// Written by the rollover and the hourly auto-save; replaced as a whole, never
// mutated in place.
type DailySnapshot struct {
	Date          string `json:"date"` // Format: YYYY-MM-DD in the configured timezone
	TotalMessages int64  `json:"total_messages"`
	ActiveUsers   int64  `json:"active_users"`
	TopUserID     int64  `json:"top_user_id,omitempty"`
	TopUserCount  int64  `json:"top_user_count,omitempty"`
}

// RolloverSummary is the aggregate computed over all records immediately before
// a rollover resets them. It is hand-off data for the reporting layer.
type RolloverSummary struct {
	Date          string
	TotalMessages int64
	ActiveUsers   int64
	TopUserID     int64
	TopUserName   string
	TopUserCount  int64
}

// BotConfig represents bot configuration
type BotConfig struct {
	// Telegram settings
	TelegramToken    string
	TelegramUsername string
	AllowedChatIDs   []int64 // List of allowed chat IDs (supports multiple chats)

	// Storage settings
	StorageBackend  string // "sqlite" or "supabase"
	SQLitePath      string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseTimeout int

	// App settings
	Timezone    string
	LogLevel    string
	Environment string

	// Counter settings
	CacheTTLSeconds int
	RankedLimit     int
}

// IsAllowedChat checks if the given chat ID is in the allowed list.
// An empty list allows every chat.
func (c *BotConfig) IsAllowedChat(chatID int64) bool {
	if len(c.AllowedChatIDs) == 0 {
		return true
	}
	for _, allowedID := range c.AllowedChatIDs {
		if allowedID == chatID {
			return true
		}
	}
	return false
}
