package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chat-stats-bot/internal/models"
)

// Load loads configuration from environment variables
// It first attempts to load from .env file, then reads environment variables
func Load() (*models.BotConfig, error) {
	// Try to load .env file (optional, ignore error if not found)
	_ = godotenv.Load()

	config := &models.BotConfig{
		// Telegram settings
		TelegramToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramUsername: getEnv("TELEGRAM_BOT_USERNAME", ""),
		AllowedChatIDs:   getEnvInt64List("TELEGRAM_ALLOWED_CHAT_IDS"),

		// Storage settings
		StorageBackend:  getEnv("STORAGE_BACKEND", "sqlite"),
		SQLitePath:      getEnv("SQLITE_PATH", "stats.db"),
		SupabaseURL:     getEnv("SUPABASE_URL", ""),
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseTimeout: getEnvInt("SUPABASE_TIMEOUT", 10),

		// App settings
		Timezone:    getEnv("TIMEZONE", "Europe/Moscow"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Environment: getEnv("ENVIRONMENT", "production"),

		// Counter settings
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 300),
		RankedLimit:     getEnvInt("RANKED_LIMIT", 50),
	}

	// Validate configuration
	if err := validate(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// validate checks if all required configuration values are set
func validate(cfg *models.BotConfig) error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.TelegramUsername == "" {
		return fmt.Errorf("TELEGRAM_BOT_USERNAME is required")
	}

	switch cfg.StorageBackend {
	case "sqlite":
		if cfg.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case "supabase":
		if cfg.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase backend")
		}
		if cfg.SupabaseKey == "" {
			return fmt.Errorf("SUPABASE_KEY is required for the supabase backend")
		}
		if cfg.SupabaseTimeout <= 0 {
			return fmt.Errorf("SUPABASE_TIMEOUT must be positive, got %d", cfg.SupabaseTimeout)
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be sqlite or supabase, got %s", cfg.StorageBackend)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE is invalid: %w", err)
	}

	// Validate positive values
	if cfg.CacheTTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be positive, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.RankedLimit <= 0 {
		return fmt.Errorf("RANKED_LIMIT must be positive, got %d", cfg.RankedLimit)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error; got %s", cfg.LogLevel)
	}

	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves environment variable as integer or returns default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvInt64List retrieves a comma-separated environment variable as int64 values.
// Malformed entries are skipped.
func getEnvInt64List(key string) []int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	var values []int64
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		values = append(values, value)
	}

	return values
}
