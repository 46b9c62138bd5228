package config

import (
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_BOT_USERNAME", "stats_bot")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.StorageBackend != "sqlite" || cfg.SQLitePath != "stats.db" {
		t.Fatalf("unexpected storage defaults: %s %s", cfg.StorageBackend, cfg.SQLitePath)
	}
	if cfg.Timezone != "Europe/Moscow" {
		t.Fatalf("unexpected timezone default: %s", cfg.Timezone)
	}
	if cfg.CacheTTLSeconds != 300 || cfg.RankedLimit != 50 {
		t.Fatalf("unexpected counter defaults: ttl=%d limit=%d", cfg.CacheTTLSeconds, cfg.RankedLimit)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_BOT_USERNAME", "stats_bot")

	if _, err := Load(); err == nil {
		t.Fatal("want error for missing token")
	}
}

func TestLoadSupabaseBackendRequiresCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_BACKEND", "supabase")

	if _, err := Load(); err == nil {
		t.Fatal("want error for missing supabase credentials")
	}

	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_KEY", "key")
	if _, err := Load(); err != nil {
		t.Fatalf("Load failed with credentials set: %v", err)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_BACKEND", "dynamo")

	if _, err := Load(); err == nil {
		t.Fatal("want error for unknown backend")
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatal("want error for invalid timezone")
	}
}

func TestAllowedChatIDsParsing(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_ALLOWED_CHAT_IDS", "-100123, 456,, garbage ,789")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := []int64{-100123, 456, 789}
	if len(cfg.AllowedChatIDs) != len(want) {
		t.Fatalf("want %v, got %v", want, cfg.AllowedChatIDs)
	}
	for i, id := range want {
		if cfg.AllowedChatIDs[i] != id {
			t.Fatalf("want %v, got %v", want, cfg.AllowedChatIDs)
		}
	}

	if !cfg.IsAllowedChat(456) {
		t.Fatal("456 should be allowed")
	}
	if cfg.IsAllowedChat(999) {
		t.Fatal("999 should not be allowed")
	}
}
