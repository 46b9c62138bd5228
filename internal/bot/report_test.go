package bot

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/chat-stats-bot/internal/models"
)

func TestFormatRolloverReport(t *testing.T) {
	b := &Bot{logger: zerolog.Nop()}

	text := b.formatRolloverReport(&models.RolloverSummary{
		Date:          "2024-01-15",
		TotalMessages: 321,
		ActiveUsers:   12,
		TopUserID:     7,
		TopUserName:   "alice_underscore",
		TopUserCount:  41,
	})

	if !strings.Contains(text, "15 января") {
		t.Fatalf("date not localized: %q", text)
	}
	if !strings.Contains(text, "*321*") || !strings.Contains(text, "*12*") {
		t.Fatalf("totals missing: %q", text)
	}
	if !strings.Contains(text, `alice\_underscore`) {
		t.Fatalf("username not escaped: %q", text)
	}
	if !strings.Contains(text, "41 сообщение") {
		t.Fatalf("plural form wrong: %q", text)
	}
}

func TestFormatRolloverReportWithoutTopUser(t *testing.T) {
	b := &Bot{logger: zerolog.Nop()}

	text := b.formatRolloverReport(&models.RolloverSummary{
		Date:          "2024-02-01",
		TotalMessages: 5,
		ActiveUsers:   1,
	})

	if strings.Contains(text, "Самый активный") {
		t.Fatalf("top-user line should be absent: %q", text)
	}
}

func TestMessageWordPluralization(t *testing.T) {
	tests := []struct {
		count int64
		want  string
	}{
		{1, "сообщение"},
		{2, "сообщения"},
		{4, "сообщения"},
		{5, "сообщений"},
		{11, "сообщений"},
		{21, "сообщение"},
		{111, "сообщений"},
		{102, "сообщения"},
	}

	for _, tt := range tests {
		if got := messageWord(tt.count); got != tt.want {
			t.Errorf("messageWord(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestRankEmoji(t *testing.T) {
	if rankEmoji(1) != "👑" || rankEmoji(2) != "🥈" || rankEmoji(3) != "🥉" {
		t.Fatal("medal positions wrong")
	}
	if rankEmoji(4) != "4." {
		t.Fatalf("rankEmoji(4) = %q", rankEmoji(4))
	}
}

func TestEscapeMarkdown(t *testing.T) {
	got := escapeMarkdown("a_b*c[d`e")
	want := `a\_b\*c\[d\` + "`e"
	if got != want {
		t.Fatalf("escapeMarkdown = %q, want %q", got, want)
	}
}
