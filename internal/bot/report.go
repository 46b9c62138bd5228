package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/chat-stats-bot/internal/models"
)

// SendRolloverReport formats the rollover summary and delivers it to every
// allowed chat. The counter core hands the summary off and is done; delivery
// failures are logged, never propagated back.
func (b *Bot) SendRolloverReport(summary *models.RolloverSummary) {
	if summary.TotalMessages == 0 {
		b.logger.Info().Str("date", summary.Date).Msg("No activity, skipping rollover report")
		return
	}

	text := b.formatRolloverReport(summary)
	for _, chatID := range b.config.AllowedChatIDs {
		if err := b.sendMessage(chatID, text); err != nil {
			b.logger.Error().
				Err(err).
				Int64("chat_id", chatID).
				Str("date", summary.Date).
				Msg("Failed to deliver rollover report")
		}
	}
}

// formatRolloverReport builds the daily report message.
func (b *Bot) formatRolloverReport(summary *models.RolloverSummary) string {
	dateDisplay := summary.Date
	if t, err := time.Parse("2006-01-02", summary.Date); err == nil {
		months := []string{
			"января", "февраля", "марта", "апреля", "мая", "июня",
			"июля", "августа", "сентября", "октября", "ноября", "декабря",
		}
		dateDisplay = fmt.Sprintf("%d %s", t.Day(), months[t.Month()-1])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*📅 Итоги дня за %s*\n\n", dateDisplay))
	sb.WriteString(fmt.Sprintf("📨 Сообщений: *%d*\n", summary.TotalMessages))
	sb.WriteString(fmt.Sprintf("👥 Активных участников: *%d*\n", summary.ActiveUsers))

	if summary.TopUserCount > 0 {
		name := summary.TopUserName
		if name == "" {
			name = fmt.Sprintf("User%d", summary.TopUserID)
		}
		sb.WriteString(fmt.Sprintf("\n*Самый активный:* %s (%d %s)",
			escapeMarkdown(name), summary.TopUserCount, messageWord(summary.TopUserCount)))
	}

	return sb.String()
}

// escapeMarkdown escapes special characters for Telegram Markdown V1
func escapeMarkdown(text string) string {
	replacements := map[string]string{
		"_": "\\_",
		"*": "\\*",
		"[": "\\[",
		"`": "\\`",
	}

	result := text
	for old, new := range replacements {
		result = strings.ReplaceAll(result, old, new)
	}
	return result
}

// messageWord returns the Russian plural form for a message count.
func messageWord(count int64) string {
	if count%10 == 1 && count%100 != 11 {
		return "сообщение"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "сообщения"
	}
	return "сообщений"
}
