package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chat-stats-bot/internal/models"
	"github.com/chat-stats-bot/internal/storage"
)

// handleUpdate processes incoming update
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil {
		return
	}

	b.recoverMiddleware(message.Chat.ID, func() {
		b.handleMessage(ctx, message)
	})
}

// handleMessage processes incoming message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Channels are broadcast-only; no per-user attribution there
	if message.Chat.IsChannel() {
		return
	}

	if !b.config.IsAllowedChat(message.Chat.ID) {
		b.logger.Debug().
			Int64("chat_id", message.Chat.ID).
			Msg("Ignoring message from chat outside allowed list")
		return
	}

	if message.From == nil {
		return
	}

	// Handle commands
	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	// Every other message counts towards the sender's counters
	event := models.MessageEvent{
		UserID:      message.From.ID,
		DisplayName: displayName(message.From),
		ChatID:      message.Chat.ID,
		Timestamp:   message.Time(),
		IsAutomated: message.From.IsBot,
	}
	if err := b.stats.Record(ctx, event); err != nil {
		b.logger.Error().
			Err(err).
			Int64("user_id", event.UserID).
			Int64("chat_id", event.ChatID).
			Msg("Failed to record message event")
	}
}

// handleCommand processes bot commands
func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()

	b.logger.Info().
		Str("command", command).
		Int64("user_id", message.From.ID).
		Str("username", message.From.UserName).
		Msg("Received command")

	switch command {
	case "start", "help":
		b.handleHelpCommand(message)
	case "top":
		b.handleTopCommand(ctx, message)
	case "status":
		b.handleStatusCommand(ctx, message)
	case "mystats":
		b.handleMyStatsCommand(ctx, message)
	case "yesterday":
		b.handleYesterdayCommand(ctx, message)
	case "weekly":
		b.handleWeeklyCommand(ctx, message)
	case "reset_today":
		b.handleResetCommand(ctx, message)
	default:
		b.sendMessage(message.Chat.ID, "❓ Неизвестная команда. Используйте /help для списка команд.")
	}
}

// handleHelpCommand handles /help and /start commands
func (b *Bot) handleHelpCommand(message *tgbotapi.Message) {
	helpMsg := fmt.Sprintf(
		"👋 *Привет! Я считаю сообщения в чате*\n\n"+
			"*Доступные команды:*\n"+
			"/top - Топ-10 участников сегодня\n"+
			"/status - Статистика чата\n"+
			"/mystats - Ваша личная статистика\n"+
			"/yesterday - Топ за вчера\n"+
			"/weekly - Статистика за неделю\n"+
			"/help - Показать это сообщение\n\n"+
			"*Для администраторов:*\n"+
			"/reset_today - Сбросить счетчики на сегодня\n\n"+
			"Автосброс счетчиков в полночь (%s).",
		b.stats.Location().String(),
	)

	b.sendMessage(message.Chat.ID, helpMsg)
}

// handleTopCommand handles /top command
func (b *Bot) handleTopCommand(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat.IsPrivate() {
		b.sendMessage(message.Chat.ID, "ℹ️ В личных чатах используйте команду /mystats.")
		return
	}

	members, err := b.stats.Ranked(ctx, message.Chat.ID, false)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to get ranked members")
		b.sendMessage(message.Chat.ID, "⚠️ Произошла ошибка при получении топа.")
		return
	}

	if len(members) == 0 {
		b.sendMessage(message.Chat.ID, "📊 Пока нет статистики сообщений в этом чате.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*🏆 Топ участников сегодня*\n\n")
	for i, member := range members {
		if i >= 10 {
			break
		}
		sb.WriteString(fmt.Sprintf("*%s %s:*\n   📅 Сегодня: %d | 📊 Всего: %d\n\n",
			rankEmoji(i+1), member.DisplayName, member.Today, member.Total))
	}

	var totalToday, totalAll int64
	for _, member := range members {
		totalToday += member.Today
		totalAll += member.Total
	}
	sb.WriteString(fmt.Sprintf("*📈 Итого по чату:*\n📅 Сегодня: *%d* сообщ.\n📊 Всего: *%d* сообщ.",
		totalToday, totalAll))

	b.sendMessage(message.Chat.ID, sb.String())
}

// handleStatusCommand handles /status command
func (b *Bot) handleStatusCommand(ctx context.Context, message *tgbotapi.Message) {
	members, err := b.stats.Ranked(ctx, message.Chat.ID, false)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to get chat status")
		b.sendMessage(message.Chat.ID, "⚠️ Произошла ошибка при получении статистики.")
		return
	}

	if len(members) == 0 {
		b.sendMessage(message.Chat.ID, "📊 Пока нет статистики сообщений в этом чате.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*📊 Статистика чата*\n\n")
	for i, member := range members {
		if i >= 5 {
			break
		}
		sb.WriteString(fmt.Sprintf("*%s %s:*\n   📅 Сегодня: %d | 📊 Всего: %d\n\n",
			rankEmoji(i+1), member.DisplayName, member.Today, member.Total))
	}

	b.sendMessage(message.Chat.ID, sb.String())
}

// handleMyStatsCommand handles /mystats command
func (b *Bot) handleMyStatsCommand(ctx context.Context, message *tgbotapi.Message) {
	rec, err := b.stats.GetRecord(ctx, message.Chat.ID, message.From.ID)
	if errors.Is(err, storage.ErrNotFound) {
		b.sendMessage(message.Chat.ID, "📊 У вас еще нет статистики. Напишите что-нибудь в чате!")
		return
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", message.From.ID).Msg("Failed to get user stats")
		b.sendMessage(message.Chat.ID, "⚠️ Произошла ошибка при получении статистики.")
		return
	}

	firstSeen := "недавно"
	if !rec.FirstSeen.IsZero() {
		firstSeen = rec.FirstSeen.In(b.stats.Location()).Format("02.01.2006")
	}

	statsMsg := fmt.Sprintf(
		"*📊 Ваша статистика*\n\n"+
			"👤 *%s*\n"+
			"📅 *Сегодня:* %d сообщений\n"+
			"🗓️ *Вчера:* %d сообщений\n"+
			"📊 *Всего:* %d сообщений\n"+
			"📅 *С нами с:* %s",
		rec.DisplayName, rec.Today, rec.Yesterday, rec.Total, firstSeen,
	)

	b.sendMessage(message.Chat.ID, statsMsg)
}

// handleYesterdayCommand handles /yesterday command
func (b *Bot) handleYesterdayCommand(ctx context.Context, message *tgbotapi.Message) {
	members, err := b.stats.TopYesterday(ctx, message.Chat.ID, 10)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to get yesterday's top")
		b.sendMessage(message.Chat.ID, "⚠️ Произошла ошибка при получении статистики.")
		return
	}

	if len(members) == 0 {
		b.sendMessage(message.Chat.ID, "📊 Вчера не было сообщений или статистика не собрана.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*📊 Топ за вчера*\n\n")
	var totalYesterday int64
	for i, member := range members {
		sb.WriteString(fmt.Sprintf("%s *%s:* %d сообщ.\n",
			rankEmoji(i+1), member.DisplayName, member.Yesterday))
		totalYesterday += member.Yesterday
	}
	sb.WriteString(fmt.Sprintf("\n*📈 Итого за вчера:* %d сообщений", totalYesterday))

	b.sendMessage(message.Chat.ID, sb.String())
}

// handleWeeklyCommand handles /weekly command
func (b *Bot) handleWeeklyCommand(ctx context.Context, message *tgbotapi.Message) {
	snaps, err := b.stats.Weekly(ctx, time.Now())
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to get weekly snapshots")
		b.sendMessage(message.Chat.ID, "⚠️ Произошла ошибка при получении недельной статистики.")
		return
	}

	if len(snaps) == 0 {
		b.sendMessage(message.Chat.ID, "📊 Недостаточно данных для недельного отчета.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*📅 Статистика за неделю*\n\n")

	var totalMessages, totalActive int64
	for _, snap := range snaps {
		day := snap.Date
		if t, err := time.Parse("2006-01-02", snap.Date); err == nil {
			day = t.Format("02.01")
		}
		sb.WriteString(fmt.Sprintf("*%s:* %d сообщ. от %d чел.\n",
			day, snap.TotalMessages, snap.ActiveUsers))
		totalMessages += snap.TotalMessages
		totalActive += snap.ActiveUsers
	}

	if len(snaps) < 7 {
		sb.WriteString(fmt.Sprintf("\n_Данных за %d дней нет_\n", 7-len(snaps)))
	}

	sb.WriteString(fmt.Sprintf("\n*📈 Итоги недели:*\n📨 Сообщений: *%d*\n👥 Активных пользователей: *%d*",
		totalMessages, totalActive))
	if len(snaps) > 0 {
		sb.WriteString(fmt.Sprintf("\n📊 В среднем в день: *%d* сообщ.", totalMessages/int64(len(snaps))))
	}

	b.sendMessage(message.Chat.ID, sb.String())
}

// handleResetCommand handles /reset_today: an admin-triggered manual rollover.
func (b *Bot) handleResetCommand(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat.IsPrivate() {
		b.sendMessage(message.Chat.ID, "ℹ️ В личных чатах используйте команду /mystats.")
		return
	}

	isAdmin, err := b.isChatAdmin(message.Chat.ID, message.From.ID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", message.Chat.ID).Msg("Failed to check admin rights")
		b.sendMessage(message.Chat.ID, "⚠️ Не удалось проверить права администратора.")
		return
	}
	if !isAdmin {
		b.sendMessage(message.Chat.ID, "⚠️ Эта команда доступна только администраторам.")
		return
	}

	summary, err := b.stats.RolloverAll(ctx, time.Now())
	if err != nil {
		b.logger.Error().Err(err).Msg("Manual rollover failed")
		b.sendMessage(message.Chat.ID, "⚠️ Произошла ошибка при сбросе счетчиков.")
		return
	}

	b.sendMessage(message.Chat.ID, fmt.Sprintf(
		"✅ Счетчики сообщений сброшены.\n📊 Сегодня было: %d сообщений от %d пользователей",
		summary.TotalMessages, summary.ActiveUsers))
}

// isChatAdmin reports whether the user administers the chat.
func (b *Bot) isChatAdmin(chatID, userID int64) (bool, error) {
	admins, err := b.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get chat administrators: %w", err)
	}

	for _, admin := range admins {
		if admin.User != nil && admin.User.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

// displayName builds the label shown in rankings for a user.
func displayName(user *tgbotapi.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	if name == "" {
		name = fmt.Sprintf("User%d", user.ID)
	}
	return name
}

// rankEmoji returns the medal for a ranking position.
func rankEmoji(position int) string {
	switch position {
	case 1:
		return "👑"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", position)
	}
}
