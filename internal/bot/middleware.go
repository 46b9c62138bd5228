package bot

import (
	"fmt"
	"runtime/debug"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// recoverMiddleware keeps a panicking handler from taking down the update loop.
// A dropped message costs one counter increment; a dead loop costs all of them.
func (b *Bot) recoverMiddleware(chatID int64, handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Int64("chat_id", chatID).
				Str("stack", string(debug.Stack())).
				Msg("Panic recovered in handler")
		}
	}()

	handler()
}

// sendMessage delivers a Markdown-formatted reply to the chat. Command
// handlers and the rollover report both go through here.
func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().
			Err(err).
			Int64("chat_id", chatID).
			Msg("Failed to send message")
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
