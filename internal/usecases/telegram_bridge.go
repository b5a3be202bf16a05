package usecases

import (
	"context"
	"errors"
	"fmt"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/infrastructure"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const telegramWelcome = "👋 *¡Hola! Soy Sigma AI.*\n\nEscríbeme lo que necesites o pídeme una imagen, por ejemplo: _genera una imagen de un gato astronauta_.\n\nUsa /nueva para empezar otra conversación."

// TelegramSender is the part of the bot the bridge talks back through.
type TelegramSender interface {
	SendText(chatID int64, text string) error
	SendWithMenu(chatID int64, text string) error
	SendPhoto(chatID int64, url, caption string) error
	Typing(chatID int64)
	AnswerCallback(id string)
}

// TelegramBridge lets Telegram chats use the same conversations as the web client.
type TelegramBridge struct {
	chat    *ChatService
	limiter *infrastructure.MessageRateLimiter
	log     *zap.Logger
}

func NewTelegramBridge(chat *ChatService, limiter *infrastructure.MessageRateLimiter, log *zap.Logger) *TelegramBridge {
	return &TelegramBridge{chat: chat, limiter: limiter, log: log}
}

// TelegramUserID maps a chat to the user id its conversations are stored under.
func TelegramUserID(chatID int64) string {
	return fmt.Sprintf("telegram:%d", chatID)
}

func (b *TelegramBridge) HandleUpdate(ctx context.Context, bot TelegramSender, update tgbotapi.Update) {
	if cq := update.CallbackQuery; cq != nil {
		bot.AnswerCallback(cq.ID)
		if cq.Data == infrastructure.TelegramActionNewConversation && cq.Message != nil {
			b.newConversation(ctx, bot, cq.Message.Chat.ID)
		}
		return
	}

	msg := update.Message
	if msg == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.reply(bot.SendWithMenu(chatID, telegramWelcome))
		case "nueva":
			b.newConversation(ctx, bot, chatID)
		default:
			b.reply(bot.SendText(chatID, "Comando no reconocido. Usa /nueva o escríbeme directamente."))
		}
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	userID := TelegramUserID(chatID)
	if b.limiter != nil && !b.limiter.Allow(userID) {
		b.reply(bot.SendText(chatID, "⏳ Vas muy rápido. Espera un momento antes de enviar otro mensaje."))
		return
	}

	bot.Typing(chatID)
	conv, err := b.chat.LatestConversation(ctx, userID)
	if err != nil {
		b.log.Error("telegram conversation lookup failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(bot.SendText(chatID, errorReply))
		return
	}

	ex, err := b.chat.SendMessage(ctx, userID, conv.ID, text, "")
	switch {
	case errors.Is(err, entities.ErrQuotaExceeded):
		b.reply(bot.SendText(chatID, "Has alcanzado el límite diario de mensajes. Vuelve mañana."))
		return
	case errors.Is(err, entities.ErrBusy):
		b.reply(bot.SendText(chatID, "Todavía estoy respondiendo tu mensaje anterior."))
		return
	case err != nil:
		b.log.Error("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(bot.SendText(chatID, errorReply))
		return
	}

	answer := ex.AIMessage
	if url, ok := answer.Metadata["image_url"].(string); ok && answer.MessageType == entities.MessageTypeImage {
		if err := bot.SendPhoto(chatID, url, answer.Content); err == nil {
			return
		}
		b.reply(bot.SendText(chatID, answer.Content+"\n"+url))
		return
	}
	b.reply(bot.SendText(chatID, answer.Content))
}

func (b *TelegramBridge) newConversation(ctx context.Context, bot TelegramSender, chatID int64) {
	if _, err := b.chat.NewConversation(ctx, TelegramUserID(chatID), ""); err != nil {
		b.log.Error("telegram new conversation failed", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(bot.SendText(chatID, errorReply))
		return
	}
	b.reply(bot.SendText(chatID, "🆕 Nueva conversación iniciada. ¿De qué quieres hablar?"))
}

func (b *TelegramBridge) reply(err error) {
	if err != nil {
		b.log.Warn("telegram reply failed", zap.Error(err))
	}
}
