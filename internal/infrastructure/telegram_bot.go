package infrastructure

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Callback data of the inline menu buttons.
const (
	TelegramActionNewConversation = "nueva"
)

// TelegramUpdateHandler processes a single update. It runs on its own goroutine.
type TelegramUpdateHandler func(ctx context.Context, bot *TelegramBot, update tgbotapi.Update)

// TelegramBot is a long-polling bot that hands updates to a handler.
type TelegramBot struct {
	API *tgbotapi.BotAPI
	log *zap.Logger
}

func NewTelegramBot(token string, log *zap.Logger) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramBot{API: api, log: log}, nil
}

// Run polls for updates until ctx is cancelled.
func (b *TelegramBot) Run(ctx context.Context, handler TelegramUpdateHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)

	b.log.Info("telegram polling started", zap.String("bot", b.API.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			b.log.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go handler(ctx, b, update)
		}
	}
}

// SendText tries Markdown first and falls back to plain text, since model output
// often contains unbalanced markdown that Telegram rejects.
func (b *TelegramBot) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.API.Send(msg); err == nil {
		return nil
	}
	msg.ParseMode = ""
	_, err := b.API.Send(msg)
	return err
}

func (b *TelegramBot) SendWithMenu(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = MainMenuKeyboard()
	_, err := b.API.Send(msg)
	return err
}

func (b *TelegramBot) SendPhoto(chatID int64, url, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	photo.Caption = caption
	_, err := b.API.Send(photo)
	return err
}

func (b *TelegramBot) Typing(chatID int64) {
	if _, err := b.API.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.log.Debug("chat action failed", zap.Error(err))
	}
}

// AnswerCallback acknowledges a button press so the client stops its spinner.
func (b *TelegramBot) AnswerCallback(id string) {
	if _, err := b.API.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.log.Debug("callback answer failed", zap.Error(err))
	}
}

// MainMenuKeyboard is attached to greetings.
func MainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🆕 Nueva conversación", TelegramActionNewConversation),
		),
	)
}
