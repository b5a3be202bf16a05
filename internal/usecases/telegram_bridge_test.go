package usecases

import (
	"context"
	"sync"
	"testing"

	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentItem struct {
	kind string
	text string
	url  string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentItem
}

func (f *fakeSender) record(item sentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, item)
	return nil
}

func (f *fakeSender) SendText(_ int64, text string) error {
	return f.record(sentItem{kind: "text", text: text})
}

func (f *fakeSender) SendWithMenu(_ int64, text string) error {
	return f.record(sentItem{kind: "menu", text: text})
}

func (f *fakeSender) SendPhoto(_ int64, url, caption string) error {
	return f.record(sentItem{kind: "photo", text: caption, url: url})
}

func (f *fakeSender) Typing(int64)          {}
func (f *fakeSender) AnswerCallback(string) {}

func (f *fakeSender) last() sentItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestTelegramBridge_Conversation(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{name: "puter", reply: "¡Hola desde Telegram!"}
	env := newTestEnv(t, []interfaces.ChatProvider{provider}, nil, 0)
	bridge := NewTelegramBridge(env.chat, nil, zap.NewNop())
	sender := &fakeSender{}

	bridge.HandleUpdate(ctx, sender, textUpdate(7, "/start"))
	assert.Equal(t, "menu", sender.last().kind)

	bridge.HandleUpdate(ctx, sender, textUpdate(7, "hola bot"))
	assert.Equal(t, sentItem{kind: "text", text: "¡Hola desde Telegram!"}, sender.last())

	convs, err := env.chat.ListConversations(ctx, TelegramUserID(7))
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "hola bot", convs[0].Title)

	bridge.HandleUpdate(ctx, sender, textUpdate(7, "/nueva"))
	convs, err = env.chat.ListConversations(ctx, TelegramUserID(7))
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	// the next message lands in the new conversation
	bridge.HandleUpdate(ctx, sender, textUpdate(7, "otra cosa"))
	msgs, err := env.chat.GetMessages(ctx, TelegramUserID(7), convs[0].ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestTelegramBridge_ImageAnswer(t *testing.T) {
	ctx := context.Background()
	img := &fakeImageProvider{name: "puter", img: &interfaces.GeneratedImage{URL: "https://img.test/gato.png"}}
	env := newTestEnv(t, nil, []interfaces.ImageProvider{img}, 0)
	bridge := NewTelegramBridge(env.chat, nil, zap.NewNop())
	sender := &fakeSender{}

	bridge.HandleUpdate(ctx, sender, textUpdate(9, "genera una imagen de un gato"))
	got := sender.last()
	assert.Equal(t, "photo", got.kind)
	assert.Equal(t, "https://img.test/gato.png", got.url)
}

func TestTelegramBridge_RateLimitAndCallback(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil, nil, 0)
	limiter := infrastructure.NewMessageRateLimiter(0.001, 1)
	bridge := NewTelegramBridge(env.chat, limiter, zap.NewNop())
	sender := &fakeSender{}

	bridge.HandleUpdate(ctx, sender, textUpdate(3, "hola"))
	bridge.HandleUpdate(ctx, sender, textUpdate(3, "hola otra vez"))
	assert.Contains(t, sender.last().text, "Vas muy rápido")

	bridge.HandleUpdate(ctx, sender, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    infrastructure.TelegramActionNewConversation,
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3}},
	}})
	assert.Contains(t, sender.last().text, "Nueva conversación")

	convs, err := env.chat.ListConversations(ctx, TelegramUserID(3))
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}
