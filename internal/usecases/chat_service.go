package usecases

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"
	"strings"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

const (
	historyLimit   = 6
	titleMaxLength = 50
	errorReply     = "Lo siento, hubo un error procesando tu solicitud. ¿Podrías intentar de nuevo?"
)

var (
	imageVerbRequest = regexp.MustCompile(`(?i)^(genera|crea|haz|dibuja|imagen|picture|draw|create|generate).*(imagen|image|foto|photo|picture|dibujo|drawing)`)
	imageNounRequest = regexp.MustCompile(`(?i)^(imagen|image|foto|photo|picture|dibujo|drawing).*(de|of|con|with)`)
)

// IsImageRequest reports whether the message asks for a picture instead of a text answer.
func IsImageRequest(message string) bool {
	message = strings.TrimSpace(message)
	return imageVerbRequest.MatchString(message) || imageNounRequest.MatchString(message)
}

// ChatService owns conversations and the send-message flow.
type ChatService struct {
	store      interfaces.ChatStore
	router     *Router
	media      *MediaService
	sessions   *infrastructure.SessionManager
	markdown   goldmark.Markdown
	dailyLimit int
	log        *zap.Logger
}

func NewChatService(store interfaces.ChatStore, router *Router, media *MediaService, sessions *infrastructure.SessionManager, dailyLimit int, log *zap.Logger) *ChatService {
	return &ChatService{
		store:      store,
		router:     router,
		media:      media,
		sessions:   sessions,
		markdown:   goldmark.New(),
		dailyLimit: dailyLimit,
		log:        log,
	}
}

func (s *ChatService) NewConversation(ctx context.Context, userID, title string) (*entities.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = entities.DefaultConversationTitle
	}
	return s.store.CreateConversation(ctx, userID, title)
}

func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]entities.Conversation, error) {
	return s.store.ListConversations(ctx, userID)
}

// LatestConversation returns the most recently updated conversation of the user,
// creating one when the user has none.
func (s *ChatService) LatestConversation(ctx context.Context, userID string) (*entities.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) > 0 {
		return &convs[0], nil
	}
	return s.NewConversation(ctx, userID, "")
}

func (s *ChatService) GetMessages(ctx context.Context, userID, conversationID string) ([]entities.Message, error) {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

func (s *ChatService) RenameConversation(ctx context.Context, userID, conversationID, title string) (*entities.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", entities.ErrInvalidInput)
	}
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.store.UpdateConversationTitle(ctx, conversationID, title)
}

func (s *ChatService) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	if _, err := s.ownedConversation(ctx, userID, conversationID); err != nil {
		return err
	}
	return s.store.DeleteConversation(ctx, conversationID)
}

// AddMessage stores a message in an owned conversation and bumps its updated_at.
func (s *ChatService) AddMessage(ctx context.Context, userID string, msg *entities.Message) error {
	if _, err := s.ownedConversation(ctx, userID, msg.ConversationID); err != nil {
		return err
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return err
	}
	return s.store.TouchConversation(ctx, msg.ConversationID)
}

// SendMessage stores the user's message, produces one AI answer and stores it too.
func (s *ChatService) SendMessage(ctx context.Context, userID, conversationID, content, imageURL string) (*entities.Exchange, error) {
	content = strings.TrimSpace(content)
	if content == "" && imageURL == "" {
		return nil, fmt.Errorf("%w: message is empty", entities.ErrInvalidInput)
	}
	if content == "" {
		content = "Describe esta imagen"
	}

	conv, err := s.ownedConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	if !s.sessions.StartProcessing(conversationID) {
		return nil, entities.ErrBusy
	}
	defer s.sessions.FinishProcessing(conversationID)

	// The send counts against the quota before anything is stored.
	counted, err := s.store.ReserveSent(ctx, userID, s.dailyLimit)
	if err != nil {
		return nil, err
	}
	if !counted {
		return nil, entities.ErrQuotaExceeded
	}

	history, err := s.store.RecentMessages(ctx, conversationID, historyLimit)
	if err != nil {
		return nil, err
	}

	userMsg := &entities.Message{
		ConversationID: conversationID,
		Content:        content,
		Sender:         entities.SenderUser,
		MessageType:    entities.MessageTypeText,
	}
	if imageURL != "" {
		userMsg.Metadata = map[string]any{"image_url": imageURL}
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	var aiMsg *entities.Message
	var provider string
	if imageURL == "" && IsImageRequest(content) {
		aiMsg, provider, err = s.imageAnswer(ctx, userID, content)
	} else {
		aiMsg, provider, err = s.textAnswer(ctx, userID, content, imageURL, history)
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Error("answer failed", zap.String("conversation_id", conversationID), zap.Error(err))
		aiMsg = &entities.Message{Content: errorReply, MessageType: entities.MessageTypeText, Metadata: map[string]any{"error": true}}
		provider = ""
	}

	aiMsg.ConversationID = conversationID
	aiMsg.Sender = entities.SenderAI
	if err := s.store.CreateMessage(ctx, aiMsg); err != nil {
		return nil, err
	}
	if err := s.store.IncrementReceived(ctx, userID); err != nil {
		s.log.Warn("usage counter not updated", zap.String("user_id", userID), zap.Error(err))
	}

	if len(history) == 0 && conv.HasDefaultTitle() {
		if _, err := s.store.UpdateConversationTitle(ctx, conversationID, conversationTitle(content)); err != nil {
			return nil, err
		}
	} else if err := s.store.TouchConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	return &entities.Exchange{UserMessage: userMsg, AIMessage: aiMsg, Provider: provider}, nil
}

func (s *ChatService) textAnswer(ctx context.Context, userID, content, imageURL string, history []entities.Message) (*entities.Message, string, error) {
	text, provider, err := s.router.Chat(ctx, interfaces.ChatRequest{
		SystemPrompt: SystemPrompt,
		History:      chatTurns(history),
		Prompt:       content,
		ImageURL:     imageURL,
		MaxTokens:    2000,
		Temperature:  0.7,
		CacheScope:   userID,
	})
	if err != nil {
		return nil, "", err
	}

	meta := map[string]any{"provider": provider}
	var html bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &html); err == nil {
		meta["html"] = html.String()
	}
	return &entities.Message{Content: text, MessageType: entities.MessageTypeText, Metadata: meta}, provider, nil
}

func (s *ChatService) imageAnswer(ctx context.Context, userID, content string) (*entities.Message, string, error) {
	result, err := s.media.GenerateImage(ctx, userID, content, interfaces.ImageOptions{})
	if err != nil {
		return nil, "", err
	}
	return &entities.Message{
		Content:     fmt.Sprintf("He generado una imagen basada en tu descripción: %q", content),
		MessageType: entities.MessageTypeImage,
		Metadata: map[string]any{
			"image_url": result.ImageURL,
			"media_id":  result.MediaID,
			"provider":  result.ModelUsed,
			"prompt":    content,
		},
	}, result.ModelUsed, nil
}

// Usage returns today's counters for the user against the daily limit.
func (s *ChatService) Usage(ctx context.Context, userID string) (*entities.UsageStatus, error) {
	sent, received, err := s.store.TodayUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return entities.NewUsageStatus(userID, sent, received, s.dailyLimit), nil
}

// ClearHistory drops the user's cached answers so repeated prompts reach a provider again.
func (s *ChatService) ClearHistory(userID string) {
	s.router.ClearScope(userID)
}

func (s *ChatService) ProviderStatus(ctx context.Context) []ProviderStatus {
	return s.router.Status(ctx)
}

// ActiveRequests is the number of conversations waiting on an AI answer.
func (s *ChatService) ActiveRequests() int {
	return s.sessions.Active()
}

func (s *ChatService) ownedConversation(ctx context.Context, userID, conversationID string) (*entities.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		// Do not reveal that the conversation exists.
		return nil, entities.ErrNotFound
	}
	return conv, nil
}

func chatTurns(history []entities.Message) []interfaces.ChatTurn {
	turns := make([]interfaces.ChatTurn, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Sender == entities.SenderAI {
			role = "assistant"
		}
		turns = append(turns, interfaces.ChatTurn{Role: role, Content: m.Content})
	}
	return turns
}

func conversationTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	r := []rune(title)
	if len(r) > titleMaxLength {
		return strings.TrimSpace(string(r[:titleMaxLength]))
	}
	return title
}
