package interfaces

import (
	"context"
	"sigma_ai/internal/entities"
	"time"
)

// ChatTurn is one prior message handed to a provider as context.
type ChatTurn struct {
	Role    string // "user" or "assistant"
	Content string
}

type ChatRequest struct {
	SystemPrompt string
	History      []ChatTurn
	Prompt       string
	ImageURL     string
	MaxTokens    int
	Temperature  float64
	// CacheScope is who a cached answer may be served back to, usually the user id.
	// Empty disables caching for the request.
	CacheScope string
}

// ChatProvider is an AI vendor able to answer a chat prompt.
type ChatProvider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

type ImageOptions struct {
	Style string
	Size  string
}

// GeneratedImage carries either raw bytes to upload or a vendor URL.
type GeneratedImage struct {
	Data        []byte
	ContentType string
	URL         string
	Model       string
}

type ImageProvider interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string, opts ImageOptions) (*GeneratedImage, error)
}

// TimeoutProvider is implemented by providers whose calls legitimately outlast the
// router's default per-call timeout.
type TimeoutProvider interface {
	CallTimeout() time.Duration
}

// HealthChecker is implemented by providers that expose a cheap status check.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, data []byte) error
	PublicURL(path string) string
}

type ChatStore interface {
	CreateConversation(ctx context.Context, userID, title string) (*entities.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]entities.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entities.Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) (*entities.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error

	CreateMessage(ctx context.Context, msg *entities.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]entities.Message, error)
	RecentMessages(ctx context.Context, conversationID string, n int) ([]entities.Message, error)

	CreateGeneratedMedia(ctx context.Context, userID, mediaType, prompt string, params map[string]any) (*entities.GeneratedMedia, error)
	CompleteGeneratedMedia(ctx context.Context, id, storagePath string) (*entities.GeneratedMedia, error)
	FailGeneratedMedia(ctx context.Context, id string) error
	ListGeneratedMedia(ctx context.Context, userID string) ([]entities.GeneratedMedia, error)

	CreateFile(ctx context.Context, rec *entities.FileRecord) error
	UpdateFileAnalysis(ctx context.Context, id string, result map[string]any, status string) error
	GetFile(ctx context.Context, id string) (*entities.FileRecord, error)
	ListFiles(ctx context.Context, userID string) ([]entities.FileRecord, error)

	// ReserveSent counts one sent message unless the user already reached limit today
	// (limit <= 0 means unlimited). It reports whether the message was counted.
	ReserveSent(ctx context.Context, userID string, limit int) (bool, error)
	IncrementReceived(ctx context.Context, userID string) error
	TodayUsage(ctx context.Context, userID string) (sent, received int, err error)

	Close()
}
