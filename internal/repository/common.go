package repository

import (
	"sigma_ai/internal/entities"
	"time"

	"github.com/google/uuid"
)

func today() string {
	return time.Now().UTC().Format("2006-01-02")
}

// prepareMessage fills the defaults both stores apply on insert.
func prepareMessage(msg *entities.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.MessageType == "" {
		msg.MessageType = entities.MessageTypeText
	}
	if msg.Metadata == nil {
		msg.Metadata = map[string]any{}
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
}

func prepareFile(rec *entities.FileRecord) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = entities.FileStatusProcessing
	}
	if rec.AnalysisResult == nil {
		rec.AnalysisResult = map[string]any{}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
}

func newGeneratedMedia(userID, mediaType, prompt string, params map[string]any) *entities.GeneratedMedia {
	if params == nil {
		params = map[string]any{}
	}
	return &entities.GeneratedMedia{
		ID:               uuid.NewString(),
		UserID:           userID,
		MediaType:        mediaType,
		Prompt:           prompt,
		GenerationParams: params,
		Status:           entities.MediaStatusGenerating,
		CreatedAt:        time.Now().UTC(),
	}
}
