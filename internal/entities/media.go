package entities

import "time"

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

const (
	MediaStatusGenerating = "generating"
	MediaStatusCompleted  = "completed"
	MediaStatusError      = "error"
)

type GeneratedMedia struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	MediaType        string         `json:"media_type"`
	Prompt           string         `json:"prompt"`
	StoragePath      *string        `json:"storage_path"`
	GenerationParams map[string]any `json:"generation_params"`
	Status           string         `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// MediaResult is what the media endpoints return, shaped like the old edge functions.
type MediaResult struct {
	Success          bool           `json:"success"`
	MediaID          string         `json:"media_id"`
	ImageURL         string         `json:"image_url,omitempty"`
	VideoURL         string         `json:"video_url,omitempty"`
	GenerationParams map[string]any `json:"generation_params"`
	ProcessingTime   string         `json:"processing_time"`
	ModelUsed        string         `json:"model_used"`
	Duration         int            `json:"duration,omitempty"`
}
