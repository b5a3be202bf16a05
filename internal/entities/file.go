package entities

import "time"

const (
	FileStatusProcessing = "processing"
	FileStatusCompleted  = "completed"
	FileStatusError      = "error"
)

type FileRecord struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Filename       string         `json:"filename"`
	FileType       string         `json:"file_type"`
	FileSize       int64          `json:"file_size"`
	StoragePath    string         `json:"storage_path"`
	AnalysisResult map[string]any `json:"analysis_result"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`

	DownloadURL string `json:"download_url,omitempty"`
}
