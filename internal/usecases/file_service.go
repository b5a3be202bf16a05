package usecases

import (
	"context"
	"fmt"
	"path/filepath"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/interfaces"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// MaxUploadSize matches the HTTP request size limit.
const MaxUploadSize = 10 << 20

// FileService stores uploads and their analysis.
type FileService struct {
	store    interfaces.ChatStore
	storage  interfaces.ObjectStorage
	analyzer *FileAnalyzer
	chat     *ChatService
	log      *zap.Logger
	now      func() time.Time
}

func NewFileService(store interfaces.ChatStore, storage interfaces.ObjectStorage, analyzer *FileAnalyzer, chat *ChatService, log *zap.Logger) *FileService {
	return &FileService{
		store:    store,
		storage:  storage,
		analyzer: analyzer,
		chat:     chat,
		log:      log,
		now:      time.Now,
	}
}

// Upload stores the file, analyzes it and, when conversationID is set, posts the upload
// and its analysis into that conversation.
func (s *FileService) Upload(ctx context.Context, userID, filename string, data []byte, conversationID string) (*entities.FileRecord, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, fmt.Errorf("%w: filename is required", entities.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", entities.ErrInvalidInput)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", entities.ErrInvalidInput, MaxUploadSize)
	}
	if conversationID != "" {
		if _, err := s.chat.ownedConversation(ctx, userID, conversationID); err != nil {
			return nil, err
		}
	}

	contentType := DetectContentType(filename, data)
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = mimetype.Detect(data).Extension()
	}
	path := fmt.Sprintf("%s/%d%s", userID, s.now().UnixMilli(), ext)
	if err := s.storage.Upload(ctx, path, contentType, data); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	rec := &entities.FileRecord{
		UserID:      userID,
		Filename:    filename,
		FileType:    contentType,
		FileSize:    int64(len(data)),
		StoragePath: path,
		Status:      entities.FileStatusProcessing,
	}
	if err := s.store.CreateFile(ctx, rec); err != nil {
		return nil, err
	}

	if conversationID != "" {
		s.post(ctx, userID, &entities.Message{
			ConversationID: conversationID,
			Content:        "He subido el archivo: " + filename,
			Sender:         entities.SenderUser,
			MessageType:    entities.MessageTypeFile,
			Metadata: map[string]any{
				"file_id":   rec.ID,
				"file_name": filename,
				"file_size": rec.FileSize,
				"file_type": contentType,
			},
		})
	}

	result, status := s.analyzer.Analyze(ctx, rec, data)
	if err := s.store.UpdateFileAnalysis(ctx, rec.ID, result, status); err != nil {
		return nil, err
	}
	rec.AnalysisResult = result
	rec.Status = status
	rec.DownloadURL = s.storage.PublicURL(rec.StoragePath)

	if conversationID != "" {
		s.post(ctx, userID, &entities.Message{
			ConversationID: conversationID,
			Content:        FormatAnalysis(rec),
			Sender:         entities.SenderAI,
			MessageType:    entities.MessageTypeText,
			Metadata:       map[string]any{"file_id": rec.ID},
		})
	}
	return rec, nil
}

// post logs instead of failing: the upload itself already succeeded.
func (s *FileService) post(ctx context.Context, userID string, msg *entities.Message) {
	if err := s.chat.AddMessage(ctx, userID, msg); err != nil {
		s.log.Warn("file message not stored", zap.String("conversation_id", msg.ConversationID), zap.Error(err))
	}
}

func (s *FileService) GetFile(ctx context.Context, userID, id string) (*entities.FileRecord, error) {
	rec, err := s.store.GetFile(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID != userID {
		return nil, entities.ErrNotFound
	}
	rec.DownloadURL = s.storage.PublicURL(rec.StoragePath)
	return rec, nil
}

func (s *FileService) ListFiles(ctx context.Context, userID string) ([]entities.FileRecord, error) {
	files, err := s.store.ListFiles(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range files {
		files[i].DownloadURL = s.storage.PublicURL(files[i].StoragePath)
	}
	return files, nil
}
