package repository

import (
	"context"
	"errors"
	"fmt"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/interfaces"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps chat history in the Supabase Postgres database.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ interfaces.ChatStore = (*PostgresStore)(nil)

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (r *PostgresStore) Close() {
	r.db.Close()
}

// invalidTextRepresentation is raised when an id is not a valid uuid.
const invalidTextRepresentation = "22P02"

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return entities.ErrNotFound
	}
	return err
}

// Conversations

func (r *PostgresStore) CreateConversation(ctx context.Context, userID, title string) (*entities.Conversation, error) {
	if title == "" {
		title = entities.DefaultConversationTitle
	}
	now := time.Now().UTC()
	c := &entities.Conversation{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	_, err := r.db.Exec(ctx,
		"INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (r *PostgresStore) ListConversations(ctx context.Context, userID string) ([]entities.Conversation, error) {
	rows, err := r.db.Query(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []entities.Conversation{}
	for rows.Next() {
		var c entities.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *PostgresStore) GetConversation(ctx context.Context, id string) (*entities.Conversation, error) {
	var c entities.Conversation
	err := r.db.QueryRow(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = $1", id).
		Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *PostgresStore) UpdateConversationTitle(ctx context.Context, id, title string) (*entities.Conversation, error) {
	var c entities.Conversation
	err := r.db.QueryRow(ctx, `
		UPDATE conversations SET title = $1, updated_at = $2 WHERE id = $3
		RETURNING id, user_id, title, created_at, updated_at
	`, title, time.Now().UTC(), id).Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *PostgresStore) TouchConversation(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "UPDATE conversations SET updated_at = $1 WHERE id = $2", time.Now().UTC(), id)
	if err != nil {
		return notFound(err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}

func (r *PostgresStore) DeleteConversation(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM conversations WHERE id = $1", id)
	if err != nil {
		return notFound(fmt.Errorf("delete conversation: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// Messages

func (r *PostgresStore) CreateMessage(ctx context.Context, msg *entities.Message) error {
	prepareMessage(msg)
	_, err := r.db.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, content, sender, message_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.ConversationID, msg.Content, msg.Sender, msg.MessageType, msg.Metadata, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, content, sender, message_type, metadata, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return scanPgMessages(rows)
}

func (r *PostgresStore) RecentMessages(ctx context.Context, conversationID string, n int) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, conversation_id, content, sender, message_type, metadata, created_at FROM (
			SELECT * FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC
	`, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return scanPgMessages(rows)
}

func scanPgMessages(rows pgx.Rows) ([]entities.Message, error) {
	defer rows.Close()
	messages := []entities.Message{}
	for rows.Next() {
		var m entities.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.Sender, &m.MessageType, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, err
		}
		if m.Metadata == nil {
			m.Metadata = map[string]any{}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Generated media

func (r *PostgresStore) CreateGeneratedMedia(ctx context.Context, userID, mediaType, prompt string, params map[string]any) (*entities.GeneratedMedia, error) {
	m := newGeneratedMedia(userID, mediaType, prompt, params)
	_, err := r.db.Exec(ctx, `
		INSERT INTO generated_media (id, user_id, media_type, prompt, storage_path, generation_params, status, created_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6, $7)
	`, m.ID, m.UserID, m.MediaType, m.Prompt, m.GenerationParams, m.Status, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create generated media: %w", err)
	}
	return m, nil
}

func (r *PostgresStore) CompleteGeneratedMedia(ctx context.Context, id, storagePath string) (*entities.GeneratedMedia, error) {
	var m entities.GeneratedMedia
	err := r.db.QueryRow(ctx, `
		UPDATE generated_media SET storage_path = $1, status = $2 WHERE id = $3
		RETURNING id, user_id, media_type, prompt, storage_path, generation_params, status, created_at
	`, storagePath, entities.MediaStatusCompleted, id).
		Scan(&m.ID, &m.UserID, &m.MediaType, &m.Prompt, &m.StoragePath, &m.GenerationParams, &m.Status, &m.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *PostgresStore) FailGeneratedMedia(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, "UPDATE generated_media SET status = $1 WHERE id = $2", entities.MediaStatusError, id)
	return notFound(err)
}

func (r *PostgresStore) ListGeneratedMedia(ctx context.Context, userID string) ([]entities.GeneratedMedia, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, media_type, prompt, storage_path, generation_params, status, created_at
		FROM generated_media WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list generated media: %w", err)
	}
	defer rows.Close()

	media := []entities.GeneratedMedia{}
	for rows.Next() {
		var m entities.GeneratedMedia
		if err := rows.Scan(&m.ID, &m.UserID, &m.MediaType, &m.Prompt, &m.StoragePath, &m.GenerationParams, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

// Files

func (r *PostgresStore) CreateFile(ctx context.Context, rec *entities.FileRecord) error {
	prepareFile(rec)
	_, err := r.db.Exec(ctx, `
		INSERT INTO files (id, user_id, filename, file_type, file_size, storage_path, analysis_result, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.ID, rec.UserID, rec.Filename, rec.FileType, rec.FileSize, rec.StoragePath, rec.AnalysisResult, rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (r *PostgresStore) UpdateFileAnalysis(ctx context.Context, id string, result map[string]any, status string) error {
	if result == nil {
		result = map[string]any{}
	}
	tag, err := r.db.Exec(ctx, "UPDATE files SET analysis_result = $1, status = $2 WHERE id = $3", result, status, id)
	if err != nil {
		return notFound(fmt.Errorf("update file analysis: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}

func (r *PostgresStore) GetFile(ctx context.Context, id string) (*entities.FileRecord, error) {
	var f entities.FileRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, filename, file_type, file_size, storage_path, analysis_result, status, created_at
		FROM files WHERE id = $1
	`, id).Scan(&f.ID, &f.UserID, &f.Filename, &f.FileType, &f.FileSize, &f.StoragePath, &f.AnalysisResult, &f.Status, &f.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (r *PostgresStore) ListFiles(ctx context.Context, userID string) ([]entities.FileRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, filename, file_type, file_size, storage_path, analysis_result, status, created_at
		FROM files WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []entities.FileRecord{}
	for rows.Next() {
		var f entities.FileRecord
		if err := rows.Scan(&f.ID, &f.UserID, &f.Filename, &f.FileType, &f.FileSize, &f.StoragePath, &f.AnalysisResult, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Usage

// ReserveSent checks and bumps the counter in one statement so concurrent sends
// cannot both pass at limit-1.
func (r *PostgresStore) ReserveSent(ctx context.Context, userID string, limit int) (bool, error) {
	var sent int
	err := r.db.QueryRow(ctx, `
		INSERT INTO message_usage (user_id, date, messages_sent, messages_received)
		VALUES ($1, $2, 1, 0)
		ON CONFLICT (user_id, date)
		DO UPDATE SET messages_sent = message_usage.messages_sent + 1
		WHERE $3::int <= 0 OR message_usage.messages_sent < $3::int
		RETURNING messages_sent
	`, userID, today(), limit).Scan(&sent)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresStore) IncrementReceived(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (user_id, date, messages_sent, messages_received)
		VALUES ($1, $2, 0, 1)
		ON CONFLICT (user_id, date)
		DO UPDATE SET messages_received = message_usage.messages_received + 1
	`, userID, today())
	return err
}

func (r *PostgresStore) TodayUsage(ctx context.Context, userID string) (sent, received int, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT messages_sent, messages_received FROM message_usage WHERE user_id = $1 AND date = $2
	`, userID, today()).Scan(&sent, &received)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, nil // No record means no usage
	}
	return sent, received, err
}
