package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sigma_ai/internal/entities"
	"sigma_ai/internal/interfaces"
	"time"

	"github.com/google/uuid"
)

// sqliteTime is fixed width so that text ordering matches time ordering.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore is the demo-mode store used when no Supabase database is configured.
type SQLiteStore struct {
	db *sql.DB
}

var _ interfaces.ChatStore = (*SQLiteStore)(nil)

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (r *SQLiteStore) Close() {
	r.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTime, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeJSON(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

func decodeJSON(s string) map[string]any {
	m := map[string]any{}
	if s != "" {
		_ = json.Unmarshal([]byte(s), &m)
	}
	return m
}

func sqlNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return entities.ErrNotFound
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// Conversations

func (r *SQLiteStore) CreateConversation(ctx context.Context, userID, title string) (*entities.Conversation, error) {
	if title == "" {
		title = entities.DefaultConversationTitle
	}
	now := time.Now().UTC()
	c := &entities.Conversation{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.UserID, c.Title, formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func scanConversation(scan func(...any) error) (*entities.Conversation, error) {
	var c entities.Conversation
	var created, updated string
	if err := scan(&c.ID, &c.UserID, &c.Title, &created, &updated); err != nil {
		return nil, err
	}
	c.CreatedAt, c.UpdatedAt = parseTime(created), parseTime(updated)
	return &c, nil
}

func (r *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]entities.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	conversations := []entities.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}

func (r *SQLiteStore) GetConversation(ctx context.Context, id string) (*entities.Conversation, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ?", id)
	c, err := scanConversation(row.Scan)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	return c, nil
}

func (r *SQLiteStore) UpdateConversationTitle(ctx context.Context, id, title string) (*entities.Conversation, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?",
		title, formatTime(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	if err := affected(res); err != nil {
		return nil, err
	}
	return r.GetConversation(ctx, id)
}

func (r *SQLiteStore) TouchConversation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE conversations SET updated_at = ? WHERE id = ?", formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *SQLiteStore) DeleteConversation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return affected(res)
}

// Messages

func (r *SQLiteStore) CreateMessage(ctx context.Context, msg *entities.Message) error {
	prepareMessage(msg)
	meta, err := encodeJSON(msg.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, content, sender, message_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Content, msg.Sender, msg.MessageType, meta, formatTime(msg.CreatedAt))
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]entities.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, content, sender, message_type, metadata, created_at
		FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return scanSQLiteMessages(rows)
}

func (r *SQLiteStore) RecentMessages(ctx context.Context, conversationID string, n int) ([]entities.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, conversation_id, content, sender, message_type, metadata, created_at FROM (
			SELECT rowid AS rid, * FROM messages WHERE conversation_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
		) ORDER BY created_at ASC, rid ASC
	`, conversationID, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	return scanSQLiteMessages(rows)
}

func scanSQLiteMessages(rows *sql.Rows) ([]entities.Message, error) {
	defer rows.Close()
	messages := []entities.Message{}
	for rows.Next() {
		var m entities.Message
		var meta, created string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.Sender, &m.MessageType, &meta, &created); err != nil {
			return nil, err
		}
		m.Metadata = decodeJSON(meta)
		m.CreatedAt = parseTime(created)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Generated media

func (r *SQLiteStore) CreateGeneratedMedia(ctx context.Context, userID, mediaType, prompt string, params map[string]any) (*entities.GeneratedMedia, error) {
	m := newGeneratedMedia(userID, mediaType, prompt, params)
	encoded, err := encodeJSON(m.GenerationParams)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO generated_media (id, user_id, media_type, prompt, storage_path, generation_params, status, created_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?, ?)
	`, m.ID, m.UserID, m.MediaType, m.Prompt, encoded, m.Status, formatTime(m.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("create generated media: %w", err)
	}
	return m, nil
}

const mediaColumns = "id, user_id, media_type, prompt, storage_path, generation_params, status, created_at"

func scanMedia(scan func(...any) error) (*entities.GeneratedMedia, error) {
	var m entities.GeneratedMedia
	var path sql.NullString
	var params, created string
	if err := scan(&m.ID, &m.UserID, &m.MediaType, &m.Prompt, &path, &params, &m.Status, &created); err != nil {
		return nil, err
	}
	if path.Valid {
		m.StoragePath = &path.String
	}
	m.GenerationParams = decodeJSON(params)
	m.CreatedAt = parseTime(created)
	return &m, nil
}

func (r *SQLiteStore) CompleteGeneratedMedia(ctx context.Context, id, storagePath string) (*entities.GeneratedMedia, error) {
	res, err := r.db.ExecContext(ctx, "UPDATE generated_media SET storage_path = ?, status = ? WHERE id = ?",
		storagePath, entities.MediaStatusCompleted, id)
	if err != nil {
		return nil, fmt.Errorf("complete generated media: %w", err)
	}
	if err := affected(res); err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx, "SELECT "+mediaColumns+" FROM generated_media WHERE id = ?", id)
	m, err := scanMedia(row.Scan)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	return m, nil
}

func (r *SQLiteStore) FailGeneratedMedia(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE generated_media SET status = ? WHERE id = ?", entities.MediaStatusError, id)
	return err
}

func (r *SQLiteStore) ListGeneratedMedia(ctx context.Context, userID string) ([]entities.GeneratedMedia, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+mediaColumns+" FROM generated_media WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list generated media: %w", err)
	}
	defer rows.Close()

	media := []entities.GeneratedMedia{}
	for rows.Next() {
		m, err := scanMedia(rows.Scan)
		if err != nil {
			return nil, err
		}
		media = append(media, *m)
	}
	return media, rows.Err()
}

// Files

const fileColumns = "id, user_id, filename, file_type, file_size, storage_path, analysis_result, status, created_at"

func scanFile(scan func(...any) error) (*entities.FileRecord, error) {
	var f entities.FileRecord
	var result, created string
	if err := scan(&f.ID, &f.UserID, &f.Filename, &f.FileType, &f.FileSize, &f.StoragePath, &result, &f.Status, &created); err != nil {
		return nil, err
	}
	f.AnalysisResult = decodeJSON(result)
	f.CreatedAt = parseTime(created)
	return &f, nil
}

func (r *SQLiteStore) CreateFile(ctx context.Context, rec *entities.FileRecord) error {
	prepareFile(rec)
	result, err := encodeJSON(rec.AnalysisResult)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, "INSERT INTO files ("+fileColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.UserID, rec.Filename, rec.FileType, rec.FileSize, rec.StoragePath, result, rec.Status, formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (r *SQLiteStore) UpdateFileAnalysis(ctx context.Context, id string, result map[string]any, status string) error {
	encoded, err := encodeJSON(result)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, "UPDATE files SET analysis_result = ?, status = ? WHERE id = ?", encoded, status, id)
	if err != nil {
		return fmt.Errorf("update file analysis: %w", err)
	}
	return affected(res)
}

func (r *SQLiteStore) GetFile(ctx context.Context, id string) (*entities.FileRecord, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	f, err := scanFile(row.Scan)
	if err != nil {
		return nil, sqlNotFound(err)
	}
	return f, nil
}

func (r *SQLiteStore) ListFiles(ctx context.Context, userID string) ([]entities.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE user_id = ? ORDER BY created_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := []entities.FileRecord{}
	for rows.Next() {
		f, err := scanFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, rows.Err()
}

// Usage

func (r *SQLiteStore) ReserveSent(ctx context.Context, userID string, limit int) (bool, error) {
	var sent int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO message_usage (user_id, date, messages_sent, messages_received)
		VALUES (?1, ?2, 1, 0)
		ON CONFLICT (user_id, date)
		DO UPDATE SET messages_sent = messages_sent + 1
		WHERE ?3 <= 0 OR message_usage.messages_sent < ?3
		RETURNING messages_sent
	`, userID, today(), limit).Scan(&sent)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteStore) IncrementReceived(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO message_usage (user_id, date, messages_sent, messages_received)
		VALUES (?, ?, 0, 1)
		ON CONFLICT (user_id, date)
		DO UPDATE SET messages_received = messages_received + 1
	`, userID, today())
	return err
}

func (r *SQLiteStore) TodayUsage(ctx context.Context, userID string) (sent, received int, err error) {
	err = r.db.QueryRowContext(ctx,
		"SELECT messages_sent, messages_received FROM message_usage WHERE user_id = ? AND date = ?",
		userID, today()).Scan(&sent, &received)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, nil
	}
	return sent, received, err
}
