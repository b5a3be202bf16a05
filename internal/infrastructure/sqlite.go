package infrastructure

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_user_idx ON conversations (user_id, updated_at);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	content TEXT NOT NULL,
	sender TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);

CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size INTEGER NOT NULL,
	storage_path TEXT NOT NULL,
	analysis_result TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'processing',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS generated_media (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	media_type TEXT NOT NULL,
	prompt TEXT NOT NULL,
	storage_path TEXT,
	generation_params TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'generating',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS message_usage (
	user_id TEXT NOT NULL,
	date TEXT NOT NULL,
	messages_sent INTEGER NOT NULL DEFAULT 0,
	messages_received INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, date)
);`

// OpenSQLite opens the demo-mode database. Use ":memory:" in tests.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}
