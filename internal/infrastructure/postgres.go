package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

// NewPostgresClient connects to the Supabase Postgres database and migrates the schema.
func NewPostgresClient(ctx context.Context, connString string, log *zap.Logger) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}
	if err := client.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Info("postgres ready", zap.Int32("max_conns", config.MaxConns))

	return client, nil
}

// Migrate creates the chat tables when they do not exist yet. On a Supabase project
// the tables usually exist already and this is a no-op.
func (p *PostgresClient) Migrate(ctx context.Context) error {
	statements := []struct {
		name string
		ddl  string
	}{
		{"conversations", `
			CREATE TABLE IF NOT EXISTS conversations (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				title VARCHAR(256) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS conversations_user_idx ON conversations (user_id, updated_at DESC);
		`},
		{"messages", `
			CREATE TABLE IF NOT EXISTS messages (
				id UUID PRIMARY KEY,
				conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				sender VARCHAR(8) NOT NULL,
				message_type VARCHAR(8) NOT NULL DEFAULT 'text',
				metadata JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);
		`},
		{"files", `
			CREATE TABLE IF NOT EXISTS files (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				filename TEXT NOT NULL,
				file_type TEXT NOT NULL,
				file_size BIGINT NOT NULL,
				storage_path TEXT NOT NULL,
				analysis_result JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(16) NOT NULL DEFAULT 'processing',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`},
		{"generated_media", `
			CREATE TABLE IF NOT EXISTS generated_media (
				id UUID PRIMARY KEY,
				user_id TEXT NOT NULL,
				media_type VARCHAR(8) NOT NULL,
				prompt TEXT NOT NULL,
				storage_path TEXT,
				generation_params JSONB NOT NULL DEFAULT '{}',
				status VARCHAR(16) NOT NULL DEFAULT 'generating',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`},
		{"message_usage", `
			CREATE TABLE IF NOT EXISTS message_usage (
				user_id TEXT NOT NULL,
				date DATE NOT NULL,
				messages_sent INT NOT NULL DEFAULT 0,
				messages_received INT NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, date)
			);
		`},
	}

	for _, st := range statements {
		if _, err := p.Pool.Exec(ctx, st.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", st.name, err)
		}
	}
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
