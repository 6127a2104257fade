package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// InitDB initializes the PostgreSQL connection pool
func InitDB(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL")
	return pool, nil
}

// schema is applied statement by statement; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id                     TEXT PRIMARY KEY,
		initiator_id           TEXT NOT NULL,
		recipient_id           TEXT NOT NULL,
		pair_key               TEXT NOT NULL UNIQUE,
		last_message_text      TEXT,
		last_message_sender    TEXT,
		gated                  BOOLEAN NOT NULL DEFAULT TRUE,
		awaiting_first_contact BOOLEAN NOT NULL DEFAULT TRUE,
		created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS conversations_initiator_idx ON conversations (initiator_id, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS conversations_recipient_idx ON conversations (recipient_id, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		sender_id       TEXT NOT NULL,
		text            TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE conversations ADD COLUMN IF NOT EXISTS pending_first_message BOOLEAN NOT NULL DEFAULT FALSE`,
	// seq breaks created_at ties, timestamptz only keeps microseconds
	`ALTER TABLE messages ADD COLUMN IF NOT EXISTS seq BIGSERIAL`,
	`DROP INDEX IF EXISTS messages_conversation_idx`,
	`CREATE INDEX IF NOT EXISTS messages_conversation_seq_idx ON messages (conversation_id, created_at, seq)`,
}

// Migrate creates the tables and indexes used by the postgres stores.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	log.Info().Int("statements", len(schema)).Msg("postgres schema ready")
	return nil
}
