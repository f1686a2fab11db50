package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carelink-project/carelink-multi-agent/types"
)

// PostgresStore is the durable Store backed by pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the database and ensures the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS conversation_turns (
	id         BIGSERIAL PRIMARY KEY,
	session_id TEXT        NOT NULL,
	user_id    TEXT        NOT NULL,
	domain     TEXT        NOT NULL,
	input      TEXT        NOT NULL,
	output     TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_turns_user_created ON conversation_turns (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS user_contexts (
	user_id    TEXT PRIMARY KEY,
	summary    TEXT        NOT NULL DEFAULT '',
	keywords   TEXT[]      NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecentTurns returns up to limit turns for the user, oldest to newest.
func (s *PostgresStore) RecentTurns(ctx context.Context, userID string, limit int) ([]types.ConversationTurn, error) {
	rows, err := s.pool.Query(ctx, `
SELECT session_id, user_id, domain, input, output, created_at
FROM (
	SELECT session_id, user_id, domain, input, output, created_at
	FROM conversation_turns
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2
) recent
ORDER BY created_at ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent turns: %w", err)
	}
	defer rows.Close()

	var out []types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		if err := rows.Scan(&t.SessionID, &t.UserID, &t.Domain, &t.Input, &t.Output, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveTurn appends one turn.
func (s *PostgresStore) SaveTurn(ctx context.Context, turn *types.ConversationTurn) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO conversation_turns (session_id, user_id, domain, input, output, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		turn.SessionID, turn.UserID, turn.Domain, turn.Input, turn.Output, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// UserContext returns the stored context or nil when absent.
func (s *PostgresStore) UserContext(ctx context.Context, userID string) (*types.UserContext, error) {
	var uc types.UserContext
	err := s.pool.QueryRow(ctx, `
SELECT user_id, summary, keywords, updated_at
FROM user_contexts WHERE user_id = $1`, userID).
		Scan(&uc.UserID, &uc.Summary, &uc.Keywords, &uc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user context: %w", err)
	}
	return &uc, nil
}

// SaveUserContext upserts the user's context (last writer wins).
func (s *PostgresStore) SaveUserContext(ctx context.Context, uc *types.UserContext) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO user_contexts (user_id, summary, keywords, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET summary = EXCLUDED.summary,
    keywords = EXCLUDED.keywords,
    updated_at = EXCLUDED.updated_at`,
		uc.UserID, uc.Summary, uc.Keywords, uc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save user context: %w", err)
	}
	return nil
}
