package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pulse_client_state (
		scope TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (scope, key)
	)`,
}

// PostgresStore persists client state in a pulse_client_state table so a
// restarted service can resume an employee's open conversation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) set(ctx context.Context, scope, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pulse_client_state (scope, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (scope, key) DO UPDATE SET value = $3, updated_at = now()`,
		scope, key, value)
	return err
}

func (s *PostgresStore) get(ctx context.Context, scope, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM pulse_client_state WHERE scope = $1 AND key = $2`,
		scope, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *PostgresStore) delete(ctx context.Context, scope, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM pulse_client_state WHERE scope = $1 AND key = $2`,
		scope, key)
	return err
}

func (s *PostgresStore) SaveConversationID(ctx context.Context, userID, conversationID string) error {
	return s.set(ctx, scopeConversation, userID, conversationID)
}

func (s *PostgresStore) LoadConversationID(ctx context.Context, userID string) (string, error) {
	return s.get(ctx, scopeConversation, userID)
}

func (s *PostgresStore) ClearConversationID(ctx context.Context, userID string) error {
	return s.delete(ctx, scopeConversation, userID)
}

func (s *PostgresStore) SaveAccessToken(ctx context.Context, token string) error {
	return s.set(ctx, scopeCredentials, accessTokenKey, token)
}

func (s *PostgresStore) LoadAccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, scopeCredentials, accessTokenKey)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
