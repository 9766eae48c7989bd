package store

import (
	"context"
	"strings"
)

// Store holds the two durable keys the session controller consumes:
// the active conversation id per user, and the backend access token.
// Absent values read back as empty strings, never as errors.
type Store interface {
	SaveConversationID(ctx context.Context, userID, conversationID string) error
	LoadConversationID(ctx context.Context, userID string) (string, error)
	ClearConversationID(ctx context.Context, userID string) error

	SaveAccessToken(ctx context.Context, token string) error
	LoadAccessToken(ctx context.Context) (string, error)

	Close() error
}

// New creates a postgres-backed store when configured, otherwise in-memory.
func New(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// TokenSource resolves the bearer token from the store, falling back to a
// statically configured value when nothing is persisted.
type TokenSource struct {
	Store    Store
	Fallback string
}

func (t TokenSource) Token(ctx context.Context) (string, error) {
	if t.Store != nil {
		token, err := t.Store.LoadAccessToken(ctx)
		if err != nil {
			return "", err
		}
		if token != "" {
			return token, nil
		}
	}
	return t.Fallback, nil
}
