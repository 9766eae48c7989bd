package store

import (
	"context"
	"sync"
)

const (
	scopeConversation = "conversation"
	scopeCredentials  = "credentials"

	accessTokenKey = "access_token"
)

type entryKey struct {
	scope string
	key   string
}

// InMemoryStore keeps client state in process memory. It is the default
// when no database is configured and the backing store for tests.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[entryKey]string)}
}

func (s *InMemoryStore) set(scope, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey{scope: scope, key: key}] = value
}

func (s *InMemoryStore) get(scope, key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[entryKey{scope: scope, key: key}]
}

func (s *InMemoryStore) delete(scope, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey{scope: scope, key: key})
}

func (s *InMemoryStore) SaveConversationID(_ context.Context, userID, conversationID string) error {
	s.set(scopeConversation, userID, conversationID)
	return nil
}

func (s *InMemoryStore) LoadConversationID(_ context.Context, userID string) (string, error) {
	return s.get(scopeConversation, userID), nil
}

func (s *InMemoryStore) ClearConversationID(_ context.Context, userID string) error {
	s.delete(scopeConversation, userID)
	return nil
}

func (s *InMemoryStore) SaveAccessToken(_ context.Context, token string) error {
	s.set(scopeCredentials, accessTokenKey, token)
	return nil
}

func (s *InMemoryStore) LoadAccessToken(_ context.Context) (string, error) {
	return s.get(scopeCredentials, accessTokenKey), nil
}

func (s *InMemoryStore) Close() error { return nil }
