package store

import (
	"context"
	"testing"
)

func TestInMemoryConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	id, err := s.LoadConversationID(ctx, "emp-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty conversation id, got %q", id)
	}

	if err := s.SaveConversationID(ctx, "emp-1", "conv-42"); err != nil {
		t.Fatalf("save: %v", err)
	}
	id, err = s.LoadConversationID(ctx, "emp-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if id != "conv-42" {
		t.Fatalf("expected conv-42, got %q", id)
	}

	// Another user does not see it.
	id, _ = s.LoadConversationID(ctx, "emp-2")
	if id != "" {
		t.Fatalf("expected empty for other user, got %q", id)
	}

	if err := s.ClearConversationID(ctx, "emp-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	id, _ = s.LoadConversationID(ctx, "emp-1")
	if id != "" {
		t.Fatalf("expected cleared conversation id, got %q", id)
	}
}

func TestInMemoryAccessToken(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	token, err := s.LoadAccessToken(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}

	if err := s.SaveAccessToken(ctx, "secret"); err != nil {
		t.Fatalf("save: %v", err)
	}
	token, _ = s.LoadAccessToken(ctx)
	if token != "secret" {
		t.Fatalf("expected secret, got %q", token)
	}
}

func TestTokenSourceFallback(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	ts := TokenSource{Store: s, Fallback: "from-config"}
	token, err := ts.Token(ctx)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if token != "from-config" {
		t.Fatalf("expected fallback token, got %q", token)
	}

	_ = s.SaveAccessToken(ctx, "persisted")
	token, _ = ts.Token(ctx)
	if token != "persisted" {
		t.Fatalf("expected persisted token, got %q", token)
	}
}

func TestNewDefaultsToInMemory(t *testing.T) {
	s, err := New(context.Background(), "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("expected in-memory store, got %T", s)
	}
}
