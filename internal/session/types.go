package session

import (
	"time"

	"github.com/antoniostano/pulse/internal/transcript"
)

// CreateRequest defines payload for opening a check-in session.
type CreateRequest struct {
	UserID string `json:"user_id"`
}

// Snapshot is the read-only view of a session returned over HTTP.
type Snapshot struct {
	SessionID      string                 `json:"session_id"`
	UserID         string                 `json:"user_id"`
	ConversationID string                 `json:"conversation_id"`
	Status         Status                 `json:"status"`
	MessageType    transcript.MessageType `json:"message_type"`
	TurnsRemaining int                    `json:"turns_remaining"`
	Resumed        bool                   `json:"resumed"`
	Messages       []transcript.Message   `json:"messages"`
	StartedAt      time.Time              `json:"started_at"`
	LastActivityAt time.Time              `json:"last_activity_at"`
}

// SnapshotOf renders a session clone into its wire form.
func SnapshotOf(s *Session, resumed bool) Snapshot {
	return Snapshot{
		SessionID:      s.ID,
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
		Status:         s.Status,
		MessageType:    s.MessageType,
		TurnsRemaining: s.TurnsRemaining,
		Resumed:        resumed,
		Messages:       s.Transcript.Messages(),
		StartedAt:      s.StartedAt,
		LastActivityAt: s.LastActivityAt,
	}
}
