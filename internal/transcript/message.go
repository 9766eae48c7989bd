package transcript

import (
	"time"

	"github.com/google/uuid"
)

// MessageType is the server-assigned dialogue phase tag.
type MessageType string

const (
	TypeWelcome        MessageType = "welcome"
	TypeNormalQuestion MessageType = "normal_question"
	TypeFollowup1      MessageType = "followup_1"
	TypeFollowup2      MessageType = "followup_2"
	TypeInsights       MessageType = "insights"
	TypeUserMsg        MessageType = "user_msg"
)

// Sender type tags used on the wire by the well-being backend.
const (
	SenderEmployee = "employee"
	SenderChatbot  = "chatbot"
)

// Message is a single transcript entry. Immutable once appended.
type Message struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	IsUser    bool        `json:"is_user"`
	Timestamp string      `json:"timestamp"`
	Type      MessageType `json:"message_type"`
}

// ChatEntry is the {sender_type, message} pair posted back to the backend.
type ChatEntry struct {
	SenderType string `json:"sender_type"`
	Message    string `json:"message"`
}

// HistoryMessage is one entry of a fetched conversation history.
type HistoryMessage struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	SenderType  string `json:"sender_type"`
	Time        string `json:"time"`
	MessageType string `json:"message_type"`
}

// NewUserMessage builds a user turn stamped with the current wall clock.
func NewUserMessage(content string) Message {
	return Message{
		ID:        "user-" + uuid.NewString(),
		Content:   content,
		IsUser:    true,
		Timestamp: stamp(time.Now()),
		Type:      TypeUserMsg,
	}
}

// NewBotMessage builds a bot reply of the given phase.
func NewBotMessage(content string, t MessageType) Message {
	return Message{
		ID:        "bot-" + uuid.NewString(),
		Content:   content,
		IsUser:    false,
		Timestamp: stamp(time.Now()),
		Type:      t,
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.TimeOnly)
}
