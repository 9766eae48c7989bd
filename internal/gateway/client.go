package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antoniostano/pulse/internal/transcript"
)

// StartResponse is the backend's answer to starting a conversation.
type StartResponse struct {
	ConversationID  string `json:"conversation_id"`
	ChatbotResponse string `json:"chatbot_response"`
}

// MessageRequest is the payload for one dialogue exchange. ChatHistory is
// the full transcript so far, excluding Message itself.
type MessageRequest struct {
	Message        string                  `json:"message"`
	ConversationID string                  `json:"conversation_id"`
	MessageType    transcript.MessageType  `json:"message_type"`
	ChatHistory    []transcript.ChatEntry  `json:"chat_history"`
	QuestionSet    []string                `json:"question_set"`
}

// MessageResponse carries the next bot utterance and the updated phase.
type MessageResponse struct {
	ChatbotResponse string                 `json:"chatbot_response"`
	MessageType     transcript.MessageType `json:"message_type"`
	QuestionSet     []string               `json:"question_set"`
}

// Client is the well-being backend consumed by the session controller.
// Dialogue generation, transcription and synthesis all live behind it.
type Client interface {
	Start(ctx context.Context) (StartResponse, error)
	History(ctx context.Context, conversationID string) ([]transcript.HistoryMessage, error)
	PostMessage(ctx context.Context, req MessageRequest) (MessageResponse, error)
	Insights(ctx context.Context, conversationID string) (string, error)
	GenerateReport(ctx context.Context, conversationID string) error
	Transcribe(ctx context.Context, wav []byte, filename string) (string, error)
	Synthesize(ctx context.Context, prompt string) ([]byte, string, error)
}

// TokenSource yields the bearer token attached to backend requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource with a fixed value.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

// StatusError is a non-2xx backend reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Code, e.Body)
}

// StatusOf extracts the HTTP status from err, or 0 when it is not a
// backend status failure.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Config selects and parameterizes a backend client.
type Config struct {
	Mode    string // auto | http | mock
	URL     string
	Tokens  TokenSource
	Timeout time.Duration
}

// New resolves a backend client from config. auto picks http when a URL is
// configured and falls back to the scripted mock otherwise. The resolved
// mode is returned for logging and health reporting.
func New(cfg Config) (Client, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}
	url := strings.TrimSpace(cfg.URL)

	switch mode {
	case "http":
		if url == "" {
			return nil, "", errors.New("CHECKIN_BACKEND_MODE=http requires CHECKIN_BACKEND_URL")
		}
		return NewHTTPClient(url, cfg.Tokens, cfg.Timeout), "http", nil
	case "mock":
		return NewMockClient(), "mock", nil
	case "auto":
		if url != "" {
			return NewHTTPClient(url, cfg.Tokens, cfg.Timeout), "http", nil
		}
		return NewMockClient(), "mock", nil
	default:
		return nil, "", fmt.Errorf("invalid backend mode %q", cfg.Mode)
	}
}
