package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/pulse/internal/transcript"
)

// MockClient is a scripted stand-in for the well-being backend. It drives a
// complete check-in (welcome, questions, follow-ups, insights) so the
// service and the terminal client run without the real backend.
type MockClient struct {
	mu            sync.Mutex
	conversations map[string]*mockConversation
	reportCalls   map[string]int
}

type mockConversation struct {
	nextID      int64
	questionIdx int
	msgs        []transcript.HistoryMessage
}

var mockQuestions = []string{
	"How has your energy been through the week?",
	"How manageable has your workload felt lately?",
	"When did you last feel properly switched off from work?",
	"How supported do you feel by the people around you?",
	"What part of your week are you most looking forward to?",
	"Is there anything at work that has been weighing on you?",
}

const mockGreeting = "Hi, good to see you. How are you feeling today?"

func NewMockClient() *MockClient {
	return &MockClient{
		conversations: make(map[string]*mockConversation),
		reportCalls:   make(map[string]int),
	}
}

func (m *MockClient) Start(context.Context) (StartResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "mock-" + uuid.NewString()[:8]
	conv := &mockConversation{}
	conv.record(transcript.SenderChatbot, mockGreeting, transcript.TypeWelcome)
	m.conversations[id] = conv

	return StartResponse{ConversationID: id, ChatbotResponse: mockGreeting}, nil
}

func (m *MockClient) History(_ context.Context, conversationID string) ([]transcript.HistoryMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return nil, &StatusError{Code: 404, Body: "conversation not found"}
	}
	out := make([]transcript.HistoryMessage, len(conv.msgs))
	copy(out, conv.msgs)
	return out, nil
}

func (m *MockClient) PostMessage(_ context.Context, req MessageRequest) (MessageResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[req.ConversationID]
	if !ok {
		return MessageResponse{}, &StatusError{Code: 404, Body: "conversation not found"}
	}
	if req.Message != "" {
		conv.record(transcript.SenderEmployee, req.Message, transcript.TypeUserMsg)
	}

	var reply string
	var nextType transcript.MessageType
	switch req.MessageType {
	case transcript.TypeWelcome:
		reply = conv.nextQuestion()
		nextType = transcript.TypeNormalQuestion
	case transcript.TypeNormalQuestion:
		reply = "Thanks for sharing that. What do you think is driving it?"
		nextType = transcript.TypeFollowup1
	case transcript.TypeFollowup1:
		reply = "That makes sense. Is there anything that would make it easier?"
		nextType = transcript.TypeFollowup2
	default:
		reply = conv.nextQuestion()
		nextType = transcript.TypeNormalQuestion
	}

	conv.record(transcript.SenderChatbot, reply, nextType)
	return MessageResponse{
		ChatbotResponse: reply,
		MessageType:     nextType,
		QuestionSet:     mockQuestions[min(conv.questionIdx, len(mockQuestions)):],
	}, nil
}

func (m *MockClient) Insights(_ context.Context, conversationID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[conversationID]
	if !ok {
		return "", &StatusError{Code: 404, Body: "conversation not found"}
	}
	answers := 0
	for _, msg := range conv.msgs {
		if msg.SenderType == transcript.SenderEmployee {
			answers++
		}
	}
	return fmt.Sprintf(
		"Thanks for checking in. Across your %d answers you sounded steady overall; keep protecting time to recharge, and consider flagging workload early if next week looks similar.",
		answers,
	), nil
}

func (m *MockClient) GenerateReport(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[conversationID]; !ok {
		return &StatusError{Code: 404, Body: "conversation not found"}
	}
	m.reportCalls[conversationID]++
	return nil
}

func (m *MockClient) Transcribe(_ context.Context, wav []byte, _ string) (string, error) {
	if len(wav) == 0 {
		return "", &StatusError{Code: 400, Body: "empty audio"}
	}
	return "I have been feeling reasonably balanced this week.", nil
}

func (m *MockClient) Synthesize(_ context.Context, prompt string) ([]byte, string, error) {
	return []byte("MOCKAUDIO:" + prompt), "audio/mock", nil
}

// ReportCalls reports how many times a report was requested for a
// conversation. Test hook.
func (m *MockClient) ReportCalls(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reportCalls[conversationID]
}

func (c *mockConversation) record(sender, content string, t transcript.MessageType) {
	c.nextID++
	c.msgs = append(c.msgs, transcript.HistoryMessage{
		ID:          c.nextID,
		Content:     content,
		SenderType:  sender,
		Time:        time.Now().UTC().Format(time.TimeOnly),
		MessageType: string(t),
	})
}

func (c *mockConversation) nextQuestion() string {
	q := mockQuestions[c.questionIdx%len(mockQuestions)]
	c.questionIdx++
	return q
}
