package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/antoniostano/pulse/internal/transcript"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewHTTPClient(ts.URL, StaticToken("tok-123"), 5*time.Second), ts
}

func TestStartDecodesNumericConversationID(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversation/start" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conversation_id": 42, "chatbot_response": "hello there"}`))
	}))

	res, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if res.ConversationID != "42" {
		t.Fatalf("ConversationID = %q, want %q", res.ConversationID, "42")
	}
	if res.ChatbotResponse != "hello there" {
		t.Fatalf("ChatbotResponse = %q", res.ChatbotResponse)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestPostMessageRoundTrip(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversation/message" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["message"] != "feeling ok" {
			t.Errorf("message = %v", body["message"])
		}
		if body["message_type"] != "normal_question" {
			t.Errorf("message_type = %v", body["message_type"])
		}
		history, _ := body["chat_history"].([]any)
		if len(history) != 2 {
			t.Errorf("chat_history length = %d, want 2", len(history))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(MessageResponse{
			ChatbotResponse: "why is that?",
			MessageType:     transcript.TypeFollowup1,
			QuestionSet:     []string{"q2", "q3"},
		})
	}))

	res, err := c.PostMessage(context.Background(), MessageRequest{
		Message:        "feeling ok",
		ConversationID: "42",
		MessageType:    transcript.TypeNormalQuestion,
		ChatHistory: []transcript.ChatEntry{
			{SenderType: transcript.SenderChatbot, Message: "welcome"},
			{SenderType: transcript.SenderEmployee, Message: "hi"},
		},
		QuestionSet: []string{"q1", "q2", "q3"},
	})
	if err != nil {
		t.Fatalf("PostMessage() error = %v", err)
	}
	if res.MessageType != transcript.TypeFollowup1 {
		t.Fatalf("MessageType = %q, want followup_1", res.MessageType)
	}
	if len(res.QuestionSet) != 2 {
		t.Fatalf("QuestionSet = %v", res.QuestionSet)
	}
}

func TestHistoryPreservesOrder(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversation/history/42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":1,"content":"welcome","sender_type":"chatbot","time":"09:00:00","message_type":"welcome"},
			{"id":2,"content":"hi","sender_type":"employee","time":"09:00:05","message_type":"user_msg"}
		]`))
	}))

	msgs, err := c.History(context.Background(), "42")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "welcome" || msgs[1].SenderType != "employee" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}

func TestTranscribeSendsMultipartAudio(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "missing audio", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "checkin.wav" {
			t.Errorf("filename = %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transcript":"it was a long week"}`))
	}))

	text, err := c.Transcribe(context.Background(), []byte("RIFFfake"), "checkin.wav")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "it was a long week" {
		t.Fatalf("transcript = %q", text)
	}
}

func TestSynthesizeReturnsAudioAndContentType(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["prompt"] != "hello" {
			t.Errorf("prompt = %q", body["prompt"])
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{0xff, 0xfb, 0x90})
	}))

	audio, contentType, err := c.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if contentType != "audio/mpeg" {
		t.Fatalf("content type = %q", contentType)
	}
	if len(audio) != 3 {
		t.Fatalf("audio length = %d", len(audio))
	}
}

func TestStatusErrorSurfacesCode(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Conversation not found"}`, http.StatusNotFound)
	}))

	_, err := c.History(context.Background(), "missing")
	if err == nil {
		t.Fatalf("History() error = nil, want status error")
	}
	if code := StatusOf(err); code != http.StatusNotFound {
		t.Fatalf("StatusOf() = %d, want 404", code)
	}
}

func TestNewResolvesMode(t *testing.T) {
	if _, mode, err := New(Config{Mode: "auto"}); err != nil || mode != "mock" {
		t.Fatalf("auto without URL: mode=%q err=%v, want mock", mode, err)
	}
	if _, mode, err := New(Config{Mode: "auto", URL: "http://localhost:8000"}); err != nil || mode != "http" {
		t.Fatalf("auto with URL: mode=%q err=%v, want http", mode, err)
	}
	if _, _, err := New(Config{Mode: "http"}); err == nil {
		t.Fatalf("http without URL should fail")
	}
	if _, _, err := New(Config{Mode: "sideways"}); err == nil {
		t.Fatalf("invalid mode should fail")
	}
}
