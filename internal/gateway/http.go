package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/pulse/internal/transcript"
)

// HTTPClient talks to the real well-being backend over REST.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
}

func NewHTTPClient(baseURL string, tokens TokenSource, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		tokens:  tokens,
		client:  &http.Client{Timeout: timeout},
	}
}

// flexID tolerates the backend sending conversation ids as either JSON
// numbers or strings; the controller treats them as opaque strings.
type flexID string

func (f *flexID) UnmarshalJSON(raw []byte) error {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (c *HTTPClient) Start(ctx context.Context) (StartResponse, error) {
	var wire struct {
		ConversationID  flexID `json:"conversation_id"`
		ChatbotResponse string `json:"chatbot_response"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/conversation/start", nil, &wire); err != nil {
		return StartResponse{}, fmt.Errorf("start conversation: %w", err)
	}
	return StartResponse{
		ConversationID:  string(wire.ConversationID),
		ChatbotResponse: wire.ChatbotResponse,
	}, nil
}

func (c *HTTPClient) History(ctx context.Context, conversationID string) ([]transcript.HistoryMessage, error) {
	var out []transcript.HistoryMessage
	path := "/api/conversation/history/" + conversationID
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) PostMessage(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	var out MessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/conversation/message", req, &out); err != nil {
		return MessageResponse{}, fmt.Errorf("post message: %w", err)
	}
	return out, nil
}

func (c *HTTPClient) Insights(ctx context.Context, conversationID string) (string, error) {
	var out struct {
		Insights string `json:"insights"`
	}
	path := "/api/conversation/insights/" + conversationID
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("fetch insights: %w", err)
	}
	return out.Insights, nil
}

func (c *HTTPClient) GenerateReport(ctx context.Context, conversationID string) error {
	body := map[string]string{"conversation_id": conversationID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/report/employee", body, nil); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}
	return nil
}

func (c *HTTPClient) Transcribe(ctx context.Context, wav []byte, filename string) (string, error) {
	if filename == "" {
		filename = "recording.wav"
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", fmt.Errorf("build transcribe form: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("build transcribe form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build transcribe form: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/conversation/transcribe", &form)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	var out struct {
		Transcript string `json:"transcript"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcript: %w", err)
	}
	return out.Transcript, nil
}

func (c *HTTPClient) Synthesize(ctx context.Context, prompt string) ([]byte, string, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, "", fmt.Errorf("marshal tts request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/conversation/tts", bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("synthesize: %w", err)
	}
	defer res.Body.Close()
	if err := checkStatus(res); err != nil {
		return nil, "", fmt.Errorf("synthesize: %w", err)
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read audio: %w", err)
	}
	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return audio, contentType, nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
}
