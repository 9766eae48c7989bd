package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/antoniostano/pulse/internal/transcript"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientTurn       MessageType = "client_turn"
	TypeClientControl    MessageType = "client_control"
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeBotMessage       MessageType = "bot_message"
	TypeTurnResult       MessageType = "turn_result"
	TypeTyping           MessageType = "typing"
	TypeTranscription    MessageType = "transcription"
	TypePlaybackAudio    MessageType = "playback_audio"
	TypeNotice           MessageType = "notice"
	TypeSessionEnded     MessageType = "session_ended"
	TypeErrorEvent       MessageType = "error_event"
)

// Control actions accepted in a client_control frame.
const (
	ActionStartRecording = "start_recording"
	ActionStopRecording  = "stop_recording"
	ActionMicPermission  = "mic_permission"
	ActionSpeak          = "speak"
	ActionSpeakDone      = "speak_done"
	ActionEnd            = "end"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientTurn submits one typed or transcribed answer.
type ClientTurn struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	// Value carries the permission state for mic_permission.
	Value string `json:"value,omitempty"`
	// MessageID names the bot message for speak and speak_done.
	MessageID string `json:"message_id,omitempty"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
}

// BotMessage carries one chatbot reply appended to the transcript.
type BotMessage struct {
	Type      MessageType        `json:"type"`
	SessionID string             `json:"session_id"`
	Message   transcript.Message `json:"message"`
}

// TurnResult reports how a submitted turn ended.
type TurnResult struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	Outcome        string      `json:"outcome"`
	Reason         string      `json:"reason,omitempty"`
	Phase          string      `json:"message_type"`
	TurnsRemaining int         `json:"turns_remaining"`
	Ended          bool        `json:"ended"`
}

type Typing struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Active    bool        `json:"active"`
}

// Transcription delivers the text of a finished recording, or the reason
// it failed.
type Transcription struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type PlaybackAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	MessageID   string      `json:"message_id"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

// Notice is a user-facing toast.
type Notice struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Kind        string      `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	NoticeID    string      `json:"id"`
}

type SessionEnded struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Reason    string      `json:"reason,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientTurn:
		var msg ClientTurn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid client_turn")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionStartRecording, ActionStopRecording, ActionMicPermission, ActionSpeak, ActionSpeakDone, ActionEnd:
		default:
			return nil, fmt.Errorf("unknown control action %q", msg.Action)
		}
		return msg, nil
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
