package checkin

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/antoniostano/pulse/internal/capture"
	"github.com/antoniostano/pulse/internal/gateway"
	"github.com/antoniostano/pulse/internal/playback"
	"github.com/antoniostano/pulse/internal/protocol"
	"github.com/antoniostano/pulse/internal/reliability"
	"github.com/antoniostano/pulse/internal/session"
	"github.com/antoniostano/pulse/internal/transcript"
)

// RunSession drives a session lifecycle for one websocket connection. It
// forwards session events to outbound and applies client frames from
// inbound until the connection or the session ends.
func (c *Coordinator) RunSession(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	events, unsub := c.Subscribe(s.ID)
	defer unsub()

	send := func(v any) {
		select {
		case outbound <- v:
		case <-ctx.Done():
		}
	}

	// A brand-new session greets first: prompt the backend with the
	// opening exchange so the welcome message streams to the client. The
	// turn result goes through the session bus so it cannot overtake the
	// bot message published during the turn.
	if s.MessageType == transcript.TypeWelcome && s.Transcript.Len() == 0 {
		go func() {
			if res, err := c.SubmitTurn(ctx, s.ID, ""); err == nil {
				c.bus.Publish(s.ID, turnResultFrame(s.ID, res))
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			send(evt)
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case protocol.ClientTurn:
				go func() {
					res, err := c.SubmitTurn(ctx, m.SessionID, m.Text)
					if err != nil {
						send(protocol.ErrorEvent{
							Type:      protocol.TypeErrorEvent,
							SessionID: m.SessionID,
							Code:      "unknown_session",
							Source:    "session",
							Detail:    err.Error(),
						})
						return
					}
					c.bus.Publish(m.SessionID, turnResultFrame(m.SessionID, res))
				}()
			case protocol.ClientControl:
				if stop := c.handleControl(ctx, m, send); stop {
					return nil
				}
			case protocol.ClientAudioChunk:
				if c.capture == nil {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
				if err != nil {
					continue
				}
				c.capture.Append(m.SessionID, pcm, m.SampleRate)
			}
		}
	}
}

func (c *Coordinator) handleControl(ctx context.Context, m protocol.ClientControl, send func(any)) bool {
	switch m.Action {
	case protocol.ActionMicPermission:
		if c.capture != nil {
			c.capture.SetPermission(m.SessionID, capture.Permission(m.Value))
		}
	case protocol.ActionStartRecording:
		if c.capture == nil {
			return false
		}
		if err := c.capture.Start(m.SessionID); err != nil && !errors.Is(err, capture.ErrAlreadyRecording) {
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: m.SessionID,
				Code:      "recording_unavailable",
				Source:    "capture",
				Detail:    err.Error(),
			})
		}
	case protocol.ActionStopRecording:
		if c.capture == nil {
			return false
		}
		go func() {
			callCtx, cancel := context.WithTimeout(ctx, c.turnTimeout)
			defer cancel()

			text, err := c.capture.Stop(callCtx, m.SessionID)
			switch {
			case err == nil:
				_ = c.SaveDraft(m.SessionID, text)
				send(protocol.Transcription{Type: protocol.TypeTranscription, SessionID: m.SessionID, Text: text})
			case errors.Is(err, capture.ErrNotRecording), errors.Is(err, capture.ErrEmptyRecording):
				send(protocol.Transcription{Type: protocol.TypeTranscription, SessionID: m.SessionID, Error: err.Error()})
			default:
				c.gatewayError("transcribe")
				c.notice(m.SessionID, noticeTranscriptionFailed())
				send(protocol.Transcription{Type: protocol.TypeTranscription, SessionID: m.SessionID, Error: err.Error()})
			}
		}()
	case protocol.ActionSpeak:
		c.speak(ctx, m, send)
	case protocol.ActionSpeakDone:
		if c.speaker != nil {
			c.speaker.Done(m.MessageID)
		}
	case protocol.ActionEnd:
		if _, err := c.End(m.SessionID); err == nil {
			send(protocol.SessionEnded{Type: protocol.TypeSessionEnded, SessionID: m.SessionID, Reason: "client"})
		}
		return true
	}
	return false
}

func (c *Coordinator) speak(ctx context.Context, m protocol.ClientControl, send func(any)) {
	if c.speaker == nil {
		return
	}
	msg, ok := c.findBotMessage(m.SessionID, m.MessageID)
	if !ok {
		send(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: m.SessionID,
			Code:      "unknown_message",
			Source:    "playback",
			Detail:    "no bot message " + m.MessageID,
		})
		return
	}

	go func() {
		callCtx, cancel := context.WithTimeout(ctx, c.turnTimeout)
		defer cancel()

		clip, err := c.speaker.Speak(callCtx, msg.ID, msg.Content)
		if errors.Is(err, playback.ErrAlreadySpeaking) {
			return
		}
		if err != nil {
			c.gatewayError("tts")
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: m.SessionID,
				Code:      "tts_failed",
				Source:    "playback",
				Retryable: retryable(err),
				Detail:    err.Error(),
			})
			return
		}
		send(protocol.PlaybackAudio{
			Type:        protocol.TypePlaybackAudio,
			SessionID:   m.SessionID,
			MessageID:   clip.MessageID,
			Format:      clip.ContentType,
			AudioBase64: base64.StdEncoding.EncodeToString(clip.Audio),
		})
	}()
}

func (c *Coordinator) findBotMessage(sessionID, messageID string) (transcript.Message, bool) {
	s, err := c.sessions.Get(sessionID)
	if err != nil {
		return transcript.Message{}, false
	}
	for _, m := range s.Transcript.Messages() {
		if m.ID == messageID && !m.IsUser {
			return m, true
		}
	}
	return transcript.Message{}, false
}

// retryable marks transient backend failures so clients know a later
// attempt may succeed without user intervention.
func retryable(err error) bool {
	return reliability.IsTimeout(err) || reliability.IsRetryableHTTPStatus(gateway.StatusOf(err))
}

func turnResultFrame(sessionID string, res TurnResult) protocol.TurnResult {
	return protocol.TurnResult{
		Type:           protocol.TypeTurnResult,
		SessionID:      sessionID,
		Outcome:        string(res.Outcome),
		Reason:         res.Reason,
		Phase:          string(res.MessageType),
		TurnsRemaining: res.TurnsRemaining,
		Ended:          res.Ended,
	}
}
