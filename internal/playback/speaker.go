// Package playback fetches synthesized speech for bot messages and tracks
// which message is being spoken, so a message is never voiced twice
// concurrently and fetched audio is released once playback finishes.
package playback

import (
	"context"
	"errors"
	"sync"
)

// Synthesizer is the slice of the backend gateway playback needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string) ([]byte, string, error)
}

var ErrAlreadySpeaking = errors.New("message is already being spoken")

// Clip is one synthesized utterance ready for playout.
type Clip struct {
	MessageID   string
	ContentType string
	Audio       []byte
}

type Speaker struct {
	tts Synthesizer

	mu     sync.Mutex
	active map[string]bool
	held   map[string]Clip
}

func NewSpeaker(tts Synthesizer) *Speaker {
	return &Speaker{
		tts:    tts,
		active: make(map[string]bool),
		held:   make(map[string]Clip),
	}
}

// Speak fetches audio for a bot message. A second Speak for a message whose
// playback has not been released fails with ErrAlreadySpeaking. Audio held
// for previously spoken messages is released before the new fetch.
func (s *Speaker) Speak(ctx context.Context, messageID, text string) (Clip, error) {
	s.mu.Lock()
	if s.active[messageID] {
		s.mu.Unlock()
		return Clip{}, ErrAlreadySpeaking
	}
	// Drop audio held for earlier messages; only one utterance plays at a time.
	for id := range s.held {
		if !s.active[id] {
			delete(s.held, id)
		}
	}
	s.active[messageID] = true
	s.mu.Unlock()

	audio, contentType, err := s.tts.Synthesize(ctx, text)
	if err != nil {
		s.mu.Lock()
		delete(s.active, messageID)
		s.mu.Unlock()
		return Clip{}, err
	}

	clip := Clip{MessageID: messageID, ContentType: contentType, Audio: audio}
	s.mu.Lock()
	s.held[messageID] = clip
	s.mu.Unlock()
	return clip, nil
}

// Done marks a message's playback finished and releases its audio.
func (s *Speaker) Done(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, messageID)
	delete(s.held, messageID)
}

// Speaking reports whether the message is currently being voiced.
func (s *Speaker) Speaking(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[messageID]
}

// ReleaseAll drops every active flag and held clip. Called when a session
// ends or its connection closes.
func (s *Speaker) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = make(map[string]bool)
	s.held = make(map[string]Clip)
}
