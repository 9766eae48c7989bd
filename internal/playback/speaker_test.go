package playback

import (
	"context"
	"errors"
	"testing"
)

type fakeTTS struct {
	calls int
	err   error
}

func (f *fakeTTS) Synthesize(_ context.Context, prompt string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("AUDIO:" + prompt), "audio/mpeg", nil
}

func TestSpeakFetchesAudio(t *testing.T) {
	tts := &fakeTTS{}
	s := NewSpeaker(tts)

	clip, err := s.Speak(context.Background(), "bot-1", "hello")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if string(clip.Audio) != "AUDIO:hello" {
		t.Fatalf("unexpected audio %q", clip.Audio)
	}
	if clip.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected content type %q", clip.ContentType)
	}
	if !s.Speaking("bot-1") {
		t.Fatal("expected bot-1 to be speaking")
	}
}

func TestSpeakRejectsConcurrentSameMessage(t *testing.T) {
	tts := &fakeTTS{}
	s := NewSpeaker(tts)

	if _, err := s.Speak(context.Background(), "bot-1", "hello"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if _, err := s.Speak(context.Background(), "bot-1", "hello"); !errors.Is(err, ErrAlreadySpeaking) {
		t.Fatalf("expected ErrAlreadySpeaking, got %v", err)
	}
	if tts.calls != 1 {
		t.Fatalf("expected a single synthesis call, got %d", tts.calls)
	}

	s.Done("bot-1")
	if s.Speaking("bot-1") {
		t.Fatal("expected bot-1 released")
	}
	if _, err := s.Speak(context.Background(), "bot-1", "hello"); err != nil {
		t.Fatalf("speak after done: %v", err)
	}
}

func TestSpeakErrorClearsActiveFlag(t *testing.T) {
	tts := &fakeTTS{err: errors.New("synth down")}
	s := NewSpeaker(tts)

	if _, err := s.Speak(context.Background(), "bot-1", "hello"); err == nil {
		t.Fatal("expected error")
	}
	if s.Speaking("bot-1") {
		t.Fatal("failed speak must not leave the message marked active")
	}
}

func TestReleaseAll(t *testing.T) {
	tts := &fakeTTS{}
	s := NewSpeaker(tts)
	_, _ = s.Speak(context.Background(), "bot-1", "a")
	_, _ = s.Speak(context.Background(), "bot-2", "b")

	s.ReleaseAll()
	if s.Speaking("bot-1") || s.Speaking("bot-2") {
		t.Fatal("expected all playback released")
	}
}
