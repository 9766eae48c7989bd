// Package capture collects microphone audio per session and turns it into
// text through the backend transcription endpoint.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/antoniostano/pulse/internal/audio"
)

// Clips shorter than this are accidental taps, not speech.
const minClipDuration = 50 * time.Millisecond

// Permission mirrors the browser microphone permission states.
type Permission string

const (
	PermissionUnknown Permission = "unknown"
	PermissionPending Permission = "pending"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrAlreadyRecording = errors.New("a recording is already active")
	ErrNotRecording     = errors.New("no active recording")
	ErrEmptyRecording   = errors.New("recording contained no audio")
)

// Transcriber is the slice of the backend gateway capture needs.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, filename string) (string, error)
}

type recorder struct {
	permission Permission
	active     bool
	sampleRate int
	buf        []byte
}

// Service tracks one recorder per session. A session holds at most one
// active recording at a time.
type Service struct {
	transcriber Transcriber

	mu        sync.Mutex
	recorders map[string]*recorder
}

func NewService(transcriber Transcriber) *Service {
	return &Service{
		transcriber: transcriber,
		recorders:   make(map[string]*recorder),
	}
}

func (s *Service) recorderFor(sessionID string) *recorder {
	r, ok := s.recorders[sessionID]
	if !ok {
		r = &recorder{permission: PermissionUnknown, sampleRate: audio.DefaultSampleRate}
		s.recorders[sessionID] = r
	}
	return r
}

func (s *Service) SetPermission(sessionID string, p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorderFor(sessionID).permission = p
}

func (s *Service) Permission(sessionID string) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorderFor(sessionID).permission
}

// Start opens a recording. It fails when permission was denied and is a
// no-op error when a recording is already in progress.
func (s *Service) Start(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recorderFor(sessionID)
	if r.permission == PermissionDenied {
		return ErrPermissionDenied
	}
	if r.active {
		return ErrAlreadyRecording
	}
	if r.permission == PermissionUnknown {
		r.permission = PermissionPending
	}
	r.active = true
	r.buf = r.buf[:0]
	return nil
}

// Append adds little-endian 16-bit PCM to the open recording. Chunks that
// arrive while no recording is active are dropped.
func (s *Service) Append(sessionID string, pcm []byte, sampleRate int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recorderFor(sessionID)
	if !r.active {
		return
	}
	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
	// First audio arriving settles a pending permission prompt.
	if r.permission == PermissionPending {
		r.permission = PermissionGranted
	}
	r.buf = append(r.buf, pcm...)
}

func (s *Service) Recording(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorderFor(sessionID).active
}

// Stop closes the recording and sends it for transcription. The buffer is
// cleared before the network round-trip so a failed transcription never
// replays stale audio. An empty buffer skips the backend call entirely.
func (s *Service) Stop(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	r := s.recorderFor(sessionID)
	if !r.active {
		s.mu.Unlock()
		return "", ErrNotRecording
	}
	r.active = false
	pcm := r.buf
	rate := r.sampleRate
	r.buf = nil
	s.mu.Unlock()

	if audio.PCM16Duration(len(pcm), rate) < minClipDuration {
		return "", ErrEmptyRecording
	}

	wav := audio.EncodeWAVPCM16LE(pcm, rate)
	return s.transcriber.Transcribe(ctx, wav, "recording.wav")
}

// Discard drops the open recording without transcribing it.
func (s *Service) Discard(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.recorderFor(sessionID)
	r.active = false
	r.buf = nil
}

// Release forgets the session's recorder entirely.
func (s *Service) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recorders, sessionID)
}
