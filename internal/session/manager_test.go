package session

import (
	"errors"
	"testing"
	"time"

	"github.com/antoniostano/pulse/internal/transcript"
)

func TestCreateAndGetReturnsClones(t *testing.T) {
	m := NewManager(time.Minute)
	created := m.Create("emp-1", "conv-1", 5)
	if created.ID == "" {
		t.Fatal("expected session id")
	}
	if created.Status != StatusActive {
		t.Fatalf("expected active, got %s", created.Status)
	}
	if created.MessageType != transcript.TypeWelcome {
		t.Fatalf("expected welcome phase, got %s", created.MessageType)
	}
	if created.TurnsRemaining != 5 {
		t.Fatalf("expected 5 turns, got %d", created.TurnsRemaining)
	}

	// Mutating the returned clone must not leak into the manager.
	created.TurnsRemaining = 0
	created.Transcript.Append(transcript.NewUserMessage("tampered"))

	got, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TurnsRemaining != 5 {
		t.Fatalf("clone mutation leaked: turns %d", got.TurnsRemaining)
	}
	if got.Transcript.Len() != 0 {
		t.Fatalf("clone mutation leaked: %d messages", got.Transcript.Len())
	}
}

func TestGetUnknown(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByUser(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("emp-1", "conv-1", 5)

	found, ok := m.FindByUser("emp-1")
	if !ok || found.ID != s.ID {
		t.Fatalf("expected to find session %s, got %+v ok=%v", s.ID, found, ok)
	}

	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, ok := m.FindByUser("emp-1"); ok {
		t.Fatal("ended session should not be findable by user")
	}
}

func TestBeginTurnSingleFlight(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("emp-1", "conv-1", 5)

	if err := m.BeginTurn(s.ID); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if err := m.BeginTurn(s.ID); !errors.Is(err, ErrTurnInFlight) {
		t.Fatalf("expected ErrTurnInFlight, got %v", err)
	}
	m.EndTurn(s.ID)
	if err := m.BeginTurn(s.ID); err != nil {
		t.Fatalf("begin after end: %v", err)
	}
}

func TestBeginTurnOnEndedSession(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("emp-1", "conv-1", 5)
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := m.BeginTurn(s.ID); !errors.Is(err, ErrEnded) {
		t.Fatalf("expected ErrEnded, got %v", err)
	}
}

func TestCompleteOnce(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("emp-1", "conv-1", 5)

	if !m.CompleteOnce(s.ID) {
		t.Fatal("first completion should win")
	}
	if m.CompleteOnce(s.ID) {
		t.Fatal("second completion should be a no-op")
	}
	if m.CompleteOnce("nope") {
		t.Fatal("unknown session should not complete")
	}
}

func TestUpdateAppliesUnderLock(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("emp-1", "conv-1", 5)

	err := m.Update(s.ID, func(live *Session) {
		live.TurnsRemaining--
		live.MessageType = transcript.TypeNormalQuestion
		live.Transcript.Append(transcript.NewBotMessage("how are you?", transcript.TypeNormalQuestion))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := m.Get(s.ID)
	if got.TurnsRemaining != 4 {
		t.Fatalf("expected 4 turns, got %d", got.TurnsRemaining)
	}
	if got.MessageType != transcript.TypeNormalQuestion {
		t.Fatalf("expected normal_question, got %s", got.MessageType)
	}
	if got.Transcript.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", got.Transcript.Len())
	}
}

func TestExpireInactiveFiresHook(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	s := m.Create("emp-1", "conv-1", 5)

	expired := make(chan string, 1)
	m.SetExpireHook(func(e *Session) { expired <- e.ID })

	time.Sleep(10 * time.Millisecond)
	m.expireInactive()

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expected expired session %s, got %s", s.ID, id)
		}
	default:
		t.Fatal("expire hook not called")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("expected ended, got %s", got.Status)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("expected 0 active, got %d", m.ActiveCount())
	}
}
