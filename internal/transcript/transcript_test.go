package transcript

import "testing"

func TestRollbackLastUserRoundTrips(t *testing.T) {
	tr := New()
	tr.Append(NewBotMessage("hello", TypeWelcome))
	before := tr.Messages()

	tr.Append(NewUserMessage("doing fine"))
	if !tr.RollbackLastUser() {
		t.Fatalf("RollbackLastUser() = false, want true")
	}

	after := tr.Messages()
	if len(after) != len(before) {
		t.Fatalf("transcript length after rollback = %d, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("message %d changed after rollback: %+v != %+v", i, after[i], before[i])
		}
	}
}

func TestRollbackLastUserRefusesBotTail(t *testing.T) {
	tr := New()
	tr.Append(NewUserMessage("hi"))
	tr.Append(NewBotMessage("how are you?", TypeNormalQuestion))
	if tr.RollbackLastUser() {
		t.Fatalf("RollbackLastUser() removed a bot message")
	}
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}
}

func TestWireSenderMapping(t *testing.T) {
	tr := New()
	tr.Append(NewBotMessage("welcome", TypeWelcome))
	tr.Append(NewUserMessage("hello"))

	wire := tr.Wire()
	if len(wire) != 2 {
		t.Fatalf("Wire() length = %d, want 2", len(wire))
	}
	if wire[0].SenderType != SenderChatbot || wire[0].Message != "welcome" {
		t.Fatalf("unexpected first entry: %+v", wire[0])
	}
	if wire[1].SenderType != SenderEmployee || wire[1].Message != "hello" {
		t.Fatalf("unexpected second entry: %+v", wire[1])
	}
}

func TestRebuildFromHistory(t *testing.T) {
	entries := []HistoryMessage{
		{ID: 1, Content: "welcome back", SenderType: SenderChatbot, Time: "09:00:00", MessageType: "welcome"},
		{ID: 2, Content: "hi", SenderType: SenderEmployee, Time: "09:00:10", MessageType: "user_msg"},
		{ID: 3, Content: "how was your week?", SenderType: SenderChatbot, Time: "09:00:12", MessageType: "normal_question"},
		{ID: 4, Content: "long", SenderType: SenderEmployee, Time: "09:00:30", MessageType: "user_msg"},
		{ID: 5, Content: "what made it long?", SenderType: SenderChatbot, Time: "09:00:33", MessageType: "followup_1"},
	}

	tr, phase, remaining := Rebuild(entries, 5)

	if tr.Len() != len(entries) {
		t.Fatalf("Len() = %d, want %d", tr.Len(), len(entries))
	}
	msgs := tr.Messages()
	for i, e := range entries {
		wantUser := e.SenderType != SenderChatbot
		if msgs[i].IsUser != wantUser {
			t.Fatalf("message %d IsUser = %v, want %v", i, msgs[i].IsUser, wantUser)
		}
		if msgs[i].Content != e.Content {
			t.Fatalf("message %d out of order: got %q want %q", i, msgs[i].Content, e.Content)
		}
	}
	if phase != TypeFollowup1 {
		t.Fatalf("phase = %q, want %q", phase, TypeFollowup1)
	}
	if remaining != 4 {
		t.Fatalf("remaining = %d, want 4", remaining)
	}
}

func TestRebuildClampsOverdrawnBudget(t *testing.T) {
	entries := []HistoryMessage{
		{ID: 1, Content: "q1", SenderType: SenderChatbot, MessageType: "normal_question"},
		{ID: 2, Content: "q2", SenderType: SenderChatbot, MessageType: "normal_question"},
		{ID: 3, Content: "q3", SenderType: SenderChatbot, MessageType: "normal_question"},
	}
	_, _, remaining := Rebuild(entries, 2)
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
}

func TestRebuildEmptyHistoryDefaultsToWelcome(t *testing.T) {
	tr, phase, remaining := Rebuild(nil, 5)
	if tr.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", tr.Len())
	}
	if phase != TypeWelcome {
		t.Fatalf("phase = %q, want %q", phase, TypeWelcome)
	}
	if remaining != 5 {
		t.Fatalf("remaining = %d, want 5", remaining)
	}
}
