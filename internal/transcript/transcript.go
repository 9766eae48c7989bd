package transcript

import "strconv"

// Transcript is the ordered conversation log for one check-in session.
// Ordering is insertion order and is significant.
type Transcript struct {
	msgs []Message
}

func New() Transcript {
	return Transcript{}
}

func (t *Transcript) Append(m Message) {
	t.msgs = append(t.msgs, m)
}

// RollbackLastUser removes the most recent message if and only if it is a
// user message. It undoes an optimistic append after a failed send.
func (t *Transcript) RollbackLastUser() bool {
	n := len(t.msgs)
	if n == 0 || !t.msgs[n-1].IsUser {
		return false
	}
	t.msgs = t.msgs[:n-1]
	return true
}

func (t *Transcript) Len() int {
	return len(t.msgs)
}

// Messages returns a copy of the transcript in chronological order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}

// Wire maps the transcript to the {sender_type, message} pairs the
// backend expects in chat_history.
func (t *Transcript) Wire() []ChatEntry {
	out := make([]ChatEntry, 0, len(t.msgs))
	for _, m := range t.msgs {
		sender := SenderChatbot
		if m.IsUser {
			sender = SenderEmployee
		}
		out = append(out, ChatEntry{SenderType: sender, Message: m.Content})
	}
	return out
}

func (t *Transcript) Clone() Transcript {
	return Transcript{msgs: t.Messages()}
}

// Rebuild reconstructs a transcript from a fetched history: a message is a
// user message exactly when its sender_type is not "chatbot". It also
// recovers the current dialogue phase (the last chatbot message_type,
// welcome when none) and the remaining turn budget, obtained by subtracting
// the normal questions already asked from totalQuestions.
func Rebuild(entries []HistoryMessage, totalQuestions int) (Transcript, MessageType, int) {
	tr := New()
	phase := TypeWelcome
	asked := 0

	for _, e := range entries {
		isUser := e.SenderType != SenderChatbot
		mt := MessageType(e.MessageType)
		if isUser {
			mt = TypeUserMsg
		} else {
			if mt == TypeNormalQuestion {
				asked++
			}
			if mt != "" {
				phase = mt
			}
		}
		tr.Append(Message{
			ID:        strconv.FormatInt(e.ID, 10),
			Content:   e.Content,
			IsUser:    isUser,
			Timestamp: e.Time,
			Type:      mt,
		})
	}

	remaining := totalQuestions - asked
	if remaining < 0 {
		remaining = 0
	}
	return tr, phase, remaining
}
