package checkin

import (
	"strings"
	"sync"
)

// eventBus fans session events out to websocket connections. Payloads are
// the outbound protocol types.
type eventBus struct {
	mu          sync.Mutex
	nextSubID   int
	subscribers map[string]map[int]chan any
}

func newEventBus() *eventBus {
	return &eventBus{subscribers: make(map[string]map[int]chan any)}
}

func (b *eventBus) Subscribe(sessionID string) (<-chan any, func()) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		ch := make(chan any)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan any, 256)
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	if _, ok := b.subscribers[sessionID]; !ok {
		b.subscribers[sessionID] = make(map[int]chan any)
	}
	b.subscribers[sessionID][id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[sessionID]
		if subs == nil {
			return
		}
		if c, ok := subs[id]; ok {
			delete(subs, id)
			close(c)
		}
		if len(subs) == 0 {
			delete(b.subscribers, sessionID)
		}
	}
}

// Publish delivers to every subscriber without blocking. A slow consumer
// loses the event rather than stalling the turn.
func (b *eventBus) Publish(sessionID string, event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers[sessionID] {
		select {
		case ch <- event:
		default:
		}
	}
}
