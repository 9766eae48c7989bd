package notify

import (
	"log"
	"sync"
	"time"
)

// Kind mirrors the toast severities the web client distinguishes.
type Kind string

const (
	KindError   Kind = "error"
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
)

// Notice is a dismissable, non-fatal user-facing notification. ID is a
// stable dedupe key so the same failure does not stack up in the UI.
type Notice struct {
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ID          string `json:"id"`
}

// Notifier delivers notices to whatever surface the user is watching.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to the Notifier interface.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// LogNotifier writes notices to the service log. It is the fallback sink
// when no client surface is attached.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notice) {
	log.Printf("[notify] %s: %s: %s", n.Kind, n.Title, n.Description)
}

// Deduper suppresses repeats of the same notice ID inside a time window,
// matching the web client's per-id toast collapsing.
type Deduper struct {
	next   Notifier
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDeduper(next Notifier, window time.Duration) *Deduper {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Deduper{
		next:   next,
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

func (d *Deduper) Notify(n Notice) {
	if n.ID == "" {
		d.next.Notify(n)
		return
	}

	now := d.now()
	d.mu.Lock()
	last, ok := d.seen[n.ID]
	if ok && now.Sub(last) < d.window {
		d.mu.Unlock()
		return
	}
	d.seen[n.ID] = now
	// Drop stale entries so long-lived sessions do not accumulate ids.
	for id, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, id)
		}
	}
	d.mu.Unlock()

	d.next.Notify(n)
}
