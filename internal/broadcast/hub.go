package broadcast

import (
	"sync"

	"github.com/veedran/reelsmith/pkg/log"
)

// Subscriber is one connected real-time listener. Send must be safe for
// concurrent use and should fail fast when the listener is gone.
type Subscriber interface {
	Send(event Event) error
}

// Hub fans every event out to all registered subscribers. Delivery is best
// effort: a subscriber whose Send fails is dropped and never fails the
// caller. The pipeline keeps running whether or not anyone is listening.
type Hub struct {
	mu   sync.Mutex
	subs map[Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[Subscriber]struct{}),
	}
}

func (h *Hub) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	total := len(h.subs)
	h.mu.Unlock()
	log.Info("Listener subscribed, total connections: %d", total)
}

// Unsubscribe removes the subscriber. Removing an unknown subscriber is a
// no-op.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	_, known := h.subs[sub]
	delete(h.subs, sub)
	total := len(h.subs)
	h.mu.Unlock()
	if known {
		log.Info("Listener unsubscribed, total connections: %d", total)
	}
}

// Broadcast delivers the event to every current subscriber. Failed
// deliveries remove exactly the failing subscribers. Never returns an error
// and never panics.
func (h *Hub) Broadcast(event Event) {
	h.mu.Lock()
	targets := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	var dead []Subscriber
	for _, sub := range targets {
		if err := sendSafe(sub, event); err != nil {
			log.Warn("Dropping listener after failed delivery of %s: %v", event.Type, err)
			dead = append(dead, sub)
		}
	}

	if len(dead) == 0 {
		return
	}
	h.mu.Lock()
	for _, sub := range dead {
		delete(h.subs, sub)
	}
	h.mu.Unlock()
}

// Count reports the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func sendSafe(sub Subscriber, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return sub.Send(event)
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return "subscriber panicked during send"
}
