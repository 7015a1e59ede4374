package daemon

import (
	"sync"

	"voicebox/internal/api"
)

// eventHub fans daemon events out to stream subscribers. Delivery is lossy
// for slow consumers; a stalled websocket never blocks the pipeline.
type eventHub struct {
	mu   sync.Mutex
	subs map[chan api.Event]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[chan api.Event]struct{})}
}

func (h *eventHub) Publish(event api.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

func (h *eventHub) Subscribe() chan api.Event {
	ch := make(chan api.Event, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[ch] = struct{}{}
	return ch
}

func (h *eventHub) Unsubscribe(ch chan api.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}
