package feed

import "sync"

// Hub fans change signals out to per-provider subscribers. Signals coalesce:
// a subscriber that has not drained its channel sees one pending signal.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe returns a signal channel for providerID and a cancel func.
func (h *Hub) Subscribe(providerID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.subs[providerID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.subs[providerID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[providerID], ch)
			if len(h.subs[providerID]) == 0 {
				delete(h.subs, providerID)
			}
		})
	}
}

// Publish signals every subscriber of providerID.
func (h *Hub) Publish(providerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[providerID] {
		signal(ch)
	}
}

// PublishAll signals every subscriber, used after a gap in change delivery.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.subs {
		for ch := range set {
			signal(ch)
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
