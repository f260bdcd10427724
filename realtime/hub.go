package realtime

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"sync/atomic"

	"loyaltykit/core"
)

// Filter selects the notifications a subscriber receives. Zero fields match
// everything.
type Filter struct {
	Participant core.ParticipantID
	Kinds       []core.NotificationKind
}

// Match reports whether n passes the filter.
func (f Filter) Match(n core.Notification) bool {
	if f.Participant != "" && n.Participant != f.Participant {
		return false
	}
	return len(f.Kinds) == 0 || slices.Contains(f.Kinds, n.Kind)
}

type subscriber struct {
	ch     chan core.Notification
	filter Filter
}

// Hub fans notifications out to filtered subscriber channels. A subscriber
// that does not keep up loses notifications rather than blocking the others.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped atomic.Uint64
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe opens a channel of the given buffer receiving notifications that
// match f.
func (h *Hub) Subscribe(buffer int, f Filter) (int, <-chan core.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Notification, buffer)
	h.subs[id] = subscriber{ch: ch, filter: f}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(s.ch)
	}
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a subscriber
// buffer was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Broadcast delivers n to every matching subscriber without blocking. The
// read lock is held while sending so Unsubscribe cannot close a channel
// mid-send.
func (h *Hub) Broadcast(_ context.Context, n core.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if !s.filter.Match(n) {
			continue
		}
		select {
		case s.ch <- n:
		default:
			h.dropped.Add(1)
		}
	}
}

// Publish lets the hub act as an engine notifier.
func (h *Hub) Publish(ctx context.Context, n core.Notification) { h.Broadcast(ctx, n) }

// MarshalJSON is a helper to convert notifications to JSON bytes for WebSocket/SSE.
func MarshalJSON(n core.Notification) []byte {
	b, _ := json.Marshal(n)
	return b
}
