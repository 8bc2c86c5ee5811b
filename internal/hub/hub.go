// Package hub is the process-wide fan-out point for expression events.
// Publish delivers to every registered subscriber before returning and
// appends signals to a bounded history ring so late joiners can reconstruct
// recent state. Delivery never blocks: a subscriber that cannot keep up is
// treated the same as a dead connection and silently removed.
package hub

import (
	"sync"

	"github.com/google/uuid"

	"github.com/tjamescouch/personas/internal/logging"
	"github.com/tjamescouch/personas/internal/signal"
)

const (
	// DefaultHistoryCapacity bounds the replay window handed to new
	// subscribers.
	DefaultHistoryCapacity = 200
	// DefaultSubscriberBuffer is each subscriber's delivery channel depth.
	// At token cadence (tens of ms) this absorbs multi-second consumer
	// stalls before the subscriber is declared failed.
	DefaultSubscriberBuffer = 64
)

// Subscription is one subscriber's handle: a receive channel plus identity.
// The channel is closed when the subscription ends, whether by Unsubscribe
// or by delivery failure.
type Subscription struct {
	id   string
	name string
	ch   chan signal.Event
}

// ID returns the hub-assigned subscriber id.
func (s *Subscription) ID() string { return s.id }

// Name returns the caller-supplied label (remote address, tool name).
func (s *Subscription) Name() string { return s.name }

// Events returns the ordered delivery stream. It is closed on removal.
func (s *Subscription) Events() <-chan signal.Event { return s.ch }

type subscriberEntry struct {
	sub       *Subscription
	delivered uint64
}

// Stats is a diagnostics snapshot; counters are monotonic for the hub's
// lifetime even as subscribers come and go.
type Stats struct {
	Subscribers    int                        `json:"subscribers"`
	HistoryLen     int                        `json:"historyLen"`
	TotalPublished uint64                     `json:"totalPublished"`
	TotalDelivered uint64                     `json:"totalDelivered"`
	TotalRemoved   uint64                     `json:"totalRemoved"`
	PerSubscriber  map[string]SubscriberStats `json:"perSubscriber,omitempty"`
}

// SubscriberStats tracks one live subscriber.
type SubscriberStats struct {
	Name      string `json:"name,omitempty"`
	Delivered uint64 `json:"delivered"`
}

// Hub owns the subscriber set and the history ring. All mutation is
// serialized behind one mutex; per-subscriber processing happens downstream
// on each subscription's own channel.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]*subscriberEntry
	history *history
	buffer  int

	published uint64
	delivered uint64
	removed   uint64
}

// New returns a Hub. Zero arguments select the defaults; historyCapacity
// and subscriberBuffer are overridable for tests and tuning.
func New(historyCapacity, subscriberBuffer int) *Hub {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:    make(map[string]*subscriberEntry),
		history: newHistory(historyCapacity),
		buffer:  subscriberBuffer,
	}
}

// Subscribe registers a new subscriber and returns its handle together with
// a history snapshot (oldest first). The snapshot is taken under the same
// lock that serializes Publish, so it never has a gap against subsequent
// deliveries; overlap with concurrently published signals is acceptable.
func (h *Hub) Subscribe(name string) (*Subscription, []signal.Signal) {
	sub := &Subscription{
		id:   uuid.NewString(),
		name: name,
		ch:   make(chan signal.Event, h.buffer),
	}

	h.mu.Lock()
	h.subs[sub.id] = &subscriberEntry{sub: sub}
	snapshot := h.history.snapshot()
	count := len(h.subs)
	h.mu.Unlock()

	logging.Infow("subscriber joined", "subscriber.id", sub.id, "subscriber.name", name, "subscribers", count, "history", len(snapshot))
	return sub, snapshot
}

// Unsubscribe removes a subscriber. Immediate and idempotent; the
// subscription's channel is closed exactly once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	removed := h.removeLocked(sub.id)
	count := len(h.subs)
	h.mu.Unlock()

	if removed {
		logging.Infow("subscriber left", "subscriber.id", sub.id, "subscribers", count)
	}
}

// Publish fans the event out to every registered subscriber and, for
// signals, appends to history. A full or closed subscriber counts as a
// delivery failure: the subscriber is removed, the others are unaffected,
// and the producer never blocks.
func (h *Hub) Publish(ev signal.Event) {
	h.mu.Lock()
	if ev.Signal != nil {
		h.history.add(*ev.Signal)
	}
	h.published++

	var failed []string
	for id, entry := range h.subs {
		select {
		case entry.sub.ch <- ev:
			entry.delivered++
			h.delivered++
		default:
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		h.removeLocked(id)
	}
	h.mu.Unlock()

	for _, id := range failed {
		logging.Warnw("subscriber removed, delivery failed", "subscriber.id", id)
	}
}

// removeLocked deletes and closes a subscriber. Caller holds h.mu. Returns
// false when the id is already gone.
func (h *Hub) removeLocked(id string) bool {
	entry, ok := h.subs[id]
	if !ok {
		return false
	}
	delete(h.subs, id)
	close(entry.sub.ch)
	h.removed++
	return true
}

// Stats returns a diagnostics snapshot.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Stats{
		Subscribers:    len(h.subs),
		HistoryLen:     h.history.len(),
		TotalPublished: h.published,
		TotalDelivered: h.delivered,
		TotalRemoved:   h.removed,
		PerSubscriber:  make(map[string]SubscriberStats, len(h.subs)),
	}
	for id, entry := range h.subs {
		stats.PerSubscriber[id] = SubscriberStats{
			Name:      entry.sub.name,
			Delivered: entry.delivered,
		}
	}
	return stats
}
