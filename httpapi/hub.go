package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/tabkeeper/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64                       `json:"seq"`
	Type      string                       `json:"type"`
	SessionID schema.SessionID             `json:"session_id,omitempty"`
	WindowID  *schema.WindowID             `json:"window_id,omitempty"`
	Snapshot  *schema.ListSessionsResponse `json:"snapshot,omitempty"`
	Timestamp time.Time                    `json:"timestamp"`
}

// Hub keeps a bounded event history and broadcasts to SSE subscribers.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
	now         func() time.Time
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
		now:         time.Now,
	}
}

// OnSessionEvent implements core.EventSink.
func (h *Hub) OnSessionEvent(event schema.SessionEvent) {
	pslog.Ctx(context.Background()).Trace("hub session event", "type", event.Type, "session", event.SessionID)
	h.publish(StreamEvent{
		Type:      string(event.Type),
		SessionID: event.SessionID,
		WindowID:  event.WindowID,
		Timestamp: h.now(),
	})
}

// Subscribe registers a subscriber and returns its channel, a cancel func,
// and the sequence number at subscription time.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	seq := h.seq
	log := pslog.Ctx(context.Background())
	log.Debug("hub subscribe", "subs", len(h.subs), "seq", seq)
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			remaining := len(h.subs)
			h.mu.Unlock()
			log.Debug("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq
}

// Replay returns events after the provided seq, up to and including upto.
func (h *Hub) Replay(after, upto uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after && event.Seq <= upto {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	dropped := 0
	for sub := range h.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		pslog.Ctx(context.Background()).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
