package core

import "pkt.systems/tabkeeper/schema"

// EventSink receives session collection changes from the core service.
type EventSink interface {
	OnSessionEvent(event schema.SessionEvent)
}

// EventFanout forwards every event to each non-nil sink in order.
type EventFanout []EventSink

// OnSessionEvent implements EventSink.
func (f EventFanout) OnSessionEvent(event schema.SessionEvent) {
	for _, sink := range f {
		if sink == nil {
			continue
		}
		sink.OnSessionEvent(event)
	}
}
