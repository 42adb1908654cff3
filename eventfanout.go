package tabkeeper

import (
	"pkt.systems/tabkeeper/core"
	"pkt.systems/tabkeeper/httpapi"
)

// fanout collapses the configured sinks: nil when none remain, the sink
// itself when only one does.
func fanout(sinks ...core.EventSink) core.EventSink {
	out := make(core.EventFanout, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		out = append(out, sink)
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// hubSink avoids wrapping a nil *Hub in a non-nil interface.
func hubSink(hub *httpapi.Hub) core.EventSink {
	if hub == nil {
		return nil
	}
	return hub
}
