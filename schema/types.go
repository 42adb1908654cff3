package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SessionID identifies a saved session. It is generated once and never reused.
type SessionID string

// WindowID identifies a live browser window.
type WindowID int64

// WindowIDNone is reported by the host when focus leaves every window.
const WindowIDNone WindowID = -1

// TabID identifies a live browser tab.
type TabID int64

// TabRecord is a saved tab. Two records are the same tab when their
// normalized URLs are equal.
type TabRecord struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Pinned bool   `json:"pinned"`
}

// Session is a named, persisted record of a window's tab set.
type Session struct {
	ID          SessionID   `json:"id"`
	Name        string      `json:"name"`
	CurrentID   *WindowID   `json:"currentId"`
	Tabs        []TabRecord `json:"tabs"`
	Timestamp   EpochMillis `json:"timestamp"`
	LastUpdated EpochMillis `json:"lastUpdated,omitzero"`
}

// EpochMillis is a time stored as milliseconds since the Unix epoch, the form
// browser extensions persist with Date.now(). Decoding also accepts RFC 3339
// strings.
type EpochMillis struct {
	time.Time
}

// Millis converts t to UTC at millisecond precision.
func Millis(t time.Time) EpochMillis {
	if t.IsZero() {
		return EpochMillis{}
	}
	return EpochMillis{Time: t.UTC().Truncate(time.Millisecond)}
}

// MarshalJSON encodes the time as an integer; the zero time is 0.
func (m EpochMillis) MarshalJSON() ([]byte, error) {
	if m.IsZero() {
		return []byte("0"), nil
	}
	return strconv.AppendInt(nil, m.UnixMilli(), 10), nil
}

// UnmarshalJSON decodes epoch milliseconds, null, or an RFC 3339 string.
func (m *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = EpochMillis{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		*m = Millis(t)
		return nil
	}
	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("epoch millis %q: %w", data, err)
	}
	if ms == 0 {
		*m = EpochMillis{}
		return nil
	}
	*m = EpochMillis{Time: time.UnixMilli(int64(ms)).UTC()}
	return nil
}

// Saved reports whether the user has named the session.
func (s Session) Saved() bool {
	return s.Name != ""
}

// BoundTo reports whether the session is bound to the given window.
func (s Session) BoundTo(windowID WindowID) bool {
	return s.CurrentID != nil && *s.CurrentID == windowID
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	if s.CurrentID != nil {
		id := *s.CurrentID
		out.CurrentID = &id
	}
	if s.Tabs != nil {
		out.Tabs = append([]TabRecord(nil), s.Tabs...)
	}
	return out
}

// WindowRef returns a pointer to a copy of id, for use as Session.CurrentID.
func WindowRef(id WindowID) *WindowID {
	return &id
}

// LiveTab is a tab reported by the windowing host.
type LiveTab struct {
	ID       TabID    `json:"id"`
	WindowID WindowID `json:"windowId"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Pinned   bool     `json:"pinned"`
	Active   bool     `json:"active"`
}

// Record converts the live tab to its saved form.
func (t LiveTab) Record() TabRecord {
	return TabRecord{URL: t.URL, Title: t.Title, Pinned: t.Pinned}
}

// Window is a live browser window with its tabs in strip order.
type Window struct {
	ID      WindowID  `json:"id"`
	Focused bool      `json:"focused"`
	Tabs    []LiveTab `json:"tabs"`
}

// Records converts the window's tabs to saved records in strip order.
func (w Window) Records() []TabRecord {
	out := make([]TabRecord, 0, len(w.Tabs))
	for _, tab := range w.Tabs {
		out = append(out, tab.Record())
	}
	return out
}

// SessionView is the presentation projection of a session.
type SessionView struct {
	Session
	Open     bool `json:"open"`
	Current  bool `json:"current"`
	TabCount int  `json:"tabCount"`
}

// WindowStatus is the saved/unsaved state rendered for a window.
type WindowStatus struct {
	WindowID WindowID  `json:"windowId"`
	Saved    bool      `json:"saved"`
	Session  SessionID `json:"session,omitempty"`
}
