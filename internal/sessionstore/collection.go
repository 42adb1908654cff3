// Package sessionstore owns the in-memory session collection during a
// reconciliation pass and serializes every read-modify-write against the
// durable store.
package sessionstore

import (
	"sort"
	"time"

	"pkt.systems/tabkeeper/schema"
)

// Collection is the ordered (insertion order) list of saved sessions.
type Collection struct {
	sessions []schema.Session
}

// NewCollection wraps a copy of sessions.
func NewCollection(sessions []schema.Session) *Collection {
	c := &Collection{sessions: make([]schema.Session, 0, len(sessions))}
	for _, s := range sessions {
		c.sessions = append(c.sessions, s.Clone())
	}
	return c
}

// Sessions returns a deep copy in insertion order.
func (c *Collection) Sessions() []schema.Session {
	out := make([]schema.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s.Clone())
	}
	return out
}

// Len returns the number of sessions.
func (c *Collection) Len() int {
	return len(c.sessions)
}

// At returns a copy of the session at index i.
func (c *Collection) At(i int) schema.Session {
	return c.sessions[i].Clone()
}

// IndexOf returns the position of the session with the given id.
func (c *Collection) IndexOf(id schema.SessionID) (int, bool) {
	for i := range c.sessions {
		if c.sessions[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Get returns a copy of the session with the given id.
func (c *Collection) Get(id schema.SessionID) (schema.Session, bool) {
	i, ok := c.IndexOf(id)
	if !ok {
		return schema.Session{}, false
	}
	return c.sessions[i].Clone(), true
}

// BoundTo returns the positions of every session bound to windowID.
func (c *Collection) BoundTo(windowID schema.WindowID) []int {
	var out []int
	for i := range c.sessions {
		if c.sessions[i].BoundTo(windowID) {
			out = append(out, i)
		}
	}
	return out
}

// FirstBoundTo returns the first session bound to windowID.
func (c *Collection) FirstBoundTo(windowID schema.WindowID) (int, bool) {
	for i := range c.sessions {
		if c.sessions[i].BoundTo(windowID) {
			return i, true
		}
	}
	return -1, false
}

// SavedWindow reports whether a named session is bound to windowID.
func (c *Collection) SavedWindow(windowID schema.WindowID) (schema.SessionID, bool) {
	for i := range c.sessions {
		if c.sessions[i].BoundTo(windowID) && c.sessions[i].Saved() {
			return c.sessions[i].ID, true
		}
	}
	return "", false
}

// Add appends a session.
func (c *Collection) Add(s schema.Session) {
	c.sessions = append(c.sessions, s.Clone())
}

// Rename sets the session's label.
func (c *Collection) Rename(id schema.SessionID, name string) error {
	i, ok := c.IndexOf(id)
	if !ok {
		return schema.ErrSessionNotFound
	}
	c.sessions[i].Name = name
	return nil
}

// Delete removes the session with the given id.
func (c *Collection) Delete(id schema.SessionID) (schema.Session, error) {
	i, ok := c.IndexOf(id)
	if !ok {
		return schema.Session{}, schema.ErrSessionNotFound
	}
	removed := c.sessions[i]
	c.sessions = append(c.sessions[:i], c.sessions[i+1:]...)
	return removed, nil
}

// Unbind clears the binding of every session bound to windowID and returns
// the ids it touched.
func (c *Collection) Unbind(windowID schema.WindowID) []schema.SessionID {
	var ids []schema.SessionID
	for i := range c.sessions {
		if c.sessions[i].BoundTo(windowID) {
			c.sessions[i].CurrentID = nil
			ids = append(ids, c.sessions[i].ID)
		}
	}
	return ids
}

// Bind binds the session at i to windowID, unbinding any other session that
// held the window.
func (c *Collection) Bind(i int, windowID schema.WindowID) {
	for j := range c.sessions {
		if j != i && c.sessions[j].BoundTo(windowID) {
			c.sessions[j].CurrentID = nil
		}
	}
	c.sessions[i].CurrentID = schema.WindowRef(windowID)
}

// Clear unbinds the session at i.
func (c *Collection) Clear(i int) {
	c.sessions[i].CurrentID = nil
}

// SetTabs replaces the tabs of the session at i and stamps LastUpdated.
func (c *Collection) SetTabs(i int, tabs []schema.TabRecord, now time.Time) {
	c.sessions[i].Tabs = append([]schema.TabRecord(nil), tabs...)
	c.sessions[i].LastUpdated = schema.Millis(now)
}

// Touch stamps LastUpdated on the session at i.
func (c *Collection) Touch(i int, now time.Time) {
	c.sessions[i].LastUpdated = schema.Millis(now)
}

// Sorted returns a copy ordered by Timestamp, newest first.
func (c *Collection) Sorted() []schema.Session {
	out := c.Sessions()
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Timestamp.After(out[b].Timestamp.Time)
	})
	return out
}
