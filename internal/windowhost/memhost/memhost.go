// Package memhost is an in-process windowing host. It behaves like a small
// browser: windows own ordered tabs, pinned tabs stay ahead of unpinned ones,
// and mutations emit the same lifecycle events a real browser would.
package memhost

import (
	"context"
	"sync"

	"pkt.systems/tabkeeper/schema"
)

// NewTabURL is loaded into a window created without a URL.
const NewTabURL = "chrome://newtab/"

// Creation records a tab created through the Host commands.
type Creation struct {
	WindowID schema.WindowID
	URL      string
	Pinned   bool
	// Seed is true for the tab a window was created with.
	Seed bool
}

type window struct {
	id   schema.WindowID
	tabs []schema.LiveTab
}

// Host is an in-memory browser.
type Host struct {
	mu         sync.Mutex
	windows    []*window
	nextWindow schema.WindowID
	nextTab    schema.TabID
	focused    schema.WindowID
	creations  []Creation
	blankPolls int
	events     chan schema.HostEvent
	dropped    int
	closed     bool
}

// Option configures a Host.
type Option func(*Host)

// WithBlankPolls makes the first n Windows calls report no windows, the way a
// browser does while it restores its previous session.
func WithBlankPolls(n int) Option {
	return func(h *Host) { h.blankPolls = n }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(h *Host) { h.events = make(chan schema.HostEvent, n) }
}

// New constructs an empty Host.
func New(opts ...Option) *Host {
	h := &Host{
		nextWindow: 1,
		nextTab:    1,
		focused:    schema.WindowIDNone,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.events == nil {
		h.events = make(chan schema.HostEvent, 256)
	}
	return h
}

// AddWindow opens a window with the given tabs without emitting events and
// without recording creations. The first tab becomes active.
func (h *Host) AddWindow(tabs ...schema.TabRecord) schema.WindowID {
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.newWindowLocked()
	for _, tab := range tabs {
		h.insertTabLocked(w, tab.URL, tab.Title, tab.Pinned)
	}
	h.activateFirstLocked(w)
	return w.id
}

// Windows enumerates windows in creation order.
func (h *Host) Windows(ctx context.Context) ([]schema.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.blankPolls > 0 {
		h.blankPolls--
		return []schema.Window{}, nil
	}
	out := make([]schema.Window, 0, len(h.windows))
	for _, w := range h.windows {
		out = append(out, h.snapshotLocked(w))
	}
	return out, nil
}

// Window returns one window or schema.ErrWindowNotFound.
func (h *Host) Window(ctx context.Context, id schema.WindowID) (schema.Window, error) {
	if err := ctx.Err(); err != nil {
		return schema.Window{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.findLocked(id)
	if w == nil {
		return schema.Window{}, schema.ErrWindowNotFound
	}
	return h.snapshotLocked(w), nil
}

// CreateWindow opens a window seeded with url, or with a new-tab page.
func (h *Host) CreateWindow(ctx context.Context, url string, focused bool) (schema.Window, error) {
	if err := ctx.Err(); err != nil {
		return schema.Window{}, err
	}
	h.mu.Lock()
	w := h.newWindowLocked()
	seed := url
	if seed == "" {
		seed = NewTabURL
	}
	h.insertTabLocked(w, seed, "", false)
	h.activateFirstLocked(w)
	h.creations = append(h.creations, Creation{WindowID: w.id, URL: url, Seed: true})
	var events []schema.HostEvent
	if focused {
		h.focused = w.id
		events = append(events, schema.HostEvent{Type: schema.HostWindowFocusChanged, WindowID: w.id})
	}
	snapshot := h.snapshotLocked(w)
	h.mu.Unlock()
	h.emit(events...)
	return snapshot, nil
}

// CreateTab appends a tab to windowID. Pinned tabs join the end of the
// pinned block.
func (h *Host) CreateTab(ctx context.Context, windowID schema.WindowID, url string, pinned bool) (schema.LiveTab, error) {
	if err := ctx.Err(); err != nil {
		return schema.LiveTab{}, err
	}
	h.mu.Lock()
	w := h.findLocked(windowID)
	if w == nil {
		h.mu.Unlock()
		return schema.LiveTab{}, schema.ErrWindowNotFound
	}
	tab := h.insertTabLocked(w, url, "", pinned)
	h.creations = append(h.creations, Creation{WindowID: windowID, URL: url, Pinned: pinned})
	h.mu.Unlock()
	h.emit(schema.HostEvent{Type: schema.HostTabUpdated, WindowID: windowID, TabID: tab.ID, Status: schema.TabStatusComplete})
	return tab, nil
}

// FocusWindow raises the window.
func (h *Host) FocusWindow(ctx context.Context, id schema.WindowID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	if h.findLocked(id) == nil {
		h.mu.Unlock()
		return schema.ErrWindowNotFound
	}
	h.focused = id
	h.mu.Unlock()
	h.emit(schema.HostEvent{Type: schema.HostWindowFocusChanged, WindowID: id})
	return nil
}

// RemoveWindow closes the window.
func (h *Host) RemoveWindow(ctx context.Context, id schema.WindowID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	idx := -1
	for i, w := range h.windows {
		if w.id == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		h.mu.Unlock()
		return schema.ErrWindowNotFound
	}
	h.windows = append(h.windows[:idx], h.windows[idx+1:]...)
	events := []schema.HostEvent{{Type: schema.HostWindowRemoved, WindowID: id}}
	if h.focused == id {
		h.focused = schema.WindowIDNone
		events = append(events, schema.HostEvent{Type: schema.HostWindowFocusChanged, WindowID: schema.WindowIDNone})
	}
	h.mu.Unlock()
	h.emit(events...)
	return nil
}

// ActiveTab returns the active tab of the window.
func (h *Host) ActiveTab(ctx context.Context, windowID schema.WindowID) (schema.LiveTab, bool, error) {
	if err := ctx.Err(); err != nil {
		return schema.LiveTab{}, false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.findLocked(windowID)
	if w == nil {
		return schema.LiveTab{}, false, schema.ErrWindowNotFound
	}
	for _, tab := range w.tabs {
		if tab.Active {
			return tab, true, nil
		}
	}
	return schema.LiveTab{}, false, nil
}

// Events streams lifecycle notifications.
func (h *Host) Events() <-chan schema.HostEvent {
	return h.events
}

// Navigate loads url into tabID and emits a completed tab update.
func (h *Host) Navigate(tabID schema.TabID, url, title string) error {
	h.mu.Lock()
	w, i := h.findTabLocked(tabID)
	if w == nil {
		h.mu.Unlock()
		return schema.ErrWindowNotFound
	}
	w.tabs[i].URL = url
	w.tabs[i].Title = title
	windowID := w.id
	h.mu.Unlock()
	h.emit(schema.HostEvent{Type: schema.HostTabUpdated, WindowID: windowID, TabID: tabID, Status: schema.TabStatusComplete})
	return nil
}

// MoveTab detaches tabID from its window and attaches it to target.
func (h *Host) MoveTab(tabID schema.TabID, target schema.WindowID) error {
	h.mu.Lock()
	from, i := h.findTabLocked(tabID)
	to := h.findLocked(target)
	if from == nil || to == nil {
		h.mu.Unlock()
		return schema.ErrWindowNotFound
	}
	tab := from.tabs[i]
	from.tabs = append(from.tabs[:i], from.tabs[i+1:]...)
	tab.WindowID = to.id
	tab.Active = false
	to.tabs = append(to.tabs, tab)
	fromID := from.id
	h.mu.Unlock()
	h.emit(
		schema.HostEvent{Type: schema.HostTabDetached, WindowID: fromID, TabID: tabID},
		schema.HostEvent{Type: schema.HostTabAttached, WindowID: target, TabID: tabID},
	)
	return nil
}

// Emit publishes an arbitrary event.
func (h *Host) Emit(ev schema.HostEvent) {
	h.emit(ev)
}

// Creations returns every tab created through CreateWindow/CreateTab.
func (h *Host) Creations() []Creation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Creation(nil), h.creations...)
}

// Focused returns the focused window or schema.WindowIDNone.
func (h *Host) Focused() schema.WindowID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

// Close ends the event stream.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
}

func (h *Host) emit(events ...schema.HostEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, ev := range events {
		select {
		case h.events <- ev:
		default:
			h.dropped++
		}
	}
}

func (h *Host) newWindowLocked() *window {
	w := &window{id: h.nextWindow}
	h.nextWindow++
	h.windows = append(h.windows, w)
	return w
}

func (h *Host) insertTabLocked(w *window, url, title string, pinned bool) schema.LiveTab {
	tab := schema.LiveTab{ID: h.nextTab, WindowID: w.id, URL: url, Title: title, Pinned: pinned}
	h.nextTab++
	if !pinned {
		w.tabs = append(w.tabs, tab)
		return tab
	}
	pos := 0
	for pos < len(w.tabs) && w.tabs[pos].Pinned {
		pos++
	}
	w.tabs = append(w.tabs, schema.LiveTab{})
	copy(w.tabs[pos+1:], w.tabs[pos:])
	w.tabs[pos] = tab
	return tab
}

func (h *Host) activateFirstLocked(w *window) {
	for i := range w.tabs {
		w.tabs[i].Active = i == 0
	}
}

func (h *Host) findLocked(id schema.WindowID) *window {
	for _, w := range h.windows {
		if w.id == id {
			return w
		}
	}
	return nil
}

func (h *Host) findTabLocked(id schema.TabID) (*window, int) {
	for _, w := range h.windows {
		for i, tab := range w.tabs {
			if tab.ID == id {
				return w, i
			}
		}
	}
	return nil, -1
}

func (h *Host) snapshotLocked(w *window) schema.Window {
	return schema.Window{
		ID:      w.id,
		Focused: h.focused == w.id,
		Tabs:    append([]schema.LiveTab(nil), w.tabs...),
	}
}
